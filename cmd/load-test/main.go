// load-test hammers the webhook endpoint with signed inbound-message
// payloads to measure how the gateway acknowledges under concurrent
// delivery bursts.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

type result struct {
	total        int
	success      int32
	failure      int32
	duration     time.Duration
	requestsPerS float64
	avgResponse  time.Duration
	minResponse  time.Duration
	maxResponse  time.Duration
	errors       map[string]int
}

func run(url, appSecret string, numRequests, concurrency int) *result {
	var (
		successCount  int32
		failureCount  int32
		totalRespTime int64
		minRespTime   int64 = int64(^uint64(0) >> 1)
		maxRespTime   int64
		errorsMu      sync.Mutex
		errors        = make(map[string]int)
		wg            sync.WaitGroup
		semaphore     = make(chan struct{}, concurrency)
	)

	start := time.Now()
	fmt.Printf("Starting load test: %d requests, concurrency %d\n", numRequests, concurrency)
	fmt.Printf("Target: %s\n\n", url)

	for i := 0; i < numRequests; i++ {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(reqNum int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			body := webhookPayload(reqNum)
			reqStart := time.Now()

			req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				atomic.AddInt32(&failureCount, 1)
				return
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Hub-Signature-256", sign(body, appSecret))

			resp, err := http.DefaultClient.Do(req)
			elapsed := time.Since(reqStart)

			atomic.AddInt64(&totalRespTime, int64(elapsed))
			for {
				cur := atomic.LoadInt64(&minRespTime)
				if int64(elapsed) >= cur || atomic.CompareAndSwapInt64(&minRespTime, cur, int64(elapsed)) {
					break
				}
			}
			for {
				cur := atomic.LoadInt64(&maxRespTime)
				if int64(elapsed) <= cur || atomic.CompareAndSwapInt64(&maxRespTime, cur, int64(elapsed)) {
					break
				}
			}

			if err != nil {
				atomic.AddInt32(&failureCount, 1)
				errorsMu.Lock()
				errors[err.Error()]++
				errorsMu.Unlock()
				return
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)

			if resp.StatusCode == http.StatusOK {
				atomic.AddInt32(&successCount, 1)
			} else {
				atomic.AddInt32(&failureCount, 1)
				errorsMu.Lock()
				errors[fmt.Sprintf("HTTP %d", resp.StatusCode)]++
				errorsMu.Unlock()
			}
		}(i)
	}

	wg.Wait()
	total := time.Since(start)

	res := &result{
		total:        numRequests,
		success:      successCount,
		failure:      failureCount,
		duration:     total,
		requestsPerS: float64(numRequests) / total.Seconds(),
		minResponse:  time.Duration(minRespTime),
		maxResponse:  time.Duration(maxRespTime),
		errors:       errors,
	}
	if numRequests > 0 {
		res.avgResponse = time.Duration(totalRespTime / int64(numRequests))
	}
	return res
}

// webhookPayload builds a one-message inbound envelope with a distinct
// sender per request so the per-recipient limiter isn't the bottleneck.
func webhookPayload(reqNum int) []byte {
	sender := fmt.Sprintf("+1555%07d", reqNum)
	env := map[string]any{
		"object": "whatsapp_business_account",
		"entry": []map[string]any{{
			"id": "load-test",
			"changes": []map[string]any{{
				"field": "messages",
				"value": map[string]any{
					"messaging_product": "whatsapp",
					"metadata":          map[string]string{"phone_number_id": "load-test"},
					"messages": []map[string]any{{
						"id":        fmt.Sprintf("wamid.loadtest.%d", reqNum),
						"from":      sender,
						"timestamp": strconv.FormatInt(time.Now().Unix(), 10),
						"type":      "text",
						"text":      map[string]string{"body": fmt.Sprintf("load test message %d", reqNum)},
					}},
				},
			}},
		}},
	}
	body, _ := json.Marshal(env)
	return body
}

func sign(body []byte, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func main() {
	url := getenv("TARGET_URL", "http://localhost:8080/webhook")
	appSecret := getenv("WEBHOOK_APP_SECRET", "")
	numRequests := getint("NUM_REQUESTS", 1000)
	concurrency := getint("CONCURRENCY", 50)

	res := run(url, appSecret, numRequests, concurrency)

	fmt.Println("\nResults")
	fmt.Printf("  total:        %d\n", res.total)
	fmt.Printf("  success:      %d\n", res.success)
	fmt.Printf("  failure:      %d\n", res.failure)
	fmt.Printf("  duration:     %s\n", res.duration)
	fmt.Printf("  requests/sec: %.1f\n", res.requestsPerS)
	fmt.Printf("  avg response: %s\n", res.avgResponse)
	fmt.Printf("  min response: %s\n", res.minResponse)
	fmt.Printf("  max response: %s\n", res.maxResponse)

	if len(res.errors) > 0 {
		fmt.Println("\nErrors:")
		for msg, count := range res.errors {
			fmt.Printf("  %dx %s\n", count, msg)
		}
		os.Exit(1)
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
