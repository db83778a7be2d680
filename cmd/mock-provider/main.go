// mock-provider simulates the WhatsApp-style Cloud API for local
// development: it accepts message sends, hands back generated message ids,
// and posts signed delivery-status webhooks to the gateway shortly after.
package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"whatsapp-gateway/internal/webhook"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type sendRequest struct {
	To   string `json:"to"`
	Type string `json:"type"`
}

type sendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Messages         []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	addr := getenv("HTTP_ADDR", ":9090")
	webhookURL := getenv("WEBHOOK_URL", "http://localhost:8080/webhook")
	appSecret := getenv("WEBHOOK_APP_SECRET", "")

	app := fiber.New(fiber.Config{AppName: "mock-provider"})

	// POST /:phoneID/messages — accepts a send and echoes a generated wamid.
	app.Post("/:phoneID/messages", func(c *fiber.Ctx) error {
		var req sendRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}

		// Read receipts carry no recipient; acknowledge and stop there.
		if req.To == "" {
			return c.JSON(fiber.Map{"success": true})
		}

		wamid := "wamid." + uuid.New().String()
		log.Info("mock provider accepted message",
			"phone_id", c.Params("phoneID"),
			"to", req.To,
			"type", req.Type,
			"wamid", wamid,
		)

		go simulateStatuses(webhookURL, appSecret, c.Params("phoneID"), req.To, wamid, log)

		var resp sendResponse
		resp.MessagingProduct = "whatsapp"
		resp.Messages = []struct {
			ID string `json:"id"`
		}{{ID: wamid}}
		return c.JSON(resp)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("mock-provider listening", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Error("fiber listen", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down mock-provider")
	_ = app.Shutdown()
}

// simulateStatuses posts "delivered" then "read" status webhooks for a sent
// message, signed the way the real provider signs them.
func simulateStatuses(url, appSecret, phoneID, recipient, wamid string, log *slog.Logger) {
	for _, status := range []string{"delivered", "read"} {
		time.Sleep(500 * time.Millisecond)

		env := webhook.Envelope{
			Object: "whatsapp_business_account",
			Entry: []webhook.Entry{{
				ID: phoneID,
				Changes: []webhook.Change{{
					Field: "messages",
					Value: webhook.ChangeValue{
						MessagingProduct: "whatsapp",
						Metadata:         webhook.Metadata{PhoneNumberID: phoneID},
						Statuses: []webhook.StatusEvent{{
							ID:          wamid,
							Status:      status,
							Timestamp:   strconv.FormatInt(time.Now().Unix(), 10),
							RecipientID: recipient,
						}},
					},
				}},
			}},
		}

		body, err := json.Marshal(env)
		if err != nil {
			log.Error("marshal status webhook", "err", err)
			return
		}

		if err := postSigned(url, body, appSecret); err != nil {
			log.Error("status webhook call failed", "wamid", wamid, "status", status, "err", err)
			return
		}
		log.Info("status webhook posted", "wamid", wamid, "status", status)
	}
}

func postSigned(url string, body []byte, appSecret string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	req.Header.Set("X-Hub-Signature-256", "sha256="+hex.EncodeToString(mac.Sum(nil)))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
