// Package cloudapi implements ports.ProviderClient against a
// WhatsApp-Business-style Cloud API: bearer-token auth, a fixed base URL,
// message sends and read receipts as JSON POSTs to
// {base}/{phone-number-id}/messages.
package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"whatsapp-gateway/internal/domain"
	"whatsapp-gateway/internal/ports"
)

// Client talks to the provider's HTTP API.
type Client struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	httpClient    *http.Client
}

// New creates a Client. timeout bounds each HTTP call end to end.
func New(baseURL, accessToken, phoneNumberID string, timeout time.Duration) *Client {
	return &Client{
		baseURL:       baseURL,
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

const messagingProduct = "whatsapp"

type sendRequest struct {
	MessagingProduct string           `json:"messaging_product"`
	RecipientType    string           `json:"recipient_type,omitempty"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *textPayload     `json:"text,omitempty"`
	Template         *templatePayload `json:"template,omitempty"`
	Context          *contextPayload  `json:"context,omitempty"`
}

type textPayload struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type templatePayload struct {
	Name       string                    `json:"name"`
	Language   languagePayload           `json:"language"`
	Components []ports.TemplateComponent `json:"components,omitempty"`
}

type languagePayload struct {
	Code string `json:"code"`
}

type contextPayload struct {
	MessageID string `json:"message_id"`
}

type readReceiptRequest struct {
	MessagingProduct string `json:"messaging_product"`
	Status           string `json:"status"`
	MessageID        string `json:"message_id"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
		Subcode int    `json:"error_subcode"`
	} `json:"error"`
}

// SendText submits a text message.
func (c *Client) SendText(ctx context.Context, to, body, replyToID string) (ports.SendResult, error) {
	req := sendRequest{
		MessagingProduct: messagingProduct,
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &textPayload{Body: body},
	}
	if replyToID != "" {
		req.Context = &contextPayload{MessageID: replyToID}
	}
	return c.postMessage(ctx, req)
}

// SendTemplate submits a template message.
func (c *Client) SendTemplate(ctx context.Context, to, name, languageCode string, components []ports.TemplateComponent) (ports.SendResult, error) {
	req := sendRequest{
		MessagingProduct: messagingProduct,
		To:               to,
		Type:             "template",
		Template: &templatePayload{
			Name:       name,
			Language:   languagePayload{Code: languageCode},
			Components: components,
		},
	}
	return c.postMessage(ctx, req)
}

// MarkAsRead posts a read receipt for an inbound message.
func (c *Client) MarkAsRead(ctx context.Context, providerMessageID string) error {
	req := readReceiptRequest{
		MessagingProduct: messagingProduct,
		Status:           "read",
		MessageID:        providerMessageID,
	}

	resp, err := c.post(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	return nil
}

func (c *Client) postMessage(ctx context.Context, payload sendRequest) (ports.SendResult, error) {
	resp, err := c.post(ctx, payload)
	if err != nil {
		return ports.SendResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ports.SendResult{}, apiError(resp)
	}

	var sr sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return ports.SendResult{}, domain.NewProviderError("decode provider response", err)
	}
	if len(sr.Messages) == 0 {
		return ports.SendResult{}, domain.NewProviderError("provider response has no message id", nil)
	}
	return ports.SendResult{ProviderID: sr.Messages[0].ID}, nil
}

func (c *Client) post(ctx context.Context, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewProviderError("provider request failed", err)
	}
	return resp, nil
}

// apiError maps a non-2xx provider response onto the error taxonomy.
// 401/403 become authentication errors; everything else carries the
// provider's error code and subcode when the body parses.
func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var er errorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error.Message != "" {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return domain.NewAuthenticationError(er.Error.Message)
		}
		return domain.NewProviderAPIError(er.Error.Message, er.Error.Code, er.Error.Subcode)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return domain.NewAuthenticationError(fmt.Sprintf("provider returned %d", resp.StatusCode))
	}
	return domain.NewProviderAPIError(fmt.Sprintf("provider returned %d", resp.StatusCode), resp.StatusCode, 0)
}
