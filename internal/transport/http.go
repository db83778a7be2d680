package transport

import (
	"encoding/json"
	"errors"
	"log/slog"

	"whatsapp-gateway/internal/breaker"
	"whatsapp-gateway/internal/dispatch"
	"whatsapp-gateway/internal/domain"
	"whatsapp-gateway/internal/health"
	"whatsapp-gateway/internal/ports"
	"whatsapp-gateway/internal/webhook"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config carries the secrets and presence flags the HTTP layer needs.
type Config struct {
	VerifyToken string
	AppSecret   string

	// Presence flags surfaced on the health endpoint.
	AccessTokenConfigured   bool
	PhoneNumberIDConfigured bool
}

// Handler holds all HTTP handlers for the messaging gateway.
type Handler struct {
	processor  *webhook.Processor
	dispatcher *dispatch.Dispatcher
	publisher  ports.JobPublisher // nil when the async path is disabled
	monitor    *health.Monitor
	brk        *breaker.Breaker
	conf       Config
	log        *slog.Logger
}

// NewHandler wires up a Handler with its dependencies.
func NewHandler(
	processor *webhook.Processor,
	dispatcher *dispatch.Dispatcher,
	publisher ports.JobPublisher,
	monitor *health.Monitor,
	brk *breaker.Breaker,
	conf Config,
	log *slog.Logger,
) *Handler {
	return &Handler{
		processor:  processor,
		dispatcher: dispatcher,
		publisher:  publisher,
		monitor:    monitor,
		brk:        brk,
		conf:       conf,
		log:        log,
	}
}

// Register mounts all routes onto the given Fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/webhook", h.VerifyWebhook)
	app.Post("/webhook", h.ReceiveWebhook)
	app.Post("/api/messages", h.SendMessage)
	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

// ── Webhook ───────────────────────────────────────────────────────────────────

// VerifyWebhook answers the provider's subscription handshake.
//
// GET /webhook?hub.mode=subscribe&hub.verify_token=...&hub.challenge=...
func (h *Handler) VerifyWebhook(c *fiber.Ctx) error {
	challenge, ok := webhook.VerifyHandshake(
		c.Query("hub.mode"),
		c.Query("hub.verify_token"),
		c.Query("hub.challenge"),
		h.conf.VerifyToken,
	)
	if !ok {
		h.log.Warn("webhook verification rejected", "mode", c.Query("hub.mode"))
		return c.SendStatus(fiber.StatusForbidden)
	}

	h.log.Info("webhook verified")
	return c.SendString(challenge)
}

type webhookResponse struct {
	Success           bool     `json:"success"`
	ProcessedMessages int      `json:"processed_messages"`
	ProcessedStatuses int      `json:"processed_statuses"`
	Errors            []string `json:"errors"`
}

// ReceiveWebhook accepts an event delivery from the provider.
//
// The provider retries aggressively on non-2xx, so this handler answers 200
// for anything except an invalid signature or a structurally broken
// payload. Per-item failures ride back in the response body only.
//
// POST /webhook
func (h *Handler) ReceiveWebhook(c *fiber.Ctx) error {
	body := c.Body()

	if !webhook.ValidSignature(body, c.Get("X-Hub-Signature-256"), h.conf.AppSecret) {
		h.log.Warn("webhook signature rejected", "ip", c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid signature"})
	}

	var env webhook.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}

	res, err := h.processor.Process(c.Context(), env)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	resp := webhookResponse{
		Success:           res.Success,
		ProcessedMessages: res.ProcessedMessages,
		ProcessedStatuses: res.ProcessedStatuses,
		Errors:            make([]string, 0, len(res.Errors)),
	}
	for _, e := range res.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	return c.JSON(resp)
}

// ── Send API ──────────────────────────────────────────────────────────────────

type sendMessageRequest struct {
	To           string                    `json:"to"`
	Type         string                    `json:"type"` // "text" (default) or "template"
	Text         string                    `json:"text,omitempty"`
	TemplateName string                    `json:"template_name,omitempty"`
	LanguageCode string                    `json:"language_code,omitempty"`
	Components   []ports.TemplateComponent `json:"components,omitempty"`
	ReplyToID    string                    `json:"reply_to_id,omitempty"`
	Queued       bool                      `json:"queued,omitempty"`
}

type sendMessageResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"message_id,omitempty"`
	Queued    bool   `json:"queued,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// SendMessage sends a message synchronously, or enqueues it when the
// request asks for the queued path.
//
// POST /api/messages
func (h *Handler) SendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if req.Queued {
		return h.enqueue(c, req)
	}

	var result dispatch.SendResult
	switch req.Type {
	case "", "text":
		result = h.dispatcher.SendText(c.Context(), req.To, req.Text, req.ReplyToID)
	case "template":
		result = h.dispatcher.SendTemplate(c.Context(), req.To, req.TemplateName, req.LanguageCode, req.Components)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported message type " + req.Type})
	}

	if !result.Success {
		kind := domain.KindOf(result.Err)
		return c.Status(statusForKind(result.Err, kind)).JSON(sendMessageResponse{
			Error:     result.Err.Error(),
			ErrorKind: string(kind),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(sendMessageResponse{
		Success:   true,
		MessageID: result.MessageID,
	})
}

func (h *Handler) enqueue(c *fiber.Ctx, req sendMessageRequest) error {
	if h.publisher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "queued delivery not configured"})
	}
	if req.To == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "recipient is required"})
	}

	job := ports.SendJob{
		To:            req.To,
		Kind:          req.Type,
		Body:          req.Text,
		TemplateName:  req.TemplateName,
		LanguageCode:  req.LanguageCode,
		Components:    req.Components,
		ReplyToID:     req.ReplyToID,
		CorrelationID: uuid.New().String(),
	}
	if job.Kind == "" {
		job.Kind = "text"
	}

	if err := h.publisher.Publish(c.Context(), job); err != nil {
		h.log.Error("enqueue send job", "to", req.To, "err", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "queue unavailable"})
	}

	return c.Status(fiber.StatusAccepted).JSON(sendMessageResponse{
		Success: true,
		Queued:  true,
	})
}

// statusForKind maps the error taxonomy onto HTTP status codes so API
// callers keep the "retry later" vs "fix the request" distinction.
func statusForKind(err error, kind domain.ErrorKind) int {
	switch {
	case errors.Is(err, breaker.ErrOpen):
		return fiber.StatusServiceUnavailable
	case kind == domain.ErrValidation:
		return fiber.StatusBadRequest
	case kind == domain.ErrRateLimit:
		return fiber.StatusTooManyRequests
	case kind == domain.ErrAuthentication:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusBadGateway
	}
}

// ── Health ────────────────────────────────────────────────────────────────────

type healthResponse struct {
	Status  string        `json:"status"`
	Circuit string        `json:"circuit"`
	Config  configFlags   `json:"config"`
	Metrics health.Status `json:"metrics"`
}

type configFlags struct {
	AccessToken   bool `json:"access_token_configured"`
	PhoneNumberID bool `json:"phone_number_id_configured"`
	VerifyToken   bool `json:"verify_token_configured"`
	AppSecret     bool `json:"app_secret_configured"`
}

// Health exposes the health monitor summary plus config presence flags.
//
// GET /health
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(healthResponse{
		Status:  "ok",
		Circuit: string(h.brk.State()),
		Config: configFlags{
			AccessToken:   h.conf.AccessTokenConfigured,
			PhoneNumberID: h.conf.PhoneNumberIDConfigured,
			VerifyToken:   h.conf.VerifyToken != "",
			AppSecret:     h.conf.AppSecret != "",
		},
		Metrics: h.monitor.Status(),
	})
}
