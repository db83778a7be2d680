package dispatch

import (
	"context"
	"log/slog"
	"time"

	"whatsapp-gateway/internal/breaker"
	"whatsapp-gateway/internal/domain"
	"whatsapp-gateway/internal/health"
	"whatsapp-gateway/internal/logging"
	"whatsapp-gateway/internal/ports"
	"whatsapp-gateway/internal/ratelimit"
	"whatsapp-gateway/internal/retry"
)

// SendResult is the value every outbound operation returns. The dispatcher
// never lets an error escape its boundary: callers inspect Err and its kind
// to tell "retry later" (rate limit, transient provider failure) from "fix
// the request" (validation).
type SendResult struct {
	Success   bool
	MessageID string // Provider-assigned message id on success
	Err       error
}

// Dispatcher validates and sends outbound messages through the shared
// reliability layer: admission control, then retry around the circuit
// breaker around the provider client.
type Dispatcher struct {
	client  ports.ProviderClient
	store   ports.MessageStore
	limiter *ratelimit.Limiter
	brk     *breaker.Breaker
	retrier *retry.Manager
	monitor *health.Monitor
	log     *slog.Logger

	from        string // Business phone number id messages are sent from
	credentials bool   // Whether provider credentials are configured
	callTimeout time.Duration
}

// NewDispatcher wires a Dispatcher. credentialsConfigured reflects whether
// an access token and phone number id are present; without them every send
// fails fast with an authentication error instead of a provider round trip.
func NewDispatcher(
	client ports.ProviderClient,
	store ports.MessageStore,
	limiter *ratelimit.Limiter,
	brk *breaker.Breaker,
	retrier *retry.Manager,
	monitor *health.Monitor,
	log *slog.Logger,
	from string,
	credentialsConfigured bool,
	callTimeout time.Duration,
) *Dispatcher {
	return &Dispatcher{
		client:      client,
		store:       store,
		limiter:     limiter,
		brk:         brk,
		retrier:     retrier,
		monitor:     monitor,
		log:         log,
		from:        from,
		credentials: credentialsConfigured,
		callTimeout: callTimeout,
	}
}

// SendText sends a plain text message to the given recipient, optionally as
// a reply to a previous provider message id.
func (d *Dispatcher) SendText(ctx context.Context, to, text, replyToID string) SendResult {
	if to == "" || text == "" {
		return d.failed(to, domain.NewValidationError("recipient and text are required"))
	}
	msg := domain.NewOutboundMessage(d.from, to, domain.KindText, text, replyToID)

	return d.send(ctx, msg, "send_text", func(callCtx context.Context) (ports.SendResult, error) {
		return d.client.SendText(callCtx, to, text, replyToID)
	})
}

// SendTemplate sends a pre-approved template message.
func (d *Dispatcher) SendTemplate(ctx context.Context, to, name, languageCode string, components []ports.TemplateComponent) SendResult {
	if to == "" || name == "" {
		return d.failed(to, domain.NewValidationError("recipient and template name are required"))
	}
	if languageCode == "" {
		languageCode = "en"
	}
	msg := domain.NewOutboundMessage(d.from, to, domain.KindTemplate, name, "")

	return d.send(ctx, msg, "send_template", func(callCtx context.Context) (ports.SendResult, error) {
		return d.client.SendTemplate(callCtx, to, name, languageCode, components)
	})
}

// send runs the shared outbound pipeline: credential check, admission,
// retry(breaker(provider call)), persistence, counters.
func (d *Dispatcher) send(ctx context.Context, msg domain.Message, op string, call func(ctx context.Context) (ports.SendResult, error)) SendResult {
	lctx := logging.NewContext()
	lctx.Recipient = msg.To
	lctx.MessageID = msg.ID.String()
	log := lctx.With(d.log)

	if !d.credentials {
		return d.failedWith(log, msg.To, domain.NewAuthenticationError("provider credentials not configured"))
	}

	if !d.limiter.Allow(msg.To) {
		return d.failedWith(log, msg.To, domain.NewRateLimitError(msg.To))
	}

	var result ports.SendResult
	err := d.retrier.Do(ctx, op, func() error {
		return d.brk.Execute(func() error {
			callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
			defer cancel()

			r, callErr := call(callCtx)
			if callErr != nil {
				return callErr
			}
			result = r
			return nil
		})
	})
	if err != nil {
		return d.failedWith(log, msg.To, err)
	}

	msg.ProviderID = result.ProviderID
	msg.Status = domain.StatusSent
	if storeErr := d.store.StoreSentMessage(ctx, msg); storeErr != nil {
		// The provider accepted the message; persistence is best effort.
		log.Error("store sent message failed", "provider_id", result.ProviderID, "err", storeErr)
	}

	d.monitor.IncrementMessagesSent()
	outboundSent.WithLabelValues(string(msg.Kind)).Inc()
	log.Info("message sent", "operation", op, "provider_id", result.ProviderID)

	return SendResult{Success: true, MessageID: result.ProviderID}
}

// MarkAsRead reports an inbound message as read. Read receipts skip the
// per-recipient limiter: they are responses to traffic the limiter already
// admitted, and throttling them would only delay the provider's retries.
func (d *Dispatcher) MarkAsRead(ctx context.Context, providerMessageID string) error {
	if providerMessageID == "" {
		return domain.NewValidationError("message id is required")
	}
	if !d.credentials {
		return domain.NewAuthenticationError("provider credentials not configured")
	}

	err := d.retrier.Do(ctx, "mark_as_read", func() error {
		return d.brk.Execute(func() error {
			callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
			defer cancel()
			return d.client.MarkAsRead(callCtx, providerMessageID)
		})
	})
	if err != nil {
		d.monitor.IncrementErrors()
		d.log.Error("mark as read failed", "provider_id", providerMessageID, "err", err)
		return err
	}
	return nil
}

func (d *Dispatcher) failed(to string, err error) SendResult {
	d.monitor.IncrementErrors()
	outboundFailed.WithLabelValues(string(domain.KindOf(err))).Inc()
	d.log.Error("send rejected", "to", to, "err", err)
	return SendResult{Err: err}
}

func (d *Dispatcher) failedWith(log *slog.Logger, to string, err error) SendResult {
	d.monitor.IncrementErrors()
	outboundFailed.WithLabelValues(string(domain.KindOf(err))).Inc()
	log.Error("send failed", "to", to, "err", err)
	return SendResult{Err: err}
}
