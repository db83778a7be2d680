package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"whatsapp-gateway/internal/domain"
	"whatsapp-gateway/internal/health"
	"whatsapp-gateway/internal/logging"
	"whatsapp-gateway/internal/ports"
	"whatsapp-gateway/internal/ratelimit"
)

// ReadMarker is the slice of the message dispatcher the processor needs to
// mark inbound messages as read.
type ReadMarker interface {
	MarkAsRead(ctx context.Context, providerMessageID string) error
}

// Result summarises one webhook delivery. Per-item failures are collected
// in Errors rather than aborting the batch; Success is false if any item
// failed, but the counts still reflect the items that went through.
type Result struct {
	Success           bool
	ProcessedMessages int
	ProcessedStatuses int
	Errors            []error
}

// Processor validates inbound provider events and dispatches them to the
// storage and auto-response collaborators. One instance serves all webhook
// deliveries; all state it touches is owned by its injected dependencies.
type Processor struct {
	limiter   *ratelimit.Limiter
	store     ports.MessageStore
	responder ports.AutoResponder
	reader    ReadMarker
	monitor   *health.Monitor
	log       *slog.Logger
}

// NewProcessor wires a Processor with its collaborators. responder and
// reader may be nil, in which case those steps are skipped.
func NewProcessor(
	limiter *ratelimit.Limiter,
	store ports.MessageStore,
	responder ports.AutoResponder,
	reader ReadMarker,
	monitor *health.Monitor,
	log *slog.Logger,
) *Processor {
	return &Processor{
		limiter:   limiter,
		store:     store,
		responder: responder,
		reader:    reader,
		monitor:   monitor,
		log:       log,
	}
}

// Process handles one webhook envelope. It returns an error only for
// structural violations (empty envelope); everything else is reported in
// the Result so the HTTP layer can acknowledge fast and avoid the
// provider's retry storm.
func (p *Processor) Process(ctx context.Context, env Envelope) (Result, error) {
	if len(env.Entry) == 0 {
		return Result{}, domain.NewValidationError("webhook payload has no entries")
	}

	res := Result{Success: true}
	lctx := logging.NewContext()
	log := lctx.With(p.log)

	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				log.Debug("skipping webhook change", "field", change.Field)
				continue
			}

			for _, msg := range change.Value.Messages {
				if err := p.processMessage(ctx, log, change.Value.Metadata, msg); err != nil {
					res.Errors = append(res.Errors, err)
					p.monitor.IncrementErrors()
					continue
				}
				res.ProcessedMessages++
				p.monitor.IncrementMessagesReceived()
				inboundProcessed.WithLabelValues(msg.Type).Inc()
			}

			for _, st := range change.Value.Statuses {
				if err := p.processStatus(ctx, log, st); err != nil {
					res.Errors = append(res.Errors, err)
					p.monitor.IncrementErrors()
					continue
				}
				res.ProcessedStatuses++
				statusProcessed.WithLabelValues(st.Status).Inc()
			}
		}
	}

	res.Success = len(res.Errors) == 0
	log.Info("webhook processed",
		"messages", res.ProcessedMessages,
		"statuses", res.ProcessedStatuses,
		"errors", len(res.Errors),
	)
	return res, nil
}

// processMessage handles a single inbound message: admission check, storage
// hand-off, auto-response hook, read receipt. Collaborator failures after
// storage are logged but don't fail the item.
func (p *Processor) processMessage(ctx context.Context, log *slog.Logger, meta Metadata, wire InboundMessage) error {
	if wire.ID == "" || wire.From == "" {
		return domain.NewValidationError("inbound message missing id or sender")
	}

	if !p.limiter.Allow(wire.From) {
		log.Warn("inbound message rate limited", "from", wire.From, "provider_id", wire.ID)
		return domain.NewRateLimitError(wire.From)
	}

	msg := domain.NewInboundMessage(
		wire.ID,
		wire.From,
		meta.DisplayPhoneNumber,
		wire.ContentKind(),
		wire.BodyText(),
		eventTime(wire.Timestamp),
	)
	if wire.Context != nil {
		msg.ReplyToID = wire.Context.ID
	}

	if err := p.store.StoreIncomingMessage(ctx, msg); err != nil {
		return fmt.Errorf("store incoming message %s: %w", wire.ID, err)
	}
	log.Info("inbound message stored", "provider_id", wire.ID, "from", wire.From, "kind", string(msg.Kind))

	if p.responder != nil {
		if err := p.responder.HandleIncoming(ctx, msg); err != nil {
			log.Error("auto-responder failed", "provider_id", wire.ID, "err", err)
		}
	}

	if p.reader != nil {
		if err := p.reader.MarkAsRead(ctx, wire.ID); err != nil {
			log.Error("mark as read failed", "provider_id", wire.ID, "err", err)
		}
	}

	return nil
}

// processStatus applies one delivery-status update. Stale updates (replays,
// out-of-order events) are dropped silently: applying the same event twice
// must yield the same terminal status.
func (p *Processor) processStatus(ctx context.Context, log *slog.Logger, wire StatusEvent) error {
	if wire.ID == "" {
		return domain.NewValidationError("status event missing message id")
	}

	status, ok := statusFromWire(wire.Status)
	if !ok {
		return domain.NewValidationError("unknown status " + wire.Status)
	}

	err := p.store.UpdateMessageStatus(ctx, wire.ID, status, eventTime(wire.Timestamp))
	switch {
	case err == nil:
		log.Info("message status updated", "provider_id", wire.ID, "status", string(status))
	case isIgnorable(err):
		log.Debug("status update ignored", "provider_id", wire.ID, "status", string(status), "reason", err.Error())
	default:
		return fmt.Errorf("update status for %s: %w", wire.ID, err)
	}

	if status == domain.StatusFailed && len(wire.Errors) > 0 {
		log.Warn("provider reported delivery failure",
			"provider_id", wire.ID,
			"code", wire.Errors[0].Code,
			"title", wire.Errors[0].Title,
		)
	}
	return nil
}

// isIgnorable marks storage outcomes that are expected under the provider's
// at-least-once, unordered delivery: replayed statuses and statuses for
// messages this process never saw.
func isIgnorable(err error) bool {
	return errors.Is(err, domain.ErrStaleStatus) || errors.Is(err, domain.ErrMessageNotFound)
}
