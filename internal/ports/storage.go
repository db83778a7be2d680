package ports

import (
	"context"
	"time"

	"whatsapp-gateway/internal/domain"
)

// MessageStore is the persistence collaborator. Calls are fire-and-forget
// from the delivery core's perspective: failures are logged and reported
// but never block webhook acknowledgement.
type MessageStore interface {
	// StoreIncomingMessage persists a message received from the provider.
	StoreIncomingMessage(ctx context.Context, msg domain.Message) error

	// StoreSentMessage persists an outbound message after the provider
	// accepted it.
	StoreSentMessage(ctx context.Context, msg domain.Message) error

	// UpdateMessageStatus applies a delivery-status event to the message
	// with the given provider id. Implementations must be idempotent and
	// apply update-if-newer semantics: a status that does not supersede the
	// stored one is dropped with domain.ErrStaleStatus.
	UpdateMessageStatus(ctx context.Context, providerID string, status domain.Status, ts time.Time) error
}
