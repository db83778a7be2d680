package ports

import (
	"context"

	"whatsapp-gateway/internal/domain"
)

// AutoResponder is an opaque hook invoked for each inbound message after it
// has been stored. Implementations may call back into the dispatcher to send
// a reply; the webhook processor only logs their failures.
type AutoResponder interface {
	HandleIncoming(ctx context.Context, msg domain.Message) error
}
