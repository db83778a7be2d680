package ports

import "context"

// SendResult is the provider's acknowledgement of an outbound message.
type SendResult struct {
	ProviderID string // Message id assigned by the provider (wamid)
}

// TemplateComponent is one component of a template message payload, passed
// through to the provider unmodified.
type TemplateComponent struct {
	Type       string              `json:"type"`
	Parameters []TemplateParameter `json:"parameters,omitempty"`
}

// TemplateParameter is a single substitution value inside a component.
type TemplateParameter struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// ProviderClient abstracts the external messaging provider's HTTP API.
// Implementations must honour ctx deadlines; every call carries a bounded
// timeout and a timed-out call counts as a failure upstream.
type ProviderClient interface {
	// SendText submits a text message, optionally as a reply to replyToID.
	SendText(ctx context.Context, to, body, replyToID string) (SendResult, error)

	// SendTemplate submits a pre-approved template message.
	SendTemplate(ctx context.Context, to, name, languageCode string, components []TemplateComponent) (SendResult, error)

	// MarkAsRead reports the inbound message with the given provider id as read.
	MarkAsRead(ctx context.Context, providerMessageID string) error
}
