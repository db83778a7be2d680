package ports

import "context"

// SendJob is a queued outbound send request. Callers that hit the rate
// limit, or that don't need a synchronous result, enqueue instead of
// calling the dispatcher directly.
type SendJob struct {
	To            string              `json:"to"`
	Kind          string              `json:"kind"` // "text" or "template"
	Body          string              `json:"body,omitempty"`
	TemplateName  string              `json:"template_name,omitempty"`
	LanguageCode  string              `json:"language_code,omitempty"`
	Components    []TemplateComponent `json:"components,omitempty"`
	ReplyToID     string              `json:"reply_to_id,omitempty"`
	CorrelationID string              `json:"correlation_id"`
}

// JobPublisher publishes outbound send jobs to the queue.
type JobPublisher interface {
	Publish(ctx context.Context, job SendJob) error
}

// JobConsumer consumes send jobs from the queue.
type JobConsumer interface {
	// Consume starts delivery of jobs; each is passed to the handler.
	// Blocks until ctx is cancelled or a fatal error occurs.
	Consume(ctx context.Context, handler func(ctx context.Context, job SendJob) error) error
}
