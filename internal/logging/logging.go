package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// New builds the process-wide JSON logger. Level is one of debug, info,
// warn, error; anything else falls back to info.
func New(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l})
	return slog.New(handler)
}

// Context carries per-operation correlation fields attached to every log
// line and error produced while handling one request. It is created at the
// boundary, passed down, and discarded when the operation completes.
type Context struct {
	CorrelationID string
	Recipient     string
	MessageID     string // Internal message id, when known
	ProviderID    string // Provider-assigned message id, when known
}

// NewContext creates a Context with a fresh correlation id.
func NewContext() Context {
	return Context{CorrelationID: uuid.New().String()}
}

// Attrs renders the context as slog attributes, omitting empty fields.
func (c Context) Attrs() []any {
	attrs := []any{slog.String("correlation_id", c.CorrelationID)}
	if c.Recipient != "" {
		attrs = append(attrs, slog.String("recipient", c.Recipient))
	}
	if c.MessageID != "" {
		attrs = append(attrs, slog.String("msg_id", c.MessageID))
	}
	if c.ProviderID != "" {
		attrs = append(attrs, slog.String("provider_id", c.ProviderID))
	}
	return attrs
}

// With returns a logger tagged with the context's fields.
func (c Context) With(log *slog.Logger) *slog.Logger {
	return log.With(c.Attrs()...)
}
