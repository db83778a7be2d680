package webhook

import (
	"strconv"
	"time"

	"whatsapp-gateway/internal/domain"
)

// Envelope is the provider's webhook payload: a batch of entries, each
// carrying changes that hold either inbound messages or delivery statuses.
// Immutable once decoded; it lives only for the duration of processing.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry is one account-level notification inside an envelope.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change carries the actual event data. Field is "messages" for both
// inbound messages and status updates; Value holds whichever list applies.
type Change struct {
	Field string      `json:"field"`
	Value ChangeValue `json:"value"`
}

// ChangeValue is the payload of a single change.
type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Metadata         Metadata         `json:"metadata"`
	Contacts         []Contact        `json:"contacts,omitempty"`
	Messages         []InboundMessage `json:"messages,omitempty"`
	Statuses         []StatusEvent    `json:"statuses,omitempty"`
}

// Metadata identifies the business phone number the event belongs to.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact is the sender's profile as reported by the provider.
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// InboundMessage is one message received from a WhatsApp user.
type InboundMessage struct {
	ID        string         `json:"id"`
	From      string         `json:"from"`
	Timestamp string         `json:"timestamp"` // Unix seconds as a string
	Type      string         `json:"type"`
	Text      *TextContent   `json:"text,omitempty"`
	Image     *MediaContent  `json:"image,omitempty"`
	Audio     *MediaContent  `json:"audio,omitempty"`
	Video     *MediaContent  `json:"video,omitempty"`
	Document  *MediaContent  `json:"document,omitempty"`
	Context   *ReplyContext  `json:"context,omitempty"`
}

// TextContent is the body of a text message.
type TextContent struct {
	Body string `json:"body"`
}

// MediaContent references provider-hosted media.
type MediaContent struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// ReplyContext links a message to the one it replies to.
type ReplyContext struct {
	From string `json:"from,omitempty"`
	ID   string `json:"id"`
}

// StatusEvent is a delivery-status update for a previously sent message.
type StatusEvent struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Timestamp   string          `json:"timestamp"`
	RecipientID string          `json:"recipient_id"`
	Errors      []ProviderError `json:"errors,omitempty"`
}

// ProviderError is the provider's error detail attached to a failed status.
type ProviderError struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// ContentKind maps the wire message type onto the domain's closed set.
func (m InboundMessage) ContentKind() domain.ContentKind {
	switch m.Type {
	case "text":
		return domain.KindText
	case "image":
		return domain.KindImage
	case "audio":
		return domain.KindAudio
	case "video":
		return domain.KindVideo
	case "document":
		return domain.KindDocument
	default:
		return domain.KindUnknown
	}
}

// BodyText extracts the human-readable body: the text body for text
// messages, the caption for media. Empty when neither applies.
func (m InboundMessage) BodyText() string {
	if m.Text != nil {
		return m.Text.Body
	}
	for _, media := range []*MediaContent{m.Image, m.Audio, m.Video, m.Document} {
		if media != nil {
			return media.Caption
		}
	}
	return ""
}

// EventTime converts the provider's unix-seconds timestamp. Falls back to
// now for missing or malformed values; the provider occasionally omits it.
func eventTime(raw string) time.Time {
	if raw == "" {
		return time.Now().UTC()
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}

// statusFromWire maps the provider's status strings onto domain statuses.
func statusFromWire(s string) (domain.Status, bool) {
	switch s {
	case "sent":
		return domain.StatusSent, true
	case "delivered":
		return domain.StatusDelivered, true
	case "read":
		return domain.StatusRead, true
	case "failed":
		return domain.StatusFailed, true
	}
	return "", false
}
