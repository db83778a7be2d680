package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status represents the delivery lifecycle state of a message.
type Status string

const (
	StatusPending   Status = "pending"   // Created locally, not yet accepted by the provider
	StatusSent      Status = "sent"      // Accepted by the messaging provider
	StatusDelivered Status = "delivered" // Confirmed delivered to the recipient's device
	StatusRead      Status = "read"      // Confirmed read by the recipient
	StatusFailed    Status = "failed"    // Permanently failed
)

// statusRank orders the lifecycle so status updates can be applied
// idempotently: a replayed or out-of-order event never moves a message
// backwards (read never reverts to sent).
var statusRank = map[Status]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
	StatusFailed:    4,
}

// Rank returns the position of s in the delivery lifecycle, or -1 for an
// unknown status.
func (s Status) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// Supersedes reports whether s is a strictly later lifecycle state than prev.
func (s Status) Supersedes(prev Status) bool {
	return s.Rank() > prev.Rank()
}

// Direction distinguishes messages received from the provider from messages
// this system sends.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ContentKind is the closed set of message content types this subsystem
// understands. Anything else is carried as KindUnknown.
type ContentKind string

const (
	KindText     ContentKind = "text"
	KindImage    ContentKind = "image"
	KindAudio    ContentKind = "audio"
	KindVideo    ContentKind = "video"
	KindDocument ContentKind = "document"
	KindTemplate ContentKind = "template"
	KindUnknown  ContentKind = "unknown"
)

// Message is the core domain entity representing a single WhatsApp message,
// inbound or outbound.
type Message struct {
	ID         uuid.UUID // Internal identity
	ProviderID string    // Opaque message id assigned by the provider (wamid)
	Direction  Direction
	From       string
	To         string
	Kind       ContentKind
	Body       string // Text body, media caption, or template name depending on Kind
	ReplyToID  string // Provider id of the message this one replies to, if any
	Status     Status
	Timestamp  time.Time // Provider-reported event time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewInboundMessage builds a Message from an inbound provider event.
// The provider only forwards messages it has already delivered to us,
// so inbound messages start at delivered.
func NewInboundMessage(providerID, from, to string, kind ContentKind, body string, ts time.Time) Message {
	now := time.Now().UTC()
	return Message{
		ID:         uuid.New(),
		ProviderID: providerID,
		Direction:  DirectionInbound,
		From:       from,
		To:         to,
		Kind:       kind,
		Body:       body,
		Status:     StatusDelivered,
		Timestamp:  ts,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NewOutboundMessage builds a pending Message just before an outbound send.
func NewOutboundMessage(from, to string, kind ContentKind, body, replyToID string) Message {
	now := time.Now().UTC()
	return Message{
		ID:        uuid.New(),
		Direction: DirectionOutbound,
		From:      from,
		To:        to,
		Kind:      kind,
		Body:      body,
		ReplyToID: replyToID,
		Status:    StatusPending,
		Timestamp: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Domain errors
var (
	ErrMessageNotFound = errors.New("message not found")
	ErrStaleStatus     = errors.New("stale status update")
)
