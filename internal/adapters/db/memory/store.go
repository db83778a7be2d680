// Package memory is an in-process ports.MessageStore used when no database
// is configured and by end-to-end tests. State is lost on restart, which is
// acceptable here: durable persistence belongs to the CRM collaborator.
package memory

import (
	"context"
	"sync"
	"time"

	"whatsapp-gateway/internal/domain"
)

// Store keeps messages in a map keyed by provider id.
type Store struct {
	mu   sync.RWMutex
	msgs map[string]domain.Message
}

// New creates an empty Store.
func New() *Store {
	return &Store{msgs: make(map[string]domain.Message)}
}

// StoreIncomingMessage records an inbound message. Replays of the same
// provider id are ignored.
func (s *Store) StoreIncomingMessage(ctx context.Context, msg domain.Message) error {
	return s.insert(msg)
}

// StoreSentMessage records an outbound message.
func (s *Store) StoreSentMessage(ctx context.Context, msg domain.Message) error {
	return s.insert(msg)
}

func (s *Store) insert(msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.msgs[msg.ProviderID]; exists {
		return nil
	}
	s.msgs[msg.ProviderID] = msg
	return nil
}

// UpdateMessageStatus applies a status event with update-if-newer semantics.
func (s *Store) UpdateMessageStatus(ctx context.Context, providerID string, status domain.Status, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.msgs[providerID]
	if !ok {
		return domain.ErrMessageNotFound
	}
	if !status.Supersedes(msg.Status) {
		return domain.ErrStaleStatus
	}

	msg.Status = status
	msg.Timestamp = ts
	msg.UpdatedAt = time.Now().UTC()
	s.msgs[providerID] = msg
	return nil
}

// Get returns the stored message for a provider id, if any.
func (s *Store) Get(providerID string) (domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.msgs[providerID]
	return msg, ok
}

// Len returns the number of stored messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}
