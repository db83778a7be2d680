// Package postgres is the reference implementation of ports.MessageStore.
// The delivery core treats persistence as a collaborator; this adapter
// exists so the shipped binaries are runnable end to end.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whatsapp-gateway/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MessageRecord is the persisted form of a domain.Message.
type MessageRecord struct {
	ID         string `gorm:"primaryKey;type:uuid"`
	ProviderID string `gorm:"uniqueIndex;size:128"`
	Direction  string `gorm:"size:16;index"`
	FromAddr   string `gorm:"size:32"`
	ToAddr     string `gorm:"size:32;index"`
	Kind       string `gorm:"size:16"`
	Body       string
	ReplyToID  string `gorm:"size:128"`
	Status     string `gorm:"size:16"`
	StatusRank int
	Timestamp  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName keeps the table name stable regardless of gorm's pluralisation.
func (MessageRecord) TableName() string { return "messages" }

// Store implements ports.MessageStore on PostgreSQL.
type Store struct {
	db *gorm.DB
}

// New opens a connection pool and returns a Store.
func New(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StoreIncomingMessage persists an inbound message. Replayed webhook
// deliveries for the same provider id are ignored.
func (s *Store) StoreIncomingMessage(ctx context.Context, msg domain.Message) error {
	return s.insert(ctx, msg)
}

// StoreSentMessage persists an outbound message the provider accepted.
func (s *Store) StoreSentMessage(ctx context.Context, msg domain.Message) error {
	return s.insert(ctx, msg)
}

func (s *Store) insert(ctx context.Context, msg domain.Message) error {
	rec := toRecord(msg)
	err := s.db.WithContext(ctx).
		Where(MessageRecord{ProviderID: rec.ProviderID}).
		FirstOrCreate(&rec).Error
	if err != nil {
		return fmt.Errorf("insert message %s: %w", msg.ID, err)
	}
	return nil
}

// UpdateMessageStatus applies a delivery-status event idempotently: the row
// is only touched when the new status outranks the stored one, so replays
// and out-of-order events cannot move a message backwards.
func (s *Store) UpdateMessageStatus(ctx context.Context, providerID string, status domain.Status, ts time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&MessageRecord{}).
		Where("provider_id = ? AND status_rank < ?", providerID, status.Rank()).
		Updates(map[string]any{
			"status":      string(status),
			"status_rank": status.Rank(),
			"timestamp":   ts,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("update status for %s: %w", providerID, res.Error)
	}
	if res.RowsAffected == 0 {
		return s.explainNoop(ctx, providerID)
	}
	return nil
}

// explainNoop distinguishes an unknown provider id from a stale update.
func (s *Store) explainNoop(ctx context.Context, providerID string) error {
	var rec MessageRecord
	err := s.db.WithContext(ctx).
		Select("id").
		Where("provider_id = ?", providerID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup message %s: %w", providerID, err)
	}
	return domain.ErrStaleStatus
}

func toRecord(msg domain.Message) MessageRecord {
	return MessageRecord{
		ID:         msg.ID.String(),
		ProviderID: msg.ProviderID,
		Direction:  string(msg.Direction),
		FromAddr:   msg.From,
		ToAddr:     msg.To,
		Kind:       string(msg.Kind),
		Body:       msg.Body,
		ReplyToID:  msg.ReplyToID,
		Status:     string(msg.Status),
		StatusRank: msg.Status.Rank(),
		Timestamp:  msg.Timestamp,
		CreatedAt:  msg.CreatedAt,
		UpdatedAt:  msg.UpdatedAt,
	}
}
