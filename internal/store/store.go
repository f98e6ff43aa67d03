package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"yard-occupancy-backend/internal/ledger"
	"yard-occupancy-backend/internal/model"
)

// ErrSubscriptionNotFound is returned when no subscription matches an endpoint.
var ErrSubscriptionNotFound = errors.New("store: subscription not found")

// Store defines the interface for all database operations.
type Store interface {
	ledger.Repository

	UpsertSubscription(ctx context.Context, sub model.PushSubscription, kinds []ledger.Kind) error
	DeleteSubscription(ctx context.Context, endpoint string) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	SubscriptionsForKind(ctx context.Context, kind ledger.Kind) ([]model.PushSubscription, error)

	Ping(ctx context.Context) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Find loads the ledger document of kind.
func (s *gormStore) Find(ctx context.Context, kind ledger.Kind) (*ledger.Document, error) {
	var rec model.Ledger
	err := s.db.WithContext(ctx).Where("kind = ?", string(kind)).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s ledger: %w", kind, err)
	}
	return toDocument(rec), nil
}

// Create inserts a new ledger document, refusing a second one for the same kind.
func (s *gormStore) Create(ctx context.Context, doc *ledger.Document) error {
	rec := model.Ledger{
		Kind:      string(doc.Kind),
		Version:   doc.Version,
		Resources: datatypes.NewJSONType(doc.Resources),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.Ledger{}).Where("kind = ?", rec.Kind).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check for existing %s ledger: %w", rec.Kind, err)
		}
		if count > 0 {
			return ledger.ErrAlreadyExists
		}
		if err := tx.Create(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ledger.ErrAlreadyExists
			}
			return fmt.Errorf("failed to create %s ledger: %w", rec.Kind, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	doc.ID = rec.ID
	doc.CreatedAt = rec.CreatedAt
	doc.UpdatedAt = rec.UpdatedAt
	return nil
}

// Update writes the whole document only if its version is unchanged in the database.
func (s *gormStore) Update(ctx context.Context, doc *ledger.Document) error {
	now := s.now()
	res := s.db.WithContext(ctx).
		Model(&model.Ledger{}).
		Where("id = ? AND version = ?", doc.ID, doc.Version).
		Updates(map[string]interface{}{
			"resources":  datatypes.NewJSONType(doc.Resources),
			"version":    doc.Version + 1,
			"updated_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update %s ledger %d: %w", doc.Kind, doc.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ledger.ErrVersionConflict
	}

	doc.Version++
	doc.UpdatedAt = now
	return nil
}

// Ping checks that the database answers.
func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func toDocument(rec model.Ledger) *ledger.Document {
	resources := rec.Resources.Data()
	for i := range resources {
		if resources[i].Daily == nil {
			resources[i].Daily = make(ledger.Daily)
		}
	}
	return &ledger.Document{
		ID:        rec.ID,
		Kind:      ledger.Kind(rec.Kind),
		Version:   rec.Version,
		Resources: resources,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}
