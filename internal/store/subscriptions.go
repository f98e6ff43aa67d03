package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yard-occupancy-backend/internal/ledger"
	"yard-occupancy-backend/internal/model"
)

// UpsertSubscription creates or replaces a subscription and the kinds it follows.
func (s *gormStore) UpsertSubscription(ctx context.Context, sub model.PushSubscription, kinds []ledger.Kind) error {
	sub.Kinds = nil
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&sub).Error; err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}

		if err := tx.Where("endpoint = ?", sub.Endpoint).Delete(&model.SubscriptionKind{}).Error; err != nil {
			return fmt.Errorf("failed to reset subscription kinds: %w", err)
		}

		if len(kinds) == 0 {
			return nil
		}
		rows := make([]model.SubscriptionKind, 0, len(kinds))
		seen := make(map[ledger.Kind]bool, len(kinds))
		for _, k := range kinds {
			if seen[k] {
				continue
			}
			seen[k] = true
			rows = append(rows, model.SubscriptionKind{Endpoint: sub.Endpoint, Kind: string(k)})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to store subscription kinds: %w", err)
		}
		return nil
	})
}

// DeleteSubscription removes a subscription and its kinds.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("endpoint = ?", endpoint).Delete(&model.SubscriptionKind{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.PushSubscription{Endpoint: endpoint}).Error
	})
}

// GetSubscription loads a subscription with its kinds.
func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	err := s.db.WithContext(ctx).Preload("Kinds").First(&sub, "endpoint = ?", endpoint).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// SubscriptionsForKind lists every subscription following kind.
func (s *gormStore) SubscriptionsForKind(ctx context.Context, kind ledger.Kind) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_kinds sk ON sk.endpoint = push_subscriptions.endpoint").
		Where("sk.kind = ?", string(kind)).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}
