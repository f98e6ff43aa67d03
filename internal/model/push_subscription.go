package model

import "time"

// PushSubscription holds the information for a browser push subscription.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Kinds []SubscriptionKind `gorm:"foreignKey:Endpoint;references:Endpoint;constraint:OnDelete:CASCADE"`
}

// SubscriptionKind ties a subscription to the resource kind it follows.
type SubscriptionKind struct {
	Endpoint string `gorm:"primaryKey"`
	Kind     string `gorm:"primaryKey;size:16"`
}
