package model

import (
	"time"

	"gorm.io/datatypes"

	"yard-occupancy-backend/internal/ledger"
)

// Ledger is the stored occupancy document of one resource kind. Resources
// holds the whole per-resource history as a JSON column.
type Ledger struct {
	ID        int64                                 `gorm:"primaryKey"`
	Kind      string                                `gorm:"uniqueIndex;size:16;not null"`
	Version   int64                                 `gorm:"not null"`
	Resources datatypes.JSONType[[]ledger.Resource] `gorm:"not null"`
	CreatedAt time.Time                             `gorm:"not null"`
	UpdatedAt time.Time                             `gorm:"not null"`
}
