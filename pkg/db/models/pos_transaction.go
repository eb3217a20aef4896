package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// POSTransaction is a point-of-sale transaction ingested from the merchant's
// register feed. Rows are append-only; ExternalID carries the register's own
// transaction identifier.
type POSTransaction struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ExternalID string          `gorm:"column:external_id;not null;uniqueIndex:ux_pos_transactions_external"`
	BusinessID uuid.UUID       `gorm:"column:business_id;type:uuid;not null;index"`
	LocationID *uuid.UUID      `gorm:"column:location_id;type:uuid"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	OccurredAt time.Time       `gorm:"column:occurred_at;not null;index"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}
