package models

import (
	"time"

	"github.com/google/uuid"
)

// StoreCode is a 6-digit code customers enter instead of scanning a receipt.
// At most one active, non-expired row may exist per code value.
type StoreCode struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Code       string     `gorm:"column:code;size:6;not null;uniqueIndex:ux_store_codes_code"`
	BusinessID uuid.UUID  `gorm:"column:business_id;type:uuid;not null;index"`
	LocationID *uuid.UUID `gorm:"column:location_id;type:uuid"`
	Active     bool       `gorm:"column:active;not null;default:true"`
	ExpiresAt  time.Time  `gorm:"column:expires_at;not null"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
