package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Business is a merchant enrolled in receipt-free verification.
type Business struct {
	ID                   uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name                 string          `gorm:"column:name;not null"`
	OrgNumber            *string         `gorm:"column:org_number"`
	VerificationEnabled  bool            `gorm:"column:verification_enabled;not null;default:false"`
	CommissionRate       decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,4);not null"`
	VATRate              decimal.Decimal `gorm:"column:vat_rate;type:numeric(5,4);not null"`
	TimeToleranceMinutes int             `gorm:"column:time_tolerance_minutes;not null;default:2"`
	AmountToleranceSEK   decimal.Decimal `gorm:"column:amount_tolerance_sek;type:numeric(8,2);not null"`
	NotificationEmails   pq.StringArray  `gorm:"column:notification_emails;type:text[]"`
	CreatedAt            time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
