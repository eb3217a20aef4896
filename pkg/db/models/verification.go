package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fallstrom/kvittofri-backend/pkg/enums"
)

// Verification is one customer claim. It is the unit of audit: rows are never
// deleted, and once the review status is terminal only corrective records may
// amend the outcome.
type Verification struct {
	ID                  uuid.UUID          `gorm:"type:uuid;primaryKey"`
	BusinessID          uuid.UUID          `gorm:"column:business_id;type:uuid;not null;index"`
	StoreCode           string             `gorm:"column:store_code;size:6;not null"`
	CustomerPhoneHash   string             `gorm:"column:customer_phone_hash;not null;index"`
	PurchaseAmount      decimal.Decimal    `gorm:"column:purchase_amount;type:numeric(12,2);not null"`
	PurchaseTime        time.Time          `gorm:"column:purchase_time;not null"`
	DeviceFingerprintID *string            `gorm:"column:device_fingerprint_id"`
	IPAddress           string             `gorm:"column:ip_address"`
	FraudScore          float64            `gorm:"column:fraud_score;not null;default:0"`
	FraudFlags          json.RawMessage    `gorm:"column:fraud_flags;type:jsonb"`
	ReviewStatus        enums.ReviewStatus `gorm:"column:review_status;not null;default:'pending';index"`
	ReviewedAt          *time.Time         `gorm:"column:reviewed_at"`
	ReviewedBy          *string            `gorm:"column:reviewed_by"`
	BillingBatchID      *uuid.UUID         `gorm:"column:billing_batch_id;type:uuid;index"`
	PaymentAmount       decimal.Decimal    `gorm:"column:payment_amount;type:numeric(12,2);not null;default:0"`
	CommissionAmount    decimal.Decimal    `gorm:"column:commission_amount;type:numeric(12,2);not null;default:0"`
	StoreCost           decimal.Decimal    `gorm:"column:store_cost;type:numeric(12,2);not null;default:0"`
	SubmittedAt         time.Time          `gorm:"column:submitted_at;not null;index"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
