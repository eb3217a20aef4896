package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fallstrom/kvittofri-backend/pkg/enums"
)

// MonthlyBillingBatch aggregates one business's verifications for a calendar
// month. Totals are a derived view: they are always recomputed from the linked
// verifications, never mutated incrementally.
type MonthlyBillingBatch struct {
	ID                    uuid.UUID         `gorm:"type:uuid;primaryKey"`
	BusinessID            uuid.UUID         `gorm:"column:business_id;type:uuid;not null;uniqueIndex:ux_billing_batches_business_month"`
	BillingMonth          time.Time         `gorm:"column:billing_month;not null;uniqueIndex:ux_billing_batches_business_month"`
	TotalVerifications    int               `gorm:"column:total_verifications;not null;default:0"`
	ApprovedVerifications int               `gorm:"column:approved_verifications;not null;default:0"`
	RejectedVerifications int               `gorm:"column:rejected_verifications;not null;default:0"`
	TotalCustomerPayments decimal.Decimal   `gorm:"column:total_customer_payments;type:numeric(14,2);not null;default:0"`
	TotalCommission       decimal.Decimal   `gorm:"column:total_commission;type:numeric(14,2);not null;default:0"`
	TotalStoreCost        decimal.Decimal   `gorm:"column:total_store_cost;type:numeric(14,2);not null;default:0"`
	Status                enums.BatchStatus `gorm:"column:status;not null;default:'collecting';index"`
	ReviewDeadline        time.Time         `gorm:"column:review_deadline;not null;index"`
	PaymentDueDate        time.Time         `gorm:"column:payment_due_date;not null"`
	StoreInvoiceGenerated bool              `gorm:"column:store_invoice_generated;not null;default:false"`
	LastReminderAt        *time.Time        `gorm:"column:last_reminder_at"`
	CompletedAt           *time.Time        `gorm:"column:completed_at"`
	CreatedAt             time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
