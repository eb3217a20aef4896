// Package settlement is the boundary to payout and invoicing. The core only
// hands finalized batch totals across; money movement happens downstream.
package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is the store-facing bill for one finalized batch.
type Invoice struct {
	BatchID    uuid.UUID       `json:"batch_id"`
	BusinessID uuid.UUID       `json:"business_id"`
	Commission decimal.Decimal `json:"commission"`
	VAT        decimal.Decimal `json:"vat"`
	TotalDue   decimal.Decimal `json:"total_due"`
	DueDate    time.Time       `json:"due_date"`
}

// PayoutRequest carries the customer payment totals for one batch.
type PayoutRequest struct {
	BatchID       uuid.UUID       `json:"batch_id"`
	BusinessID    uuid.UUID       `json:"business_id"`
	TotalPayments decimal.Decimal `json:"total_payments"`
	Claims        int             `json:"claims"`
}

// PayoutResult reports the downstream executor's acknowledgement.
type PayoutResult struct {
	Success   bool
	Reference string
}

// Executor performs the settlement hand-off for a finalized batch.
type Executor interface {
	GenerateInvoice(ctx context.Context, invoice Invoice) error
	Payout(ctx context.Context, request PayoutRequest) (*PayoutResult, error)
}

// BuildInvoice derives the invoice lines from a batch's commission total.
// VAT applies to the commission only; the customer payments are a
// pass-through, not a taxable service.
func BuildInvoice(batchID, businessID uuid.UUID, commission, vatRate decimal.Decimal, now time.Time, dueDays int) Invoice {
	vat := commission.Mul(vatRate).Round(2)
	return Invoice{
		BatchID:    batchID,
		BusinessID: businessID,
		Commission: commission,
		VAT:        vat,
		TotalDue:   commission.Add(vat),
		DueDate:    now.AddDate(0, 0, dueDays),
	}
}
