// Package exports flattens claims and batches into row lists for the
// external CSV/PDF renderer. No core logic depends on its output.
package exports

import (
	"context"
	"time"

	"github.com/fallstrom/kvittofri-backend/internal/billing"
	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
	"github.com/fallstrom/kvittofri-backend/pkg/enums"
)

// Renderer consumes a flat row list to produce a document (CSV, PDF).
// Implemented by the external report renderer.
type Renderer interface {
	Render(ctx context.Context, name string, header []string, rows [][]string) error
}

// ClaimHeader is the column order for claim exports.
var ClaimHeader = []string{
	"verification_id", "business_id", "store_code", "amount",
	"purchase_time", "submitted_at", "fraud_score", "review_status",
	"reviewed_by", "payment_amount", "commission_amount", "store_cost",
}

// BatchHeader is the column order for batch exports.
var BatchHeader = []string{
	"batch_id", "business_id", "billing_month", "status",
	"total_verifications", "approved", "rejected", "pending",
	"total_customer_payments", "total_commission", "total_store_cost",
	"review_deadline", "payment_due_date",
}

// ClaimRows flattens verifications into renderer rows, claim header order.
func ClaimRows(claims []models.Verification) [][]string {
	rows := make([][]string, 0, len(claims))
	for _, c := range claims {
		reviewedBy := ""
		if c.ReviewedBy != nil {
			reviewedBy = *c.ReviewedBy
		}
		rows = append(rows, []string{
			c.ID.String(),
			c.BusinessID.String(),
			c.StoreCode,
			c.PurchaseAmount.StringFixed(2),
			c.PurchaseTime.UTC().Format(time.RFC3339),
			c.SubmittedAt.UTC().Format(time.RFC3339),
			formatScore(c.FraudScore),
			string(c.ReviewStatus),
			reviewedBy,
			c.PaymentAmount.StringFixed(2),
			c.CommissionAmount.StringFixed(2),
			c.StoreCost.StringFixed(2),
		})
	}
	return rows
}

// PendingReviewRows keeps only claims still awaiting a decision, for the
// manual review CSV sent with the review-due notification.
func PendingReviewRows(claims []models.Verification) [][]string {
	pending := make([]models.Verification, 0, len(claims))
	for _, c := range claims {
		if c.ReviewStatus == enums.ReviewStatusPending {
			pending = append(pending, c)
		}
	}
	return ClaimRows(pending)
}

// BatchRows flattens batch summaries into renderer rows, batch header order.
func BatchRows(summaries []billing.BatchSummary) [][]string {
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.BatchID.String(),
			s.BusinessID.String(),
			s.BillingMonth.Format("2006-01"),
			string(s.Status),
			itoa(s.TotalVerifications),
			itoa(s.ApprovedVerifications),
			itoa(s.RejectedVerifications),
			itoa(s.PendingVerifications),
			s.TotalCustomerPayments.StringFixed(2),
			s.TotalCommission.StringFixed(2),
			s.TotalStoreCost.StringFixed(2),
			s.ReviewDeadline.UTC().Format(time.RFC3339),
			s.PaymentDueDate.UTC().Format(time.RFC3339),
		})
	}
	return rows
}
