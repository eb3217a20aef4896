package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fallstrom/kvittofri-backend/api/responses"
	"github.com/fallstrom/kvittofri-backend/api/validators"
	"github.com/fallstrom/kvittofri-backend/internal/billing"
	"github.com/fallstrom/kvittofri-backend/pkg/enums"
	pkgerrors "github.com/fallstrom/kvittofri-backend/pkg/errors"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
)

type batchSummaryResponse struct {
	BatchID               uuid.UUID         `json:"batch_id"`
	BusinessID            uuid.UUID         `json:"business_id"`
	BillingMonth          string            `json:"billing_month"`
	Status                enums.BatchStatus `json:"status"`
	TotalVerifications    int               `json:"total_verifications"`
	ApprovedVerifications int               `json:"approved_verifications"`
	RejectedVerifications int               `json:"rejected_verifications"`
	PendingVerifications  int               `json:"pending_verifications"`
	TotalCustomerPayments decimal.Decimal   `json:"total_customer_payments"`
	TotalCommission       decimal.Decimal   `json:"total_commission"`
	TotalStoreCost        decimal.Decimal   `json:"total_store_cost"`
	ReviewDeadline        time.Time         `json:"review_deadline"`
	PaymentDueDate        time.Time         `json:"payment_due_date"`
}

// BatchSummary serves a business's monthly billing batch totals.
func BatchSummary(svc billing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "billing service unavailable"))
			return
		}

		businessID, err := uuid.Parse(chi.URLParam(r, "businessId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid business id"))
			return
		}

		month, err := validators.ParseMonth(chi.URLParam(r, "month"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.GetSummary(r.Context(), businessID, month)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, batchSummaryResponse{
			BatchID:               summary.BatchID,
			BusinessID:            summary.BusinessID,
			BillingMonth:          summary.BillingMonth.Format("2006-01"),
			Status:                summary.Status,
			TotalVerifications:    summary.TotalVerifications,
			ApprovedVerifications: summary.ApprovedVerifications,
			RejectedVerifications: summary.RejectedVerifications,
			PendingVerifications:  summary.PendingVerifications,
			TotalCustomerPayments: summary.TotalCustomerPayments,
			TotalCommission:       summary.TotalCommission,
			TotalStoreCost:        summary.TotalStoreCost,
			ReviewDeadline:        summary.ReviewDeadline,
			PaymentDueDate:        summary.PaymentDueDate,
		})
	}
}
