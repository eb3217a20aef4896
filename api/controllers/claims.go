package controllers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fallstrom/kvittofri-backend/api/responses"
	"github.com/fallstrom/kvittofri-backend/api/validators"
	"github.com/fallstrom/kvittofri-backend/internal/verifications"
	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
	"github.com/fallstrom/kvittofri-backend/pkg/enums"
	pkgerrors "github.com/fallstrom/kvittofri-backend/pkg/errors"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
)

type claimSubmitRequest struct {
	StoreCode           string    `json:"store_code" validate:"required,len=6,numeric"`
	Phone               string    `json:"phone" validate:"required"`
	Amount              string    `json:"amount" validate:"required"`
	PurchaseTime        time.Time `json:"purchase_time" validate:"required"`
	DeviceFingerprintID *string   `json:"device_fingerprint_id"`
}

func (req claimSubmitRequest) toInput(r *http.Request) (verifications.SubmitClaimInput, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		return verifications.SubmitClaimInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}

	return verifications.SubmitClaimInput{
		StoreCode:    strings.TrimSpace(req.StoreCode),
		Phone:        strings.TrimSpace(req.Phone),
		Amount:       amount,
		PurchaseTime: req.PurchaseTime,
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
		Headers: map[string]string{
			"Accept":          r.Header.Get("Accept"),
			"Accept-Language": r.Header.Get("Accept-Language"),
		},
		DeviceFingerprintID: req.DeviceFingerprintID,
	}, nil
}

// SubmitClaim handles the claim intake endpoint.
func SubmitClaim(svc verifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verification service unavailable"))
			return
		}

		var payload claimSubmitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.SubmitClaim(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"verification_id": result.VerificationID,
			"fraud_score":     result.FraudScore,
			"status":          enums.ReviewStatusPending,
		})
	}
}

// GetVerification returns the stored verification including fraud context,
// for the review tooling.
func GetVerification(svc verifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verification service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "verificationId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid verification id"))
			return
		}

		verification, err := svc.GetByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, verificationResponseFromModel(verification))
	}
}

type reviewRequest struct {
	Decision   string `json:"decision" validate:"required"`
	ReviewerID string `json:"reviewer_id" validate:"required"`
}

// ReviewVerification applies a merchant reviewer's approve or reject
// decision to a pending verification.
func ReviewVerification(svc verifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "verification service unavailable"))
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "verificationId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid verification id"))
			return
		}

		var payload reviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		decision, err := enums.ParseReviewStatus(strings.TrimSpace(payload.Decision))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "decision must be approved or rejected"))
			return
		}

		reviewed, err := svc.Review(r.Context(), id, decision, strings.TrimSpace(payload.ReviewerID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, verificationResponseFromModel(reviewed))
	}
}

type verificationResponse struct {
	ID               uuid.UUID          `json:"id"`
	BusinessID       uuid.UUID          `json:"business_id"`
	StoreCode        string             `json:"store_code"`
	PurchaseAmount   decimal.Decimal    `json:"purchase_amount"`
	PurchaseTime     time.Time          `json:"purchase_time"`
	FraudScore       float64            `json:"fraud_score"`
	FraudFlags       json.RawMessage    `json:"fraud_flags,omitempty"`
	ReviewStatus     enums.ReviewStatus `json:"review_status"`
	ReviewedAt       *time.Time         `json:"reviewed_at,omitempty"`
	ReviewedBy       *string            `json:"reviewed_by,omitempty"`
	BillingBatchID   *uuid.UUID         `json:"billing_batch_id,omitempty"`
	PaymentAmount    decimal.Decimal    `json:"payment_amount"`
	CommissionAmount decimal.Decimal    `json:"commission_amount"`
	StoreCost        decimal.Decimal    `json:"store_cost"`
	SubmittedAt      time.Time          `json:"submitted_at"`
}

// verificationResponseFromModel never exposes the customer phone hash.
func verificationResponseFromModel(m *models.Verification) verificationResponse {
	return verificationResponse{
		ID:               m.ID,
		BusinessID:       m.BusinessID,
		StoreCode:        m.StoreCode,
		PurchaseAmount:   m.PurchaseAmount,
		PurchaseTime:     m.PurchaseTime,
		FraudScore:       m.FraudScore,
		FraudFlags:       m.FraudFlags,
		ReviewStatus:     m.ReviewStatus,
		ReviewedAt:       m.ReviewedAt,
		ReviewedBy:       m.ReviewedBy,
		BillingBatchID:   m.BillingBatchID,
		PaymentAmount:    m.PaymentAmount,
		CommissionAmount: m.CommissionAmount,
		StoreCost:        m.StoreCost,
		SubmittedAt:      m.SubmittedAt,
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
