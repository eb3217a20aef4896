package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fallstrom/kvittofri-backend/api/responses"
	"github.com/fallstrom/kvittofri-backend/api/validators"
	"github.com/fallstrom/kvittofri-backend/internal/businesses"
	"github.com/fallstrom/kvittofri-backend/internal/matching"
	pkgerrors "github.com/fallstrom/kvittofri-backend/pkg/errors"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
	"github.com/fallstrom/kvittofri-backend/pkg/types"
)

type matchReportRequest struct {
	Claims []matchClaimRequest `json:"claims" validate:"required,min=1,max=500,dive"`
}

type matchClaimRequest struct {
	Amount       string    `json:"amount" validate:"required"`
	PurchaseTime time.Time `json:"purchase_time" validate:"required"`
}

type matchReportResponse struct {
	Total             int      `json:"total"`
	Matched           int      `json:"matched"`
	MatchRate         float64  `json:"match_rate"`
	HighConfidence    int      `json:"high_confidence"`
	MediumConfidence  int      `json:"medium_confidence"`
	LowConfidence     int      `json:"low_confidence"`
	VeryLowConfidence int      `json:"very_low_confidence"`
	Recommendations   []string `json:"recommendations,omitempty"`
}

// MatchReport runs a batch of claims against the business's POS feed and
// reports confidence buckets plus operator recommendations. A feed outage
// surfaces as a dependency error, never as a failed match.
func MatchReport(svc matching.Service, bizRepo businesses.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || bizRepo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "matching service unavailable"))
			return
		}

		businessID, err := uuid.Parse(chi.URLParam(r, "businessId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid business id"))
			return
		}

		business, err := bizRepo.FindByID(r.Context(), businessID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "business not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading business"))
			return
		}

		var payload matchReportRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		claims := make([]matching.Claim, 0, len(payload.Claims))
		for _, raw := range payload.Claims {
			amount, err := decimal.NewFromString(strings.TrimSpace(raw.Amount))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid claim amount"))
				return
			}
			claims = append(claims, matching.Claim{Amount: amount, PurchaseTime: raw.PurchaseTime})
		}

		settings := types.ToleranceSettings{
			TimeToleranceMinutes: business.TimeToleranceMinutes,
			AmountToleranceSEK:   business.AmountToleranceSEK,
		}

		report, err := svc.MatchBatch(r.Context(), businessID, claims, settings)
		if err != nil {
			if errors.Is(err, matching.ErrFeedUnavailable) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pos feed unavailable"))
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, matchReportResponse{
			Total:             report.Total,
			Matched:           report.Matched,
			MatchRate:         report.MatchRate,
			HighConfidence:    report.HighConfidence,
			MediumConfidence:  report.MediumConfidence,
			LowConfidence:     report.LowConfidence,
			VeryLowConfidence: report.VeryLowConfidence,
			Recommendations:   report.Recommendations,
		})
	}
}
