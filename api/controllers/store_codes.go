package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fallstrom/kvittofri-backend/api/responses"
	"github.com/fallstrom/kvittofri-backend/api/validators"
	"github.com/fallstrom/kvittofri-backend/internal/storecodes"
	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
	pkgerrors "github.com/fallstrom/kvittofri-backend/pkg/errors"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
)

type storeCodeIssueRequest struct {
	LocationID *string `json:"location_id"`
}

// IssueStoreCode mints a fresh 6-digit code for the business.
func IssueStoreCode(svc storecodes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store code service unavailable"))
			return
		}

		businessID, err := uuid.Parse(chi.URLParam(r, "businessId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid business id"))
			return
		}

		// body is optional: issuing without one mints a business-wide code
		var payload storeCodeIssueRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		var locationID *uuid.UUID
		if payload.LocationID != nil {
			parsed, err := uuid.Parse(strings.TrimSpace(*payload.LocationID))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid location id"))
				return
			}
			locationID = &parsed
		}

		issued, err := svc.Issue(r.Context(), businessID, locationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, storeCodeResponseFromModel(issued))
	}
}

// ListStoreCodes returns every code issued to the business, active or not.
func ListStoreCodes(svc storecodes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "store code service unavailable"))
			return
		}

		businessID, err := uuid.Parse(chi.URLParam(r, "businessId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid business id"))
			return
		}

		codes, err := svc.ListByBusiness(r.Context(), businessID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]storeCodeResponse, 0, len(codes))
		for i := range codes {
			out = append(out, storeCodeResponseFromModel(&codes[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

type storeCodeResponse struct {
	ID         uuid.UUID  `json:"id"`
	Code       string     `json:"code"`
	BusinessID uuid.UUID  `json:"business_id"`
	LocationID *uuid.UUID `json:"location_id,omitempty"`
	Active     bool       `json:"active"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

func storeCodeResponseFromModel(m *models.StoreCode) storeCodeResponse {
	return storeCodeResponse{
		ID:         m.ID,
		Code:       m.Code,
		BusinessID: m.BusinessID,
		LocationID: m.LocationID,
		Active:     m.Active,
		ExpiresAt:  m.ExpiresAt,
		CreatedAt:  m.CreatedAt,
	}
}
