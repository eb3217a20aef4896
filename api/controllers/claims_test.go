package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fallstrom/kvittofri-backend/internal/verifications"
	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
	"github.com/fallstrom/kvittofri-backend/pkg/enums"
	pkgerrors "github.com/fallstrom/kvittofri-backend/pkg/errors"
)

type stubVerificationService struct {
	submitted    *verifications.SubmitClaimInput
	submitResult *verifications.SubmitClaimResult
	submitErr    error

	reviewed     *models.Verification
	reviewErr    error
	lastDecision enums.ReviewStatus

	found  *models.Verification
	getErr error
}

func (s *stubVerificationService) SubmitClaim(ctx context.Context, input verifications.SubmitClaimInput) (*verifications.SubmitClaimResult, error) {
	s.submitted = &input
	return s.submitResult, s.submitErr
}

func (s *stubVerificationService) Review(ctx context.Context, id uuid.UUID, decision enums.ReviewStatus, reviewerID string) (*models.Verification, error) {
	s.lastDecision = decision
	return s.reviewed, s.reviewErr
}

func (s *stubVerificationService) GetByID(ctx context.Context, id uuid.UUID) (*models.Verification, error) {
	return s.found, s.getErr
}

func (s *stubVerificationService) AutoApproveWithTx(tx *gorm.DB, v *models.Verification, rate decimal.Decimal, now time.Time) error {
	return nil
}

func TestSubmitClaimSuccess(t *testing.T) {
	stub := &stubVerificationService{
		submitResult: &verifications.SubmitClaimResult{
			VerificationID: uuid.New(),
			FraudScore:     0.12,
		},
	}
	handler := SubmitClaim(stub, nil)

	body := `{"store_code":"123456","phone":"+46701234567","amount":"127.50","purchase_time":"2025-01-10T14:30:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/claims", strings.NewReader(body))
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}

	if stub.submitted == nil {
		t.Fatalf("service never called")
	}
	if stub.submitted.IPAddress != "203.0.113.9" {
		t.Fatalf("expected forwarded ip, got %s", stub.submitted.IPAddress)
	}
	if !stub.submitted.Amount.Equal(decimal.RequireFromString("127.50")) {
		t.Fatalf("unexpected amount %s", stub.submitted.Amount)
	}

	var envelope struct {
		Data map[string]any `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data["status"] != string(enums.ReviewStatusPending) {
		t.Fatalf("unexpected status %v", envelope.Data["status"])
	}
	if score, ok := envelope.Data["fraud_score"].(float64); !ok || score != 0.12 {
		t.Fatalf("expected fraud score in response, got %v", envelope.Data["fraud_score"])
	}
}

func TestSubmitClaimRejectsBadBody(t *testing.T) {
	handler := SubmitClaim(&stubVerificationService{}, nil)

	cases := []string{
		`{"phone":"+46701234567","amount":"10","purchase_time":"2025-01-10T14:30:00Z"}`,
		`{"store_code":"12345","phone":"+46701234567","amount":"10","purchase_time":"2025-01-10T14:30:00Z"}`,
		`{"store_code":"abc123","phone":"+46701234567","amount":"10","purchase_time":"2025-01-10T14:30:00Z"}`,
		`{"store_code":"123456","phone":"+46701234567","amount":"ten","purchase_time":"2025-01-10T14:30:00Z"}`,
		`not json`,
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/claims", strings.NewReader(body))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400 got %d", body, resp.Code)
		}
	}
}

func TestSubmitClaimUnknownCode(t *testing.T) {
	stub := &stubVerificationService{submitErr: pkgerrors.New(pkgerrors.CodeNotFound, "store code not found")}
	handler := SubmitClaim(stub, nil)

	body := `{"store_code":"999999","phone":"+46701234567","amount":"10.00","purchase_time":"2025-01-10T14:30:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/claims", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func newVerificationRouter(stub *stubVerificationService) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1/verifications/{verificationId}", func(r chi.Router) {
		r.Get("/", GetVerification(stub, nil))
		r.Post("/review", ReviewVerification(stub, nil))
	})
	return r
}

func TestReviewVerificationApplies(t *testing.T) {
	id := uuid.New()
	reviewer := "reviewer@butik.se"
	now := time.Date(2025, 1, 12, 9, 0, 0, 0, time.UTC)
	stub := &stubVerificationService{
		reviewed: &models.Verification{
			ID:             id,
			BusinessID:     uuid.New(),
			ReviewStatus:   enums.ReviewStatusApproved,
			ReviewedAt:     &now,
			ReviewedBy:     &reviewer,
			PurchaseAmount: decimal.RequireFromString("127.50"),
			PaymentAmount:  decimal.RequireFromString("127.50"),
		},
	}
	router := newVerificationRouter(stub)

	body := `{"decision":"approved","reviewer_id":"reviewer@butik.se"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verifications/"+id.String()+"/review", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if stub.lastDecision != enums.ReviewStatusApproved {
		t.Fatalf("unexpected decision %s", stub.lastDecision)
	}

	var envelope struct {
		Data verificationResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ReviewStatus != enums.ReviewStatusApproved {
		t.Fatalf("unexpected status %s", envelope.Data.ReviewStatus)
	}
}

func TestReviewVerificationTerminalConflict(t *testing.T) {
	id := uuid.New()
	stub := &stubVerificationService{
		reviewErr: pkgerrors.New(pkgerrors.CodeStateConflict, "verification already reviewed"),
	}
	router := newVerificationRouter(stub)

	body := `{"decision":"rejected","reviewer_id":"reviewer@butik.se"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verifications/"+id.String()+"/review", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", resp.Code)
	}
}

func TestReviewVerificationInvalidDecision(t *testing.T) {
	router := newVerificationRouter(&stubVerificationService{})

	body := `{"decision":"maybe","reviewer_id":"reviewer@butik.se"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verifications/"+uuid.NewString()+"/review", strings.NewReader(body))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestGetVerificationOmitsPhoneHash(t *testing.T) {
	id := uuid.New()
	stub := &stubVerificationService{
		found: &models.Verification{
			ID:                id,
			BusinessID:        uuid.New(),
			StoreCode:         "123456",
			CustomerPhoneHash: strings.Repeat("a", 64),
			PurchaseAmount:    decimal.RequireFromString("50.00"),
			ReviewStatus:      enums.ReviewStatusPending,
		},
	}
	router := newVerificationRouter(stub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/verifications/"+id.String()+"/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if strings.Contains(resp.Body.String(), strings.Repeat("a", 64)) {
		t.Fatalf("phone hash leaked in response body")
	}
}

func TestGetVerificationInvalidID(t *testing.T) {
	router := newVerificationRouter(&stubVerificationService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/verifications/not-a-uuid/", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
