package verifications

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fallstrom/kvittofri-backend/internal/businesses"
	"github.com/fallstrom/kvittofri-backend/internal/fraud"
	"github.com/fallstrom/kvittofri-backend/internal/storecodes"
	"github.com/fallstrom/kvittofri-backend/pkg/config"
	"github.com/fallstrom/kvittofri-backend/pkg/db"
	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
	"github.com/fallstrom/kvittofri-backend/pkg/enums"
	pkgerrors "github.com/fallstrom/kvittofri-backend/pkg/errors"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
)

// SystemReviewer is stamped as reviewedBy on deadline-driven auto-approvals.
const SystemReviewer = "system:deadline-enforcement"

// SubmitClaimInput carries a raw claim plus the request metadata the fraud
// scorer inspects.
type SubmitClaimInput struct {
	StoreCode           string
	Phone               string
	Amount              decimal.Decimal
	PurchaseTime        time.Time
	IPAddress           string
	UserAgent           string
	Headers             map[string]string
	DeviceFingerprintID *string
}

// SubmitClaimResult is returned to the claiming customer.
type SubmitClaimResult struct {
	VerificationID uuid.UUID
	FraudScore     float64
}

// TotalsRecomputer recomputes a billing batch's totals from its linked
// verifications, inside the caller's transaction.
type TotalsRecomputer interface {
	RecomputeTotalsWithTx(tx *gorm.DB, batchID uuid.UUID) error
}

// Service owns the verification lifecycle from claim submission through
// terminal review.
type Service interface {
	SubmitClaim(ctx context.Context, input SubmitClaimInput) (*SubmitClaimResult, error)
	Review(ctx context.Context, verificationID uuid.UUID, decision enums.ReviewStatus, reviewerID string) (*models.Verification, error)
	GetByID(ctx context.Context, verificationID uuid.UUID) (*models.Verification, error)
	AutoApproveWithTx(tx *gorm.DB, verification *models.Verification, commissionRate decimal.Decimal, now time.Time) error
}

// ServiceImpl is the concrete service; exported so the billing totals
// recomputer can be attached after both services exist.
type ServiceImpl struct {
	repo       Repository
	businesses businesses.Repository
	codes      storecodes.Service
	scorer     *fraud.Scorer
	client     *db.Client
	totals     TotalsRecomputer
	cfg        config.VerificationConfig
	logg       *logger.Logger
	now        func() time.Time
}

var _ Service = (*ServiceImpl)(nil)

// NewService wires the verification lifecycle. The totals recomputer may be
// nil until billing is attached; reviews of unbatched verifications work
// without it.
func NewService(
	repo Repository,
	businessRepo businesses.Repository,
	codes storecodes.Service,
	scorer *fraud.Scorer,
	client *db.Client,
	cfg config.VerificationConfig,
	logg *logger.Logger,
) (*ServiceImpl, error) {
	if repo == nil || businessRepo == nil || codes == nil || scorer == nil || client == nil || logg == nil {
		return nil, fmt.Errorf("verification service dependencies missing")
	}
	return &ServiceImpl{
		repo:       repo,
		businesses: businessRepo,
		codes:      codes,
		scorer:     scorer,
		client:     client,
		cfg:        cfg,
		logg:       logg,
		now:        time.Now,
	}, nil
}

// AttachTotalsRecomputer breaks the construction cycle with the billing
// service, which itself needs this service for auto-approval.
func (s *ServiceImpl) AttachTotalsRecomputer(totals TotalsRecomputer) {
	s.totals = totals
}

// SubmitClaim resolves the store code, scores the claim, and persists it as
// a pending verification. Scoring is fail-open and never blocks ingestion.
func (s *ServiceImpl) SubmitClaim(ctx context.Context, input SubmitClaimInput) (*SubmitClaimResult, error) {
	if err := validateInput(input, s.now().UTC()); err != nil {
		return nil, err
	}

	resolution, err := s.codes.Resolve(ctx, input.StoreCode)
	if err != nil {
		return nil, err
	}

	submittedAt := s.now().UTC()
	phoneHash := HashPhone(input.Phone)

	result := s.scorer.Score(ctx, fraud.Claim{
		BusinessID:          resolution.BusinessID,
		PhoneHash:           phoneHash,
		Amount:              input.Amount,
		PurchaseTime:        input.PurchaseTime,
		SubmittedAt:         submittedAt,
		IPAddress:           input.IPAddress,
		UserAgent:           input.UserAgent,
		Headers:             input.Headers,
		DeviceFingerprintID: input.DeviceFingerprintID,
	})

	flags, err := json.Marshal(result.Flags)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode fraud flags")
	}

	verification := &models.Verification{
		ID:                  uuid.New(),
		BusinessID:          resolution.BusinessID,
		StoreCode:           input.StoreCode,
		CustomerPhoneHash:   phoneHash,
		PurchaseAmount:      input.Amount,
		PurchaseTime:        input.PurchaseTime.UTC(),
		DeviceFingerprintID: input.DeviceFingerprintID,
		IPAddress:           input.IPAddress,
		FraudScore:          result.Score,
		FraudFlags:          flags,
		ReviewStatus:        enums.ReviewStatusPending,
		SubmittedAt:         submittedAt,
	}
	if err := s.repo.Create(ctx, verification); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist verification")
	}

	s.logg.Info(
		s.logg.WithFields(ctx, map[string]any{
			"verification_id": verification.ID.String(),
			"business_id":     verification.BusinessID.String(),
			"fraud_score":     verification.FraudScore,
		}),
		"claim submitted",
	)
	return &SubmitClaimResult{VerificationID: verification.ID, FraudScore: result.Score}, nil
}

// Review applies a manual reviewer decision. Terminal records reject any
// further transition. A concurrency conflict on the batch totals is retried
// once with fresh reads.
func (s *ServiceImpl) Review(ctx context.Context, verificationID uuid.UUID, decision enums.ReviewStatus, reviewerID string) (*models.Verification, error) {
	if decision != enums.ReviewStatusApproved && decision != enums.ReviewStatusRejected {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be approved or rejected")
	}
	if strings.TrimSpace(reviewerID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reviewer id required")
	}

	reviewed, err := s.reviewOnce(ctx, verificationID, decision, reviewerID)
	if err != nil && isConcurrencyConflict(err) {
		s.logg.Warn(s.logg.WithField(ctx, "verification_id", verificationID.String()), "review conflicted, retrying once")
		reviewed, err = s.reviewOnce(ctx, verificationID, decision, reviewerID)
	}
	return reviewed, err
}

func (s *ServiceImpl) reviewOnce(ctx context.Context, verificationID uuid.UUID, decision enums.ReviewStatus, reviewerID string) (*models.Verification, error) {
	var reviewed *models.Verification
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		verification, err := s.repo.FindByIDWithTx(tx, verificationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "verification not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load verification")
		}
		if verification.ReviewStatus.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("verification already %s", verification.ReviewStatus)).
				WithDetails(map[string]string{"review_status": string(verification.ReviewStatus)})
		}

		now := s.now().UTC()
		verification.ReviewStatus = decision
		verification.ReviewedAt = &now
		verification.ReviewedBy = &reviewerID
		if decision == enums.ReviewStatusApproved {
			business, err := s.businesses.FindByID(ctx, verification.BusinessID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load business for payment computation")
			}
			applyPayment(verification, s.commissionRate(business))
		}

		if err := s.repo.UpdateWithTx(tx, verification); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist review")
		}
		if verification.BillingBatchID != nil && s.totals != nil {
			if err := s.totals.RecomputeTotalsWithTx(tx, *verification.BillingBatchID); err != nil {
				return err
			}
		}
		reviewed = verification
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reviewed, nil
}

func (s *ServiceImpl) GetByID(ctx context.Context, verificationID uuid.UUID) (*models.Verification, error) {
	verification, err := s.repo.FindByID(ctx, verificationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "verification not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load verification")
	}
	return verification, nil
}

// AutoApproveWithTx transitions a still-pending verification past its
// batch's review deadline. A missed deadline bills the full claimed amount,
// same computation as a manual approval.
func (s *ServiceImpl) AutoApproveWithTx(tx *gorm.DB, verification *models.Verification, commissionRate decimal.Decimal, now time.Time) error {
	if verification.ReviewStatus.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("verification already %s", verification.ReviewStatus))
	}
	reviewer := SystemReviewer
	verification.ReviewStatus = enums.ReviewStatusAutoApproved
	verification.ReviewedAt = &now
	verification.ReviewedBy = &reviewer
	applyPayment(verification, commissionRate)
	return s.repo.UpdateWithTx(tx, verification)
}

func (s *ServiceImpl) commissionRate(business *models.Business) decimal.Decimal {
	if business.CommissionRate.IsPositive() {
		return business.CommissionRate
	}
	return s.cfg.Commission()
}

// applyPayment derives the financial fields of an approved claim. The
// customer is reimbursed the full claimed amount; the store is invoiced the
// payment plus the platform commission.
func applyPayment(verification *models.Verification, commissionRate decimal.Decimal) {
	payment := verification.PurchaseAmount.Round(2)
	commission := payment.Mul(commissionRate).Round(2)
	verification.PaymentAmount = payment
	verification.CommissionAmount = commission
	verification.StoreCost = payment.Add(commission)
}

// HashPhone normalizes and hashes a phone number for storage. Raw phone
// numbers never reach the database.
func HashPhone(phone string) string {
	normalized := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '+' {
			return r
		}
		return -1
	}, phone)
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func validateInput(input SubmitClaimInput, now time.Time) error {
	if strings.TrimSpace(input.Phone) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone number required")
	}
	if !input.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if input.PurchaseTime.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "purchase time required")
	}
	if input.PurchaseTime.After(now.Add(5 * time.Minute)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "purchase time is in the future")
	}
	return nil
}

// isConcurrencyConflict matches serialization and deadlock failures from
// the database. These are safe to retry with fresh reads.
func isConcurrencyConflict(err error) bool {
	if pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "could not serialize access") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "database is locked")
}
