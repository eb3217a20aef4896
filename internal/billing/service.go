package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fallstrom/kvittofri-backend/internal/verifications"
	"github.com/fallstrom/kvittofri-backend/pkg/config"
	"github.com/fallstrom/kvittofri-backend/pkg/db"
	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
	"github.com/fallstrom/kvittofri-backend/pkg/enums"
	pkgerrors "github.com/fallstrom/kvittofri-backend/pkg/errors"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
)

// BatchSummary is the per-business outcome of a monthly aggregation run,
// consumed by the notification and export collaborators.
type BatchSummary struct {
	BatchID               uuid.UUID
	BusinessID            uuid.UUID
	BillingMonth          time.Time
	Status                enums.BatchStatus
	TotalVerifications    int
	ApprovedVerifications int
	RejectedVerifications int
	PendingVerifications  int
	TotalCustomerPayments decimal.Decimal
	TotalCommission       decimal.Decimal
	TotalStoreCost        decimal.Decimal
	ReviewDeadline        time.Time
	PaymentDueDate        time.Time
	Created               bool // false when the batch already existed
}

// Service owns monthly batch aggregation and batch total maintenance.
type Service interface {
	Aggregate(ctx context.Context, year int, month time.Month) ([]BatchSummary, error)
	GetSummary(ctx context.Context, businessID uuid.UUID, month time.Time) (*BatchSummary, error)
	RecomputeTotalsWithTx(tx *gorm.DB, batchID uuid.UUID) error
}

type service struct {
	repo          Repository
	verifications verifications.Repository
	client        *db.Client
	cfg           config.VerificationConfig
	logg          *logger.Logger
	now           func() time.Time
}

var _ verifications.TotalsRecomputer = (*service)(nil)

// NewService wires the aggregator to its repositories.
func NewService(
	repo Repository,
	verificationRepo verifications.Repository,
	client *db.Client,
	cfg config.VerificationConfig,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil || verificationRepo == nil || client == nil || logg == nil {
		return nil, fmt.Errorf("billing service dependencies missing")
	}
	return &service{
		repo:          repo,
		verifications: verificationRepo,
		client:        client,
		cfg:           cfg,
		logg:          logg,
		now:           time.Now,
	}, nil
}

// Aggregate groups the month's verifications into one batch per business.
// Re-running for the same month is a no-op for businesses that already have
// a batch; their summaries are still reported.
func (s *service) Aggregate(ctx context.Context, year int, month time.Month) ([]BatchSummary, error) {
	monthStart := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	rows, err := s.verifications.ListSubmittedBetween(ctx, monthStart, monthEnd)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list month verifications")
	}

	byBusiness := map[uuid.UUID][]models.Verification{}
	for _, row := range rows {
		byBusiness[row.BusinessID] = append(byBusiness[row.BusinessID], row)
	}

	businessIDs := make([]uuid.UUID, 0, len(byBusiness))
	for id := range byBusiness {
		businessIDs = append(businessIDs, id)
	}
	sort.Slice(businessIDs, func(i, j int) bool {
		return businessIDs[i].String() < businessIDs[j].String()
	})

	summaries := make([]BatchSummary, 0, len(businessIDs))
	for _, businessID := range businessIDs {
		summary, err := s.aggregateBusiness(ctx, businessID, monthStart, byBusiness[businessID])
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

func (s *service) aggregateBusiness(ctx context.Context, businessID uuid.UUID, monthStart time.Time, scope []models.Verification) (*BatchSummary, error) {
	batch, err := s.repo.FindByBusinessMonth(ctx, businessID, monthStart)
	created := false
	switch {
	case err == nil:
		// idempotent re-run, reuse the existing batch
	case errors.Is(err, gorm.ErrRecordNotFound):
		batch, err = s.createBatch(ctx, businessID, monthStart)
		if err != nil {
			return nil, err
		}
		created = true
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup billing batch")
	}

	ids := make([]uuid.UUID, 0, len(scope))
	for _, row := range scope {
		if row.BillingBatchID == nil {
			ids = append(ids, row.ID)
		}
	}

	var summary *BatchSummary
	txErr := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.verifications.AssignBatchWithTx(tx, ids, batch.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link verifications to batch")
		}
		if err := s.RecomputeTotalsWithTx(tx, batch.ID); err != nil {
			return err
		}

		fresh, err := s.repo.FindByIDWithTx(tx, batch.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload batch")
		}
		if fresh.Status == enums.BatchStatusCollecting {
			fresh.Status = enums.BatchStatusReviewPeriod
			if err := s.repo.UpdateWithTx(tx, fresh); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open review period")
			}
		}

		linked, err := s.verifications.ListByBatchWithTx(tx, batch.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list linked verifications")
		}
		summary = buildSummary(fresh, linked, created)
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	s.logg.Info(
		s.logg.WithFields(ctx, map[string]any{
			"business_id": businessID.String(),
			"batch_id":    batch.ID.String(),
			"month":       monthStart.Format("2006-01"),
			"created":     created,
		}),
		"monthly batch aggregated",
	)
	return summary, nil
}

// createBatch inserts the batch for (business, month). A concurrent creator
// winning the unique index race is treated as success; the existing row is
// reloaded.
func (s *service) createBatch(ctx context.Context, businessID uuid.UUID, monthStart time.Time) (*models.MonthlyBillingBatch, error) {
	now := s.now().UTC()
	deadline := now.AddDate(0, 0, s.cfg.ReviewPeriodDays)
	batch := &models.MonthlyBillingBatch{
		ID:             uuid.New(),
		BusinessID:     businessID,
		BillingMonth:   monthStart,
		Status:         enums.BatchStatusCollecting,
		ReviewDeadline: deadline,
		PaymentDueDate: deadline.AddDate(0, 0, s.cfg.PaymentGraceDays),
	}
	if err := s.repo.Create(ctx, batch); err != nil {
		if db.IsUniqueViolation(err, "ux_billing_batches_business_month") {
			return s.findExisting(ctx, businessID, monthStart)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create billing batch")
	}
	return batch, nil
}

func (s *service) findExisting(ctx context.Context, businessID uuid.UUID, monthStart time.Time) (*models.MonthlyBillingBatch, error) {
	batch, err := s.repo.FindByBusinessMonth(ctx, businessID, monthStart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload racing batch")
	}
	return batch, nil
}

// RecomputeTotalsWithTx rebuilds a batch's totals from its linked
// verifications. The batch is a derived view; drift is impossible as long as
// every transition goes through here.
func (s *service) RecomputeTotalsWithTx(tx *gorm.DB, batchID uuid.UUID) error {
	batch, err := s.repo.FindByIDWithTx(tx, batchID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load batch for recompute")
	}
	linked, err := s.verifications.ListByBatchWithTx(tx, batchID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list linked verifications")
	}

	applyTotals(batch, linked)
	if err := s.repo.UpdateWithTx(tx, batch); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist batch totals")
	}
	return nil
}

func (s *service) GetSummary(ctx context.Context, businessID uuid.UUID, month time.Time) (*BatchSummary, error) {
	monthStart := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	batch, err := s.repo.FindByBusinessMonth(ctx, businessID, monthStart)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no billing batch for business and month")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup billing batch")
	}
	linked, err := s.verifications.ListByBatch(ctx, batch.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list linked verifications")
	}
	return buildSummary(batch, linked, false), nil
}

func applyTotals(batch *models.MonthlyBillingBatch, linked []models.Verification) {
	var approved, rejected int
	payments, commission, storeCost := decimal.Zero, decimal.Zero, decimal.Zero
	for _, v := range linked {
		switch {
		case v.ReviewStatus.CountsTowardPayout():
			approved++
			payments = payments.Add(v.PaymentAmount)
			commission = commission.Add(v.CommissionAmount)
			storeCost = storeCost.Add(v.StoreCost)
		case v.ReviewStatus == enums.ReviewStatusRejected:
			rejected++
		}
	}
	batch.TotalVerifications = len(linked)
	batch.ApprovedVerifications = approved
	batch.RejectedVerifications = rejected
	batch.TotalCustomerPayments = payments
	batch.TotalCommission = commission
	batch.TotalStoreCost = storeCost
}

func buildSummary(batch *models.MonthlyBillingBatch, linked []models.Verification, created bool) *BatchSummary {
	var pending int
	for _, v := range linked {
		if v.ReviewStatus == enums.ReviewStatusPending {
			pending++
		}
	}
	return &BatchSummary{
		BatchID:               batch.ID,
		BusinessID:            batch.BusinessID,
		BillingMonth:          batch.BillingMonth,
		Status:                batch.Status,
		TotalVerifications:    batch.TotalVerifications,
		ApprovedVerifications: batch.ApprovedVerifications,
		RejectedVerifications: batch.RejectedVerifications,
		PendingVerifications:  pending,
		TotalCustomerPayments: batch.TotalCustomerPayments,
		TotalCommission:       batch.TotalCommission,
		TotalStoreCost:        batch.TotalStoreCost,
		ReviewDeadline:        batch.ReviewDeadline,
		PaymentDueDate:        batch.PaymentDueDate,
		Created:               created,
	}
}
