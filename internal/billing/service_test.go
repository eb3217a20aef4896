package billing

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fallstrom/kvittofri-backend/internal/verifications"
	"github.com/fallstrom/kvittofri-backend/pkg/config"
	"github.com/fallstrom/kvittofri-backend/pkg/db"
	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
	"github.com/fallstrom/kvittofri-backend/pkg/enums"
	pkgerrors "github.com/fallstrom/kvittofri-backend/pkg/errors"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
)

type testEnv struct {
	svc      *service
	client   *db.Client
	verRepo  verifications.Repository
	business uuid.UUID
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	client, err := db.NewSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	require.NoError(t, client.DB().AutoMigrate(
		&models.Business{}, &models.Verification{}, &models.MonthlyBillingBatch{},
	))

	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
	cfg := config.VerificationConfig{ReviewPeriodDays: 14, PaymentGraceDays: 3, InvoiceDueDays: 30}

	verRepo := verifications.NewRepository(client.DB())
	svc, err := NewService(NewRepository(client.DB()), verRepo, client, cfg, logg)
	require.NoError(t, err)

	return &testEnv{
		svc:      svc.(*service),
		client:   client,
		verRepo:  verRepo,
		business: uuid.New(),
	}
}

func (e *testEnv) seedVerification(t *testing.T, status enums.ReviewStatus, amount string, submitted time.Time) *models.Verification {
	t.Helper()
	payment, commission, cost := decimal.Zero, decimal.Zero, decimal.Zero
	if status.CountsTowardPayout() {
		payment = decimal.RequireFromString(amount)
		commission = payment.Mul(decimal.RequireFromString("0.10")).Round(2)
		cost = payment.Add(commission)
	}
	v := &models.Verification{
		ID:                uuid.New(),
		BusinessID:        e.business,
		StoreCode:         "482913",
		CustomerPhoneHash: "hash",
		PurchaseAmount:    decimal.RequireFromString(amount),
		PurchaseTime:      submitted.Add(-time.Hour),
		FraudScore:        0.1,
		ReviewStatus:      status,
		PaymentAmount:     payment,
		CommissionAmount:  commission,
		StoreCost:         cost,
		SubmittedAt:       submitted,
	}
	require.NoError(t, e.client.DB().Create(v).Error)
	return v
}

func january(day int) time.Time {
	return time.Date(2025, 1, day, 10, 0, 0, 0, time.UTC)
}

func TestAggregateCreatesBatch(t *testing.T) {
	env := setupEnv(t)
	env.svc.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	env.seedVerification(t, enums.ReviewStatusPending, "100.00", january(5))
	env.seedVerification(t, enums.ReviewStatusPending, "250.00", january(12))

	summaries, err := env.svc.Aggregate(context.Background(), 2025, time.January)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	summary := summaries[0]
	assert.True(t, summary.Created)
	assert.Equal(t, env.business, summary.BusinessID)
	assert.Equal(t, 2, summary.TotalVerifications)
	assert.Equal(t, 2, summary.PendingVerifications)
	assert.Equal(t, enums.BatchStatusReviewPeriod, summary.Status)

	// default 14-day review period plus 3-day grace
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), summary.ReviewDeadline)
	assert.Equal(t, time.Date(2025, 1, 18, 0, 0, 0, 0, time.UTC), summary.PaymentDueDate)
}

func TestAggregateIdempotent(t *testing.T) {
	env := setupEnv(t)

	env.seedVerification(t, enums.ReviewStatusPending, "100.00", january(5))

	first, err := env.svc.Aggregate(context.Background(), 2025, time.January)
	require.NoError(t, err)
	second, err := env.svc.Aggregate(context.Background(), 2025, time.January)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].BatchID, second[0].BatchID)
	assert.True(t, first[0].Created)
	assert.False(t, second[0].Created)
	assert.Equal(t, first[0].TotalVerifications, second[0].TotalVerifications)

	var count int64
	require.NoError(t, env.client.DB().Model(&models.MonthlyBillingBatch{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAggregateScopesToMonth(t *testing.T) {
	env := setupEnv(t)

	env.seedVerification(t, enums.ReviewStatusPending, "100.00", january(5))
	outside := env.seedVerification(t, enums.ReviewStatusPending, "999.00", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))

	summaries, err := env.svc.Aggregate(context.Background(), 2025, time.January)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 1, summaries[0].TotalVerifications)

	stored, err := env.verRepo.FindByID(context.Background(), outside.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.BillingBatchID)
}

func TestTotalsEqualSumOfLinkedVerifications(t *testing.T) {
	env := setupEnv(t)

	env.seedVerification(t, enums.ReviewStatusApproved, "100.00", january(3))
	env.seedVerification(t, enums.ReviewStatusAutoApproved, "50.00", january(8))
	env.seedVerification(t, enums.ReviewStatusRejected, "70.00", january(9))
	env.seedVerification(t, enums.ReviewStatusPending, "25.00", january(10))

	summaries, err := env.svc.Aggregate(context.Background(), 2025, time.January)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	summary := summaries[0]
	assert.Equal(t, 4, summary.TotalVerifications)
	assert.Equal(t, 2, summary.ApprovedVerifications)
	assert.Equal(t, 1, summary.RejectedVerifications)
	assert.Equal(t, 1, summary.PendingVerifications)
	// 100 + 50 payments, 10% commission on each
	assert.True(t, summary.TotalCustomerPayments.Equal(decimal.RequireFromString("150.00")), summary.TotalCustomerPayments.String())
	assert.True(t, summary.TotalCommission.Equal(decimal.RequireFromString("15.00")), summary.TotalCommission.String())
	assert.True(t, summary.TotalStoreCost.Equal(decimal.RequireFromString("165.00")), summary.TotalStoreCost.String())
}

func TestGetSummary(t *testing.T) {
	env := setupEnv(t)

	env.seedVerification(t, enums.ReviewStatusApproved, "100.00", january(3))
	_, err := env.svc.Aggregate(context.Background(), 2025, time.January)
	require.NoError(t, err)

	summary, err := env.svc.GetSummary(context.Background(), env.business, time.Date(2025, 1, 20, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalVerifications)

	_, err = env.svc.GetSummary(context.Background(), uuid.New(), january(1))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}
