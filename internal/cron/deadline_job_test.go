package cron

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fallstrom/kvittofri-backend/internal/billing"
	"github.com/fallstrom/kvittofri-backend/internal/businesses"
	"github.com/fallstrom/kvittofri-backend/internal/notifications"
	"github.com/fallstrom/kvittofri-backend/internal/settlement"
	"github.com/fallstrom/kvittofri-backend/internal/verifications"
	"github.com/fallstrom/kvittofri-backend/pkg/config"
	"github.com/fallstrom/kvittofri-backend/pkg/db"
	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
	"github.com/fallstrom/kvittofri-backend/pkg/enums"
)

type fakeExecutor struct {
	invoices   []settlement.Invoice
	payouts    []settlement.PayoutRequest
	invoiceErr error
	payoutErr  error
}

func (f *fakeExecutor) GenerateInvoice(_ context.Context, invoice settlement.Invoice) error {
	if f.invoiceErr != nil {
		return f.invoiceErr
	}
	f.invoices = append(f.invoices, invoice)
	return nil
}

func (f *fakeExecutor) Payout(_ context.Context, request settlement.PayoutRequest) (*settlement.PayoutResult, error) {
	if f.payoutErr != nil {
		return nil, f.payoutErr
	}
	f.payouts = append(f.payouts, request)
	return &settlement.PayoutResult{Success: true, Reference: "ref-" + request.BatchID.String()[:8]}, nil
}

type fakeSender struct {
	sent []notifications.Message
}

func (f *fakeSender) Send(_ context.Context, message notifications.Message) error {
	f.sent = append(f.sent, message)
	return nil
}

type deadlineJobEnv struct {
	job       *DeadlineEnforcementJob
	client    *db.Client
	executor  *fakeExecutor
	sender    *fakeSender
	verRepo   verifications.Repository
	batchRepo billing.Repository
}

func newDeadlineJobEnv(t *testing.T, now time.Time) *deadlineJobEnv {
	t.Helper()

	client, err := db.NewSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := client.DB().AutoMigrate(
		&models.Business{}, &models.Verification{}, &models.MonthlyBillingBatch{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := testServiceLogger()
	cfg := config.VerificationConfig{
		ReviewPeriodDays: 14,
		PaymentGraceDays: 3,
		InvoiceDueDays:   30,
		CommissionRate:   "0.10",
		VATRate:          "0.25",
	}

	verRepo := verifications.NewRepository(client.DB())
	batchRepo := billing.NewRepository(client.DB())
	businessRepo := businesses.NewRepository(client.DB())

	billingSvc, err := billing.NewService(batchRepo, verRepo, client, cfg, logg)
	if err != nil {
		t.Fatalf("billing service: %v", err)
	}

	executor := &fakeExecutor{}
	sender := &fakeSender{}
	notifySvc, err := notifications.NewService(sender, logg)
	if err != nil {
		t.Fatalf("notification service: %v", err)
	}

	// the reviewer only needs AutoApproveWithTx here; the claim-intake
	// dependencies are satisfied by a minimal wiring against the same db
	reviewer := newTestReviewer(t, client, cfg, logg)

	job, err := NewDeadlineEnforcementJob(DeadlineJobParams{
		Logger:        logg,
		Client:        client,
		Batches:       batchRepo,
		Billing:       billingSvc,
		Verifications: verRepo,
		Reviewer:      reviewer,
		Businesses:    businessRepo,
		Settlement:    executor,
		Notifications: notifySvc,
		Config:        cfg,
		Now:           func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("deadline job: %v", err)
	}

	return &deadlineJobEnv{
		job:       job,
		client:    client,
		executor:  executor,
		sender:    sender,
		verRepo:   verRepo,
		batchRepo: batchRepo,
	}
}

func (e *deadlineJobEnv) seedBusiness(t *testing.T) *models.Business {
	t.Helper()
	business := &models.Business{
		ID:                  uuid.New(),
		Name:                "Kaffebaren",
		VerificationEnabled: true,
		CommissionRate:      decimal.RequireFromString("0.10"),
		VATRate:             decimal.RequireFromString("0.25"),
		NotificationEmails:  []string{"owner@example.se"},
	}
	if err := e.client.DB().Create(business).Error; err != nil {
		t.Fatalf("seed business: %v", err)
	}
	return business
}

func (e *deadlineJobEnv) seedBatch(t *testing.T, businessID uuid.UUID, status enums.BatchStatus, deadline time.Time) *models.MonthlyBillingBatch {
	t.Helper()
	batch := &models.MonthlyBillingBatch{
		ID:             uuid.New(),
		BusinessID:     businessID,
		BillingMonth:   time.Date(deadline.Year(), deadline.Month(), 1, 0, 0, 0, 0, time.UTC),
		Status:         status,
		ReviewDeadline: deadline,
		PaymentDueDate: deadline.AddDate(0, 0, 3),
	}
	if err := e.client.DB().Create(batch).Error; err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	return batch
}

func (e *deadlineJobEnv) seedPending(t *testing.T, businessID, batchID uuid.UUID, amount string) *models.Verification {
	t.Helper()
	v := &models.Verification{
		ID:                uuid.New(),
		BusinessID:        businessID,
		StoreCode:         "482913",
		CustomerPhoneHash: "hash",
		PurchaseAmount:    decimal.RequireFromString(amount),
		PurchaseTime:      time.Date(2025, 1, 5, 14, 0, 0, 0, time.UTC),
		ReviewStatus:      enums.ReviewStatusPending,
		BillingBatchID:    &batchID,
		SubmittedAt:       time.Date(2025, 1, 5, 14, 5, 0, 0, time.UTC),
	}
	if err := e.client.DB().Create(v).Error; err != nil {
		t.Fatalf("seed verification: %v", err)
	}
	return v
}

// Batch created 2025-01-01 has its deadline at 2025-01-15; one run on
// 2025-01-16 must auto-approve the stale claim and walk the batch through
// payment processing to completed.
func TestDeadlineJobAutoApprovesOverdueBatch(t *testing.T) {
	now := time.Date(2025, 1, 16, 2, 0, 0, 0, time.UTC)
	env := newDeadlineJobEnv(t, now)
	business := env.seedBusiness(t)
	batch := env.seedBatch(t, business.ID, enums.BatchStatusReviewPeriod, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))
	pending := env.seedPending(t, business.ID, batch.ID, "200.00")

	if err := env.job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stored, err := env.verRepo.FindByID(context.Background(), pending.ID)
	if err != nil {
		t.Fatalf("load verification: %v", err)
	}
	if stored.ReviewStatus != enums.ReviewStatusAutoApproved {
		t.Fatalf("expected auto_approved, got %s", stored.ReviewStatus)
	}
	if stored.ReviewedBy == nil || *stored.ReviewedBy != verifications.SystemReviewer {
		t.Fatalf("unexpected reviewer: %v", stored.ReviewedBy)
	}
	if !stored.StoreCost.Equal(decimal.RequireFromString("220.00")) {
		t.Fatalf("unexpected store cost: %s", stored.StoreCost)
	}

	freshBatch, err := env.batchRepo.FindByID(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if freshBatch.Status != enums.BatchStatusCompleted {
		t.Fatalf("expected completed, got %s", freshBatch.Status)
	}
	if !freshBatch.StoreInvoiceGenerated {
		t.Fatal("invoice flag not set")
	}
	if freshBatch.CompletedAt == nil {
		t.Fatal("completedAt not set")
	}
	if !freshBatch.TotalCustomerPayments.Equal(decimal.RequireFromString("200.00")) {
		t.Fatalf("totals not recomputed: %s", freshBatch.TotalCustomerPayments)
	}

	if len(env.executor.invoices) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(env.executor.invoices))
	}
	invoice := env.executor.invoices[0]
	// commission 20.00, VAT 25% = 5.00
	if !invoice.VAT.Equal(decimal.RequireFromString("5.00")) {
		t.Fatalf("unexpected VAT: %s", invoice.VAT)
	}
	if !invoice.DueDate.Equal(now.AddDate(0, 0, 30)) {
		t.Fatalf("unexpected due date: %s", invoice.DueDate)
	}
	if len(env.executor.payouts) != 1 {
		t.Fatalf("expected 1 payout, got %d", len(env.executor.payouts))
	}
}

func TestDeadlineJobIsolatesBatchFailures(t *testing.T) {
	now := time.Date(2025, 1, 16, 2, 0, 0, 0, time.UTC)
	env := newDeadlineJobEnv(t, now)
	business := env.seedBusiness(t)
	deadline := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	first := env.seedBatch(t, business.ID, enums.BatchStatusReviewPeriod, deadline)
	env.seedPending(t, business.ID, first.ID, "100.00")

	other := env.seedBusiness(t)
	second := env.seedBatch(t, other.ID, enums.BatchStatusReviewPeriod, deadline)
	env.seedPending(t, other.ID, second.ID, "50.00")

	// payouts fail for everyone; both batches must still be finalized and
	// left retryable, and the run must report the failures
	env.executor.payoutErr = errors.New("payout gateway down")

	err := env.job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}

	for _, batch := range []*models.MonthlyBillingBatch{first, second} {
		fresh, loadErr := env.batchRepo.FindByID(context.Background(), batch.ID)
		if loadErr != nil {
			t.Fatalf("load batch: %v", loadErr)
		}
		if fresh.Status != enums.BatchStatusPaymentProcessing {
			t.Fatalf("expected payment_processing, got %s", fresh.Status)
		}
	}

	// next run with a healthy gateway completes both
	env.executor.payoutErr = nil
	if err := env.job.Run(context.Background()); err != nil {
		t.Fatalf("retry run: %v", err)
	}
	for _, batch := range []*models.MonthlyBillingBatch{first, second} {
		fresh, loadErr := env.batchRepo.FindByID(context.Background(), batch.ID)
		if loadErr != nil {
			t.Fatalf("load batch: %v", loadErr)
		}
		if fresh.Status != enums.BatchStatusCompleted {
			t.Fatalf("expected completed after retry, got %s", fresh.Status)
		}
	}
}

func TestDeadlineJobSendsReminders(t *testing.T) {
	now := time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC)
	env := newDeadlineJobEnv(t, now)
	business := env.seedBusiness(t)
	// deadline two days out, inside the reminder horizon
	batch := env.seedBatch(t, business.ID, enums.BatchStatusReviewPeriod, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))

	if err := env.job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(env.sender.sent) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(env.sender.sent))
	}
	if env.sender.sent[0].Template != enums.NotificationReviewReminder {
		t.Fatalf("unexpected template: %s", env.sender.sent[0].Template)
	}

	// a second run inside the cooldown sends nothing new
	if err := env.job.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(env.sender.sent) != 1 {
		t.Fatalf("reminder repeated inside cooldown, got %d", len(env.sender.sent))
	}

	fresh, err := env.batchRepo.FindByID(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if fresh.LastReminderAt == nil {
		t.Fatal("reminder timestamp not recorded")
	}
}

func TestDeadlineJobIgnoresBatchesInsideDeadline(t *testing.T) {
	now := time.Date(2025, 1, 10, 2, 0, 0, 0, time.UTC)
	env := newDeadlineJobEnv(t, now)
	business := env.seedBusiness(t)
	batch := env.seedBatch(t, business.ID, enums.BatchStatusReviewPeriod, time.Date(2025, 1, 25, 0, 0, 0, 0, time.UTC))
	pending := env.seedPending(t, business.ID, batch.ID, "100.00")

	if err := env.job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	stored, err := env.verRepo.FindByID(context.Background(), pending.ID)
	if err != nil {
		t.Fatalf("load verification: %v", err)
	}
	if stored.ReviewStatus != enums.ReviewStatusPending {
		t.Fatalf("claim inside deadline must stay pending, got %s", stored.ReviewStatus)
	}
}
