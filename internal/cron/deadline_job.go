package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/fallstrom/kvittofri-backend/internal/billing"
	"github.com/fallstrom/kvittofri-backend/internal/businesses"
	"github.com/fallstrom/kvittofri-backend/internal/notifications"
	"github.com/fallstrom/kvittofri-backend/internal/settlement"
	"github.com/fallstrom/kvittofri-backend/internal/verifications"
	"github.com/fallstrom/kvittofri-backend/pkg/config"
	"github.com/fallstrom/kvittofri-backend/pkg/db"
	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
	"github.com/fallstrom/kvittofri-backend/pkg/enums"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
)

const (
	deadlineJobName  = "deadline-enforcement"
	reminderHorizon  = 3 * 24 * time.Hour
	reminderCooldown = 24 * time.Hour
)

// DeadlineJobParams configure the deadline enforcement job.
type DeadlineJobParams struct {
	Logger        *logger.Logger
	Client        *db.Client
	Batches       billing.Repository
	Billing       billing.Service
	Verifications verifications.Repository
	Reviewer      *verifications.ServiceImpl
	Businesses    businesses.Repository
	Settlement    settlement.Executor
	Notifications *notifications.Service
	Config        config.VerificationConfig
	BatchTimeout  time.Duration
	Now           func() time.Time
}

// DeadlineEnforcementJob finalizes batches whose review deadline has passed:
// pending claims are auto-approved, totals recomputed, and the batch handed
// to settlement. One bad batch never aborts the run for the rest.
type DeadlineEnforcementJob struct {
	logg          *logger.Logger
	client        *db.Client
	batches       billing.Repository
	billing       billing.Service
	verifications verifications.Repository
	reviewer      *verifications.ServiceImpl
	businesses    businesses.Repository
	settlement    settlement.Executor
	notifications *notifications.Service
	cfg           config.VerificationConfig
	batchTimeout  time.Duration
	now           func() time.Time
}

// NewDeadlineEnforcementJob builds the job.
func NewDeadlineEnforcementJob(params DeadlineJobParams) (*DeadlineEnforcementJob, error) {
	if params.Logger == nil || params.Client == nil || params.Batches == nil ||
		params.Billing == nil || params.Verifications == nil || params.Reviewer == nil ||
		params.Businesses == nil || params.Settlement == nil {
		return nil, fmt.Errorf("deadline job dependencies missing")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	timeout := params.BatchTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &DeadlineEnforcementJob{
		logg:          params.Logger,
		client:        params.Client,
		batches:       params.Batches,
		billing:       params.Billing,
		verifications: params.Verifications,
		reviewer:      params.Reviewer,
		businesses:    params.Businesses,
		settlement:    params.Settlement,
		notifications: params.Notifications,
		cfg:           params.Config,
		batchTimeout:  timeout,
		now:           now,
	}, nil
}

// Name implements Job.
func (j *DeadlineEnforcementJob) Name() string { return deadlineJobName }

// Run implements Job.
func (j *DeadlineEnforcementJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var errs error

	overdue, err := j.batches.ListOverdue(ctx, enums.BatchStatusReviewPeriod, now)
	if err != nil {
		return fmt.Errorf("list overdue batches: %w", err)
	}
	for i := range overdue {
		if err := j.enforceBatch(ctx, &overdue[i], now); err != nil {
			batchCtx := j.logg.WithBatchID(ctx, overdue[i].ID.String())
			j.logg.Error(batchCtx, "batch enforcement failed, will retry next run", err)
			errs = multierr.Append(errs, fmt.Errorf("batch %s: %w", overdue[i].ID, err))
		}
	}

	// unfinished settlement hand-offs from earlier runs
	stuck, err := j.batches.ListOverdue(ctx, enums.BatchStatusPaymentProcessing, now)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("list unsettled batches: %w", err))
	} else {
		for i := range stuck {
			if err := j.settleBatch(ctx, &stuck[i], now); err != nil {
				batchCtx := j.logg.WithBatchID(ctx, stuck[i].ID.String())
				j.logg.Error(batchCtx, "settlement retry failed", err)
				errs = multierr.Append(errs, fmt.Errorf("batch %s: %w", stuck[i].ID, err))
			}
		}
	}

	// reminders are advisory and never fail the run
	j.sendReminders(ctx, now)

	return errs
}

// enforceBatch auto-approves the batch's pending claims, finalizes totals,
// and hands off to settlement. The state work is one transaction with a
// bounded timeout so a stuck batch cannot stall the whole run.
func (j *DeadlineEnforcementJob) enforceBatch(ctx context.Context, batch *models.MonthlyBillingBatch, now time.Time) error {
	batchCtx, cancel := context.WithTimeout(ctx, j.batchTimeout)
	defer cancel()

	business, err := j.businesses.FindByID(batchCtx, batch.BusinessID)
	if err != nil {
		return fmt.Errorf("load business: %w", err)
	}
	rate := business.CommissionRate
	if !rate.IsPositive() {
		rate = j.cfg.Commission()
	}

	err = j.client.WithTx(batchCtx, func(tx *gorm.DB) error {
		pending, err := j.verifications.ListPendingByBatchWithTx(tx, batch.ID)
		if err != nil {
			return fmt.Errorf("list pending claims: %w", err)
		}
		for i := range pending {
			if err := j.reviewer.AutoApproveWithTx(tx, &pending[i], rate, now); err != nil {
				return fmt.Errorf("auto-approve %s: %w", pending[i].ID, err)
			}
		}
		if err := j.billing.RecomputeTotalsWithTx(tx, batch.ID); err != nil {
			return err
		}

		fresh, err := j.batches.FindByIDWithTx(tx, batch.ID)
		if err != nil {
			return fmt.Errorf("reload batch: %w", err)
		}
		if !fresh.Status.CanTransitionTo(enums.BatchStatusPaymentProcessing) {
			return fmt.Errorf("batch in %s cannot enter payment processing", fresh.Status)
		}
		fresh.Status = enums.BatchStatusPaymentProcessing
		fresh.StoreInvoiceGenerated = true
		if err := j.batches.UpdateWithTx(tx, fresh); err != nil {
			return fmt.Errorf("persist batch: %w", err)
		}
		*batch = *fresh
		return nil
	})
	if err != nil {
		return err
	}

	j.logg.Info(
		j.logg.WithFields(batchCtx, map[string]any{
			"batch_id":    batch.ID.String(),
			"business_id": batch.BusinessID.String(),
		}),
		"overdue batch finalized",
	)
	return j.settleBatch(ctx, batch, now)
}

// settleBatch requests invoice and payout for a finalized batch, then marks
// it completed. Invoice notification failures do not roll anything back.
func (j *DeadlineEnforcementJob) settleBatch(ctx context.Context, batch *models.MonthlyBillingBatch, now time.Time) error {
	batchCtx, cancel := context.WithTimeout(ctx, j.batchTimeout)
	defer cancel()

	business, err := j.businesses.FindByID(batchCtx, batch.BusinessID)
	if err != nil {
		return fmt.Errorf("load business: %w", err)
	}
	vatRate := business.VATRate
	if !vatRate.IsPositive() {
		vatRate = j.cfg.VAT()
	}

	invoice := settlement.BuildInvoice(batch.ID, batch.BusinessID, batch.TotalCommission, vatRate, now, j.cfg.InvoiceDueDays)
	if err := j.settlement.GenerateInvoice(batchCtx, invoice); err != nil {
		return fmt.Errorf("generate invoice: %w", err)
	}

	result, err := j.settlement.Payout(batchCtx, settlement.PayoutRequest{
		BatchID:       batch.ID,
		BusinessID:    batch.BusinessID,
		TotalPayments: batch.TotalCustomerPayments,
		Claims:        batch.ApprovedVerifications,
	})
	if err != nil {
		return fmt.Errorf("payout: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("payout rejected downstream")
	}

	err = j.client.WithTx(batchCtx, func(tx *gorm.DB) error {
		fresh, err := j.batches.FindByIDWithTx(tx, batch.ID)
		if err != nil {
			return fmt.Errorf("reload batch: %w", err)
		}
		if !fresh.Status.CanTransitionTo(enums.BatchStatusCompleted) {
			return fmt.Errorf("batch in %s cannot complete", fresh.Status)
		}
		fresh.Status = enums.BatchStatusCompleted
		fresh.CompletedAt = &now
		if err := j.batches.UpdateWithTx(tx, fresh); err != nil {
			return fmt.Errorf("persist completion: %w", err)
		}
		*batch = *fresh
		return nil
	})
	if err != nil {
		return err
	}

	if j.notifications != nil {
		j.notifications.Notify(ctx, enums.NotificationInvoiceIssued, business.NotificationEmails, map[string]any{
			"batch_id":  batch.ID.String(),
			"total_due": invoice.TotalDue.StringFixed(2),
			"due_date":  invoice.DueDate.Format("2006-01-02"),
		})
	}
	return nil
}

// sendReminders warns businesses whose review deadline is inside the
// horizon, at most once per cooldown window.
func (j *DeadlineEnforcementJob) sendReminders(ctx context.Context, now time.Time) {
	if j.notifications == nil {
		return
	}
	upcoming, err := j.batches.ListWithDeadlineBetween(ctx, now, now.Add(reminderHorizon))
	if err != nil {
		j.logg.Error(ctx, "list upcoming deadlines failed", err)
		return
	}
	for _, batch := range upcoming {
		if batch.LastReminderAt != nil && now.Sub(*batch.LastReminderAt) < reminderCooldown {
			continue
		}
		business, err := j.businesses.FindByID(ctx, batch.BusinessID)
		if err != nil {
			j.logg.Error(j.logg.WithBatchID(ctx, batch.ID.String()), "load business for reminder failed", err)
			continue
		}
		j.notifications.Notify(ctx, enums.NotificationReviewReminder, business.NotificationEmails, map[string]any{
			"batch_id":        batch.ID.String(),
			"review_deadline": batch.ReviewDeadline.Format("2006-01-02"),
		})
		if err := j.batches.SetReminderAt(ctx, batch.ID, now); err != nil {
			j.logg.Error(j.logg.WithBatchID(ctx, batch.ID.String()), "record reminder timestamp failed", err)
		}
	}
}
