package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/fallstrom/kvittofri-backend/internal/billing"
	"github.com/fallstrom/kvittofri-backend/internal/businesses"
	"github.com/fallstrom/kvittofri-backend/internal/exports"
	"github.com/fallstrom/kvittofri-backend/internal/notifications"
	"github.com/fallstrom/kvittofri-backend/internal/verifications"
	"github.com/fallstrom/kvittofri-backend/pkg/enums"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
)

const aggregationJobName = "monthly-aggregation"

// AggregationJobParams configure the monthly aggregation job.
type AggregationJobParams struct {
	Logger        *logger.Logger
	Billing       billing.Service
	Businesses    businesses.Repository
	Verifications verifications.Repository
	Notifications *notifications.Service
	Renderer      exports.Renderer
	Now           func() time.Time
}

// MonthlyAggregationJob batches the previous calendar month's verifications.
// The job fires on the daily cadence; aggregation itself is idempotent per
// business and month, so repeat runs inside the same month are no-ops.
type MonthlyAggregationJob struct {
	logg          *logger.Logger
	billing       billing.Service
	businesses    businesses.Repository
	verifications verifications.Repository
	notifications *notifications.Service
	renderer      exports.Renderer
	now           func() time.Time
}

// NewMonthlyAggregationJob builds the job.
func NewMonthlyAggregationJob(params AggregationJobParams) (*MonthlyAggregationJob, error) {
	if params.Logger == nil || params.Billing == nil || params.Businesses == nil || params.Verifications == nil {
		return nil, fmt.Errorf("aggregation job dependencies missing")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &MonthlyAggregationJob{
		logg:          params.Logger,
		billing:       params.Billing,
		businesses:    params.Businesses,
		verifications: params.Verifications,
		notifications: params.Notifications,
		renderer:      params.Renderer,
		now:           now,
	}, nil
}

// Name implements Job.
func (j *MonthlyAggregationJob) Name() string { return aggregationJobName }

// Run implements Job.
func (j *MonthlyAggregationJob) Run(ctx context.Context) error {
	previous := j.now().UTC().AddDate(0, -1, 0)
	year, month := previous.Year(), previous.Month()

	summaries, err := j.billing.Aggregate(ctx, year, month)
	if err != nil {
		return fmt.Errorf("aggregate %04d-%02d: %w", year, month, err)
	}

	var errs error
	for _, summary := range summaries {
		if !summary.Created {
			continue
		}
		if err := j.announceBatch(ctx, summary); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("batch %s: %w", summary.BatchID, err))
		}
	}

	if j.renderer != nil && len(summaries) > 0 {
		name := fmt.Sprintf("batches-%04d-%02d", year, month)
		if err := j.renderer.Render(ctx, name, exports.BatchHeader, exports.BatchRows(summaries)); err != nil {
			j.logg.Error(ctx, "batch summary export failed", err)
		}
	}

	j.logg.Info(
		j.logg.WithFields(ctx, map[string]any{
			"month":   fmt.Sprintf("%04d-%02d", year, month),
			"batches": len(summaries),
		}),
		"monthly aggregation finished",
	)
	return errs
}

// announceBatch emails the review-due notice and renders the manual review
// CSV for a freshly created batch. Both are best effort.
func (j *MonthlyAggregationJob) announceBatch(ctx context.Context, summary billing.BatchSummary) error {
	business, err := j.businesses.FindByID(ctx, summary.BusinessID)
	if err != nil {
		return fmt.Errorf("load business: %w", err)
	}

	if j.notifications != nil && summary.PendingVerifications > 0 {
		j.notifications.Notify(ctx, enums.NotificationReviewDue, business.NotificationEmails, map[string]any{
			"batch_id":        summary.BatchID.String(),
			"month":           summary.BillingMonth.Format("2006-01"),
			"pending_claims":  summary.PendingVerifications,
			"review_deadline": summary.ReviewDeadline.Format("2006-01-02"),
		})
	}

	if j.renderer != nil {
		claims, err := j.verifications.ListByBatch(ctx, summary.BatchID)
		if err != nil {
			return fmt.Errorf("list batch claims: %w", err)
		}
		name := fmt.Sprintf("review-%s-%s", summary.BusinessID, summary.BillingMonth.Format("2006-01"))
		if err := j.renderer.Render(ctx, name, exports.ClaimHeader, exports.PendingReviewRows(claims)); err != nil {
			j.logg.Error(j.logg.WithBatchID(ctx, summary.BatchID.String()), "review export failed", err)
		}
	}
	return nil
}
