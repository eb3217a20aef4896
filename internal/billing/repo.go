package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
	"github.com/fallstrom/kvittofri-backend/pkg/enums"
)

// Repository handles billing batch persistence.
type Repository interface {
	Create(ctx context.Context, batch *models.MonthlyBillingBatch) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.MonthlyBillingBatch, error)
	FindByBusinessMonth(ctx context.Context, businessID uuid.UUID, month time.Time) (*models.MonthlyBillingBatch, error)
	ListOverdue(ctx context.Context, status enums.BatchStatus, deadlineBefore time.Time) ([]models.MonthlyBillingBatch, error)
	ListWithDeadlineBetween(ctx context.Context, from, to time.Time) ([]models.MonthlyBillingBatch, error)
	SetReminderAt(ctx context.Context, batchID uuid.UUID, at time.Time) error

	FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.MonthlyBillingBatch, error)
	UpdateWithTx(tx *gorm.DB, batch *models.MonthlyBillingBatch) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing batch repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, batch *models.MonthlyBillingBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.MonthlyBillingBatch, error) {
	var batch models.MonthlyBillingBatch
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) FindByBusinessMonth(ctx context.Context, businessID uuid.UUID, month time.Time) (*models.MonthlyBillingBatch, error) {
	var batch models.MonthlyBillingBatch
	if err := r.db.WithContext(ctx).
		Where("business_id = ? AND billing_month = ?", businessID, month).
		First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) ListOverdue(ctx context.Context, status enums.BatchStatus, deadlineBefore time.Time) ([]models.MonthlyBillingBatch, error) {
	var batches []models.MonthlyBillingBatch
	if err := r.db.WithContext(ctx).
		Where("status = ? AND review_deadline < ?", status, deadlineBefore).
		Order("review_deadline ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repository) ListWithDeadlineBetween(ctx context.Context, from, to time.Time) ([]models.MonthlyBillingBatch, error) {
	var batches []models.MonthlyBillingBatch
	if err := r.db.WithContext(ctx).
		Where("status = ? AND review_deadline >= ? AND review_deadline < ?", enums.BatchStatusReviewPeriod, from, to).
		Order("review_deadline ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repository) SetReminderAt(ctx context.Context, batchID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.MonthlyBillingBatch{}).
		Where("id = ?", batchID).
		Update("last_reminder_at", at).Error
}

func (r *repository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.MonthlyBillingBatch, error) {
	var batch models.MonthlyBillingBatch
	if err := tx.Where("id = ?", id).First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) UpdateWithTx(tx *gorm.DB, batch *models.MonthlyBillingBatch) error {
	return tx.Save(batch).Error
}
