package verifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
	"github.com/fallstrom/kvittofri-backend/pkg/enums"
)

// Repository handles verification persistence. Rows are append-and-amend:
// nothing here deletes.
type Repository interface {
	Create(ctx context.Context, verification *models.Verification) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Verification, error)
	Update(ctx context.Context, verification *models.Verification) error
	ListSubmittedBetween(ctx context.Context, from, to time.Time) ([]models.Verification, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Verification, error)

	// transactional variants for batch total recomputation
	FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Verification, error)
	UpdateWithTx(tx *gorm.DB, verification *models.Verification) error
	ListByBatchWithTx(tx *gorm.DB, batchID uuid.UUID) ([]models.Verification, error)
	ListPendingByBatchWithTx(tx *gorm.DB, batchID uuid.UUID) ([]models.Verification, error)
	AssignBatchWithTx(tx *gorm.DB, verificationIDs []uuid.UUID, batchID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a verification repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, verification *models.Verification) error {
	return r.db.WithContext(ctx).Create(verification).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Verification, error) {
	var verification models.Verification
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&verification).Error; err != nil {
		return nil, err
	}
	return &verification, nil
}

func (r *repository) Update(ctx context.Context, verification *models.Verification) error {
	return r.db.WithContext(ctx).Save(verification).Error
}

func (r *repository) ListSubmittedBetween(ctx context.Context, from, to time.Time) ([]models.Verification, error) {
	var rows []models.Verification
	if err := r.db.WithContext(ctx).
		Where("submitted_at >= ? AND submitted_at < ?", from, to).
		Order("submitted_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Verification, error) {
	return listByBatch(r.db.WithContext(ctx), batchID)
}

func (r *repository) FindByIDWithTx(tx *gorm.DB, id uuid.UUID) (*models.Verification, error) {
	var verification models.Verification
	if err := tx.Where("id = ?", id).First(&verification).Error; err != nil {
		return nil, err
	}
	return &verification, nil
}

func (r *repository) UpdateWithTx(tx *gorm.DB, verification *models.Verification) error {
	return tx.Save(verification).Error
}

func (r *repository) ListByBatchWithTx(tx *gorm.DB, batchID uuid.UUID) ([]models.Verification, error) {
	return listByBatch(tx, batchID)
}

func (r *repository) ListPendingByBatchWithTx(tx *gorm.DB, batchID uuid.UUID) ([]models.Verification, error) {
	var rows []models.Verification
	if err := tx.
		Where("billing_batch_id = ? AND review_status = ?", batchID, enums.ReviewStatusPending).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) AssignBatchWithTx(tx *gorm.DB, verificationIDs []uuid.UUID, batchID uuid.UUID) error {
	if len(verificationIDs) == 0 {
		return nil
	}
	return tx.Model(&models.Verification{}).
		Where("id IN ? AND billing_batch_id IS NULL", verificationIDs).
		Update("billing_batch_id", batchID).Error
}

func listByBatch(tx *gorm.DB, batchID uuid.UUID) ([]models.Verification, error) {
	var rows []models.Verification
	if err := tx.
		Where("billing_batch_id = ?", batchID).
		Order("submitted_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
