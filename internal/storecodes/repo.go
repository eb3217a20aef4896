package storecodes

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
)

// Repository handles store code persistence.
type Repository interface {
	FindActiveByCode(ctx context.Context, code string, now time.Time) (*models.StoreCode, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Create(ctx context.Context, storeCode *models.StoreCode) error
	ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]models.StoreCode, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a store code repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindActiveByCode(ctx context.Context, code string, now time.Time) (*models.StoreCode, error) {
	var storeCode models.StoreCode
	if err := r.db.WithContext(ctx).
		Where("code = ? AND active = ? AND expires_at > ?", code, true, now).
		First(&storeCode).Error; err != nil {
		return nil, err
	}
	return &storeCode, nil
}

// CodeExists checks against every row, active or not, so a retired code value
// is never reissued while audit records still reference it.
func (r *repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.StoreCode{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) Create(ctx context.Context, storeCode *models.StoreCode) error {
	return r.db.WithContext(ctx).Create(storeCode).Error
}

func (r *repository) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]models.StoreCode, error) {
	var codes []models.StoreCode
	if err := r.db.WithContext(ctx).
		Where("business_id = ?", businessID).
		Order("created_at DESC").
		Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *repository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.StoreCode{}).
		Where("id = ?", id).
		Update("active", false).Error
}
