package businesses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
)

// Repository handles business persistence.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Business, error)
	Create(ctx context.Context, business *models.Business) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a business repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Business, error) {
	var business models.Business
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&business).Error; err != nil {
		return nil, err
	}
	return &business, nil
}

func (r *repository) Create(ctx context.Context, business *models.Business) error {
	return r.db.WithContext(ctx).Create(business).Error
}
