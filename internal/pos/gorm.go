package pos

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
)

// GormFeed serves the matcher from the pos_transactions table, which an
// ingestion worker keeps current from the merchant's register stream.
type GormFeed struct {
	db *gorm.DB
}

// NewGormFeed builds a feed over the local POS transaction mirror.
func NewGormFeed(db *gorm.DB) (*GormFeed, error) {
	if db == nil {
		return nil, fmt.Errorf("database required")
	}
	return &GormFeed{db: db}, nil
}

var _ TransactionFeed = (*GormFeed)(nil)

func (f *GormFeed) ListTransactions(ctx context.Context, businessID uuid.UUID, window TimeRange) ([]TransactionRecord, error) {
	var rows []models.POSTransaction
	if err := f.db.WithContext(ctx).
		Where("business_id = ? AND occurred_at >= ? AND occurred_at < ?", businessID, window.From, window.To).
		Order("occurred_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing pos transactions: %w", err)
	}

	records := make([]TransactionRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, TransactionRecord{
			ID:         row.ExternalID,
			BusinessID: row.BusinessID,
			LocationID: row.LocationID,
			Amount:     row.Amount,
			OccurredAt: row.OccurredAt,
		})
	}
	return records, nil
}

// Record stores a register transaction, ignoring replays of the same
// external id so feed ingestion can be retried safely.
func (f *GormFeed) Record(ctx context.Context, tx models.POSTransaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	err := f.db.WithContext(ctx).Create(&tx).Error
	if err == nil {
		return nil
	}
	var existing models.POSTransaction
	if lookupErr := f.db.WithContext(ctx).
		Where("external_id = ?", tx.ExternalID).
		First(&existing).Error; lookupErr == nil {
		return nil
	}
	return fmt.Errorf("recording pos transaction: %w", err)
}
