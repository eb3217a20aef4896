package fraud

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
	"github.com/fallstrom/kvittofri-backend/pkg/enums"
)

type gormHistory struct {
	db *gorm.DB
}

// NewHistory returns a claim history source backed by the verifications table.
func NewHistory(db *gorm.DB) History {
	return &gormHistory{db: db}
}

func (h *gormHistory) CountClaimsByPhoneSince(ctx context.Context, phoneHash string, since time.Time) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.Verification{}).
		Where("customer_phone_hash = ? AND submitted_at >= ?", phoneHash, since).
		Count(&count).Error
	return count, err
}

func (h *gormHistory) ClaimStatsByPhone(ctx context.Context, phoneHash string, since time.Time) (int64, int64, error) {
	var total, rejected int64
	if err := h.db.WithContext(ctx).
		Model(&models.Verification{}).
		Where("customer_phone_hash = ? AND submitted_at >= ?", phoneHash, since).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err := h.db.WithContext(ctx).
		Model(&models.Verification{}).
		Where("customer_phone_hash = ? AND submitted_at >= ? AND review_status = ?", phoneHash, since, enums.ReviewStatusRejected).
		Count(&rejected).Error; err != nil {
		return 0, 0, err
	}
	return total, rejected, nil
}

func (h *gormHistory) CountDistinctBusinessesByPhone(ctx context.Context, phoneHash string, since time.Time) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.Verification{}).
		Where("customer_phone_hash = ? AND submitted_at >= ?", phoneHash, since).
		Distinct("business_id").
		Count(&count).Error
	return count, err
}

func (h *gormHistory) LastClaimTimeByPhone(ctx context.Context, phoneHash string, before time.Time) (*time.Time, error) {
	var row models.Verification
	err := h.db.WithContext(ctx).
		Where("customer_phone_hash = ? AND submitted_at < ?", phoneHash, before).
		Order("submitted_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	t := row.SubmittedAt
	return &t, nil
}

func (h *gormHistory) CountSameAmountByPhone(ctx context.Context, phoneHash string, amount decimal.Decimal, since time.Time) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.Verification{}).
		Where("customer_phone_hash = ? AND purchase_amount = ? AND submitted_at >= ?", phoneHash, amount, since).
		Count(&count).Error
	return count, err
}

func (h *gormHistory) CountClaimsByIPSince(ctx context.Context, ip string, since time.Time) (int64, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.Verification{}).
		Where("ip_address = ? AND submitted_at >= ?", ip, since).
		Count(&count).Error
	return count, err
}

func (h *gormHistory) ExistsDuplicate(ctx context.Context, phoneHash string, businessID uuid.UUID, amount decimal.Decimal, since time.Time) (bool, error) {
	var count int64
	err := h.db.WithContext(ctx).
		Model(&models.Verification{}).
		Where("customer_phone_hash = ? AND business_id = ? AND purchase_amount = ? AND submitted_at >= ?",
			phoneHash, businessID, amount, since).
		Count(&count).Error
	return count > 0, err
}
