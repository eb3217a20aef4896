package storecodes

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fallstrom/kvittofri-backend/internal/businesses"
	"github.com/fallstrom/kvittofri-backend/pkg/config"
	dbpkg "github.com/fallstrom/kvittofri-backend/pkg/db"
	"github.com/fallstrom/kvittofri-backend/pkg/db/models"
	pkgerrors "github.com/fallstrom/kvittofri-backend/pkg/errors"
	"github.com/fallstrom/kvittofri-backend/pkg/types"
)

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// Resolution is the outcome of a successful store code lookup.
type Resolution struct {
	BusinessID uuid.UUID
	LocationID *uuid.UUID
	Settings   types.ToleranceSettings
}

// Service exposes store code operations.
type Service interface {
	Resolve(ctx context.Context, code string) (*Resolution, error)
	Issue(ctx context.Context, businessID uuid.UUID, locationID *uuid.UUID) (*models.StoreCode, error)
	ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]models.StoreCode, error)
}

type service struct {
	repo       Repository
	businesses businesses.Repository
	cfg        config.VerificationConfig
	now        func() time.Time
}

// NewService builds a store code service with the provided repositories.
func NewService(repo Repository, businessRepo businesses.Repository, cfg config.VerificationConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("store code repository required")
	}
	if businessRepo == nil {
		return nil, fmt.Errorf("business repository required")
	}
	return &service{
		repo:       repo,
		businesses: businessRepo,
		cfg:        cfg,
		now:        time.Now,
	}, nil
}

// Resolve validates the raw code and returns the owning business plus its
// tolerance settings. Pure lookup, safe to call repeatedly.
func (s *service) Resolve(ctx context.Context, code string) (*Resolution, error) {
	if !codePattern.MatchString(code) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store code must be exactly 6 digits")
	}

	storeCode, err := s.repo.FindActiveByCode(ctx, code, s.now().UTC())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invalid store code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup store code")
	}

	business, err := s.businesses.FindByID(ctx, storeCode.BusinessID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "business not found for store code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load business")
	}
	if !business.VerificationEnabled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "verification disabled for business")
	}

	return &Resolution{
		BusinessID: business.ID,
		LocationID: storeCode.LocationID,
		Settings: types.ToleranceSettings{
			TimeToleranceMinutes: business.TimeToleranceMinutes,
			AmountToleranceSEK:   business.AmountToleranceSEK,
		},
	}, nil
}

// Issue generates a unique 6-digit code for the business. Collisions against
// any existing code value are rejected so retired codes stay unambiguous.
func (s *service) Issue(ctx context.Context, businessID uuid.UUID, locationID *uuid.UUID) (*models.StoreCode, error) {
	if _, err := s.businesses.FindByID(ctx, businessID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "business not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load business")
	}

	maxAttempts := s.cfg.CodeIssueMaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 100
	}
	expiryDays := s.cfg.CodeExpiryDays
	if expiryDays <= 0 {
		expiryDays = 365
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate store code")
		}

		exists, err := s.repo.CodeExists(ctx, code)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check store code collision")
		}
		if exists {
			continue
		}

		storeCode := &models.StoreCode{
			ID:         uuid.New(),
			Code:       code,
			BusinessID: businessID,
			LocationID: locationID,
			Active:     true,
			ExpiresAt:  s.now().UTC().AddDate(0, 0, expiryDays),
		}
		if err := s.repo.Create(ctx, storeCode); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_store_codes_code") {
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist store code")
		}
		return storeCode, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeConflict, "store code space exhausted")
}

func (s *service) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]models.StoreCode, error) {
	codes, err := s.repo.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list store codes")
	}
	return codes, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
