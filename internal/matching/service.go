package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fallstrom/kvittofri-backend/internal/pos"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
	"github.com/fallstrom/kvittofri-backend/pkg/types"
)

// Service matches claims against the business's POS transaction feed.
type Service interface {
	MatchClaim(ctx context.Context, businessID uuid.UUID, claim Claim, settings types.ToleranceSettings) (*MatchResult, error)
	MatchBatch(ctx context.Context, businessID uuid.UUID, claims []Claim, settings types.ToleranceSettings) (*BatchReport, error)
}

type service struct {
	feed pos.TransactionFeed
	logg *logger.Logger
}

// NewService wires the matcher to a POS transaction feed.
func NewService(feed pos.TransactionFeed, logg *logger.Logger) (Service, error) {
	if feed == nil {
		return nil, fmt.Errorf("pos transaction feed required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{feed: feed, logg: logg}, nil
}

// ErrFeedUnavailable marks a match attempt that could not reach the POS feed.
// Callers treat it as "unknown", never as a failed match.
var ErrFeedUnavailable = fmt.Errorf("pos transaction feed unavailable")

func (s *service) MatchClaim(ctx context.Context, businessID uuid.UUID, claim Claim, settings types.ToleranceSettings) (*MatchResult, error) {
	candidates, err := s.listCandidates(ctx, businessID, claim, settings)
	if err != nil {
		return nil, err
	}
	result := Match(claim, candidates, settings)
	return &result, nil
}

func (s *service) MatchBatch(ctx context.Context, businessID uuid.UUID, claims []Claim, settings types.ToleranceSettings) (*BatchReport, error) {
	results := make([]MatchResult, 0, len(claims))
	for _, claim := range claims {
		candidates, err := s.listCandidates(ctx, businessID, claim, settings)
		if err != nil {
			return nil, err
		}
		results = append(results, Match(claim, candidates, settings))
	}
	report := BuildReport(results)
	return &report, nil
}

// listCandidates pulls POS transactions in a window padded beyond the
// tolerance so near-miss diagnostics still see the closest transaction.
func (s *service) listCandidates(ctx context.Context, businessID uuid.UUID, claim Claim, settings types.ToleranceSettings) ([]pos.TransactionRecord, error) {
	padding := time.Duration(settings.TimeToleranceMinutes+5) * time.Minute
	window := pos.TimeRange{
		From: claim.PurchaseTime.Add(-padding),
		To:   claim.PurchaseTime.Add(padding),
	}
	candidates, err := s.feed.ListTransactions(ctx, businessID, window)
	if err != nil {
		s.logg.Error(s.logg.WithBusinessID(ctx, businessID.String()), "pos feed lookup failed", err)
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	return candidates, nil
}
