package matching

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fallstrom/kvittofri-backend/internal/pos"
	"github.com/fallstrom/kvittofri-backend/pkg/types"
)

// Claim is the subset of a verification the matcher needs.
type Claim struct {
	Amount       decimal.Decimal
	PurchaseTime time.Time
}

// Candidate pairs a POS transaction with its computed diffs against a claim.
type Candidate struct {
	Transaction   pos.TransactionRecord
	TimeDiff      time.Duration
	AmountDiff    decimal.Decimal
	Confidence    float64
	WithinWindows bool
}

// MatchResult is the outcome of matching one claim against a candidate set.
type MatchResult struct {
	Verified   bool
	Best       *Candidate
	Closest    *Candidate // diagnostics when nothing matched
	Candidates int
}

// Match ranks candidates against the claim using the business's tolerance
// settings. Boundary values are accepted: a time diff exactly at the
// tolerance still matches.
func Match(claim Claim, candidates []pos.TransactionRecord, settings types.ToleranceSettings) MatchResult {
	result := MatchResult{Candidates: len(candidates)}

	timeTolerance := time.Duration(settings.TimeToleranceMinutes) * time.Minute
	for _, tx := range candidates {
		cand := evaluate(claim, tx, timeTolerance, settings.AmountToleranceSEK)

		if cand.WithinWindows {
			if result.Best == nil || betterThan(cand, *result.Best) {
				copied := cand
				result.Best = &copied
			}
		}
		if result.Closest == nil || cand.TimeDiff < result.Closest.TimeDiff {
			copied := cand
			result.Closest = &copied
		}
	}

	result.Verified = result.Best != nil
	return result
}

func evaluate(claim Claim, tx pos.TransactionRecord, timeTolerance time.Duration, amountTolerance decimal.Decimal) Candidate {
	timeDiff := claim.PurchaseTime.Sub(tx.OccurredAt)
	if timeDiff < 0 {
		timeDiff = -timeDiff
	}
	amountDiff := claim.Amount.Sub(tx.Amount).Abs()

	cand := Candidate{
		Transaction: tx,
		TimeDiff:    timeDiff,
		AmountDiff:  amountDiff,
	}
	if timeDiff > timeTolerance || amountDiff.GreaterThan(amountTolerance) {
		return cand
	}
	cand.WithinWindows = true
	cand.Confidence = confidence(claim, timeDiff, amountDiff, timeTolerance)
	return cand
}

// confidence blends closeness in time and amount equally, then applies
// bonuses for near-exact matches. The amount term is accuracy relative to
// the claimed amount; measuring it against the tolerance would zero out
// legitimate boundary matches. Each bonus carries its own cap so a mediocre
// base score cannot be inflated past what the evidence supports.
func confidence(claim Claim, timeDiff time.Duration, amountDiff decimal.Decimal, timeTolerance time.Duration) float64 {
	timeScore := 1 - timeDiff.Minutes()/timeTolerance.Minutes()
	amountScore := 1.0
	if claim.Amount.IsPositive() {
		ratio, _ := amountDiff.Div(claim.Amount).Float64()
		amountScore = 1 - ratio
	}

	score := 0.5*timeScore + 0.5*amountScore

	if timeDiff < 30*time.Second && amountDiff.LessThan(decimal.RequireFromString("0.1")) {
		score = capped(score+0.2, 0.95)
	}
	if amountDiff.IsZero() {
		score = capped(score+0.1, 0.9)
	}
	if timeDiff < 10*time.Second {
		score = capped(score+0.1, 0.9)
	}

	return math.Min(math.Max(score, 0), 1)
}

func capped(score, limit float64) float64 {
	if score > limit {
		return limit
	}
	return score
}

func betterThan(a, b Candidate) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.TimeDiff < b.TimeDiff
}
