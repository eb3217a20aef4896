package matching

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fallstrom/kvittofri-backend/internal/pos"
	"github.com/fallstrom/kvittofri-backend/pkg/types"
)

func defaultSettings() types.ToleranceSettings {
	return types.ToleranceSettings{
		TimeToleranceMinutes: 2,
		AmountToleranceSEK:   decimal.RequireFromString("0.5"),
	}
}

func at(hour, minute, second int) time.Time {
	return time.Date(2025, 3, 10, hour, minute, second, 0, time.UTC)
}

func tx(id string, amount string, occurred time.Time) pos.TransactionRecord {
	return pos.TransactionRecord{
		ID:         id,
		Amount:     decimal.RequireFromString(amount),
		OccurredAt: occurred,
	}
}

func TestMatchWithinTolerance(t *testing.T) {
	// claim 127.50 at 14:30, transaction 127.00 at 14:29
	claim := Claim{Amount: decimal.RequireFromString("127.50"), PurchaseTime: at(14, 30, 0)}

	result := Match(claim, []pos.TransactionRecord{tx("t1", "127.00", at(14, 29, 0))}, defaultSettings())

	require.True(t, result.Verified)
	assert.Equal(t, "t1", result.Best.Transaction.ID)
	assert.Greater(t, result.Best.Confidence, 0.7)
}

func TestMatchTimeOutOfTolerance(t *testing.T) {
	claim := Claim{Amount: decimal.RequireFromString("127.50"), PurchaseTime: at(14, 30, 0)}

	result := Match(claim, []pos.TransactionRecord{tx("t1", "127.50", at(14, 33, 0))}, defaultSettings())

	assert.False(t, result.Verified)
	require.NotNil(t, result.Closest)
	assert.Equal(t, 3*time.Minute, result.Closest.TimeDiff)
}

func TestMatchBoundaryInclusive(t *testing.T) {
	claim := Claim{Amount: decimal.RequireFromString("100.00"), PurchaseTime: at(12, 0, 0)}

	t.Run("exactly at time tolerance", func(t *testing.T) {
		result := Match(claim, []pos.TransactionRecord{tx("t1", "100.00", at(11, 58, 0))}, defaultSettings())
		assert.True(t, result.Verified)
	})

	t.Run("one second above", func(t *testing.T) {
		result := Match(claim, []pos.TransactionRecord{tx("t1", "100.00", at(11, 57, 59))}, defaultSettings())
		assert.False(t, result.Verified)
	})

	t.Run("exactly at amount tolerance", func(t *testing.T) {
		result := Match(claim, []pos.TransactionRecord{tx("t1", "100.50", at(12, 0, 0))}, defaultSettings())
		assert.True(t, result.Verified)
	})

	t.Run("one öre above", func(t *testing.T) {
		result := Match(claim, []pos.TransactionRecord{tx("t1", "100.51", at(12, 0, 0))}, defaultSettings())
		assert.False(t, result.Verified)
	})
}

func TestMatchBestCandidateSelection(t *testing.T) {
	claim := Claim{Amount: decimal.RequireFromString("250.00"), PurchaseTime: at(10, 0, 0)}

	result := Match(claim, []pos.TransactionRecord{
		tx("far", "250.40", at(9, 58, 30)),
		tx("near", "250.00", at(10, 0, 30)),
	}, defaultSettings())

	require.True(t, result.Verified)
	assert.Equal(t, "near", result.Best.Transaction.ID)
}

func TestMatchTieBreakBySmallestTimeDiff(t *testing.T) {
	a := Candidate{Confidence: 0.8, TimeDiff: 10 * time.Second}
	b := Candidate{Confidence: 0.8, TimeDiff: 20 * time.Second}

	assert.True(t, betterThan(a, b))
	assert.False(t, betterThan(b, a))
	assert.True(t, betterThan(Candidate{Confidence: 0.9, TimeDiff: time.Minute}, a))
}

func TestMatchConfidenceBonuses(t *testing.T) {
	claim := Claim{Amount: decimal.RequireFromString("99.00"), PurchaseTime: at(15, 0, 0)}

	t.Run("perfect match is capped", func(t *testing.T) {
		result := Match(claim, []pos.TransactionRecord{tx("t1", "99.00", at(15, 0, 0))}, defaultSettings())
		require.True(t, result.Verified)
		// base 1.0 gets capped to 0.95 by the near-exact bonus, then 0.9
		// by the exact amount bonus
		assert.InDelta(t, 0.9, result.Best.Confidence, 0.001)
	})

	t.Run("no candidates", func(t *testing.T) {
		result := Match(claim, nil, defaultSettings())
		assert.False(t, result.Verified)
		assert.Nil(t, result.Best)
		assert.Nil(t, result.Closest)
	})
}

func TestBuildReportBuckets(t *testing.T) {
	mk := func(conf float64) MatchResult {
		return MatchResult{Verified: true, Best: &Candidate{Confidence: conf}}
	}
	miss := MatchResult{Verified: false, Closest: &Candidate{
		TimeDiff:   4 * time.Minute,
		AmountDiff: decimal.RequireFromString("0.1"),
	}}

	report := BuildReport([]MatchResult{mk(0.95), mk(0.8), mk(0.6), mk(0.3), mk(0.1), miss})

	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 5, report.Matched)
	assert.Equal(t, 2, report.HighConfidence)
	assert.Equal(t, 1, report.MediumConfidence)
	assert.Equal(t, 1, report.LowConfidence)
	assert.Equal(t, 1, report.VeryLowConfidence)
	assert.InDelta(t, 5.0/6.0, report.MatchRate, 0.001)
}

func TestBuildReportClockDriftRecommendation(t *testing.T) {
	miss := func() MatchResult {
		return MatchResult{Verified: false, Closest: &Candidate{
			TimeDiff:   5 * time.Minute,
			AmountDiff: decimal.RequireFromString("0.05"),
		}}
	}

	report := BuildReport([]MatchResult{miss(), miss(), miss()})

	assert.Zero(t, report.Matched)
	require.NotEmpty(t, report.Recommendations)
	assert.Contains(t, report.Recommendations[0], "clock")
}

func TestBuildReportEmpty(t *testing.T) {
	report := BuildReport(nil)
	assert.Zero(t, report.Total)
	assert.Empty(t, report.Recommendations)
}
