package fraud

import (
	"context"
	"fmt"
	"math"

	"github.com/fallstrom/kvittofri-backend/pkg/config"
	"github.com/fallstrom/kvittofri-backend/pkg/enums"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
)

// Scorer combines independent signal analyzers into a composite risk score.
// Scoring is fail-open: a broken signal is skipped and its weight
// renormalized away; if everything is broken the claim still gets the
// neutral fallback score with an explicit flag, never an error.
type Scorer struct {
	signals  []Signal
	fallback float64
	logg     *logger.Logger
}

// NewScorer builds a scorer over the provided history source.
func NewScorer(history History, cfg config.FraudConfig, logg *logger.Logger) (*Scorer, error) {
	if history == nil {
		return nil, fmt.Errorf("fraud history source required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	fallback := cfg.NeutralFallbackScore
	if fallback <= 0 || fallback > 1 {
		fallback = 0.5
	}
	return &Scorer{
		signals:  DefaultSignals(history),
		fallback: fallback,
		logg:     logg,
	}, nil
}

// NewScorerWithSignals is for tests that need a custom analyzer set.
func NewScorerWithSignals(signals []Signal, fallback float64, logg *logger.Logger) *Scorer {
	return &Scorer{signals: signals, fallback: fallback, logg: logg}
}

// Score evaluates every signal against the claim. The returned score is
// always in [0,1], rounded to two decimals, and deterministic for a fixed
// history snapshot.
func (s *Scorer) Score(ctx context.Context, claim Claim) Result {
	var weighted, applied float64
	var flags []Flag

	for _, sig := range s.signals {
		res, err := sig.Evaluate(ctx, claim)
		if err != nil {
			s.logg.Error(s.logg.WithField(ctx, "signal", sig.Name().String()), "fraud signal failed, skipping", err)
			continue
		}
		weighted += res.Risk * sig.Weight()
		applied += sig.Weight()
		if res.Risk > 0 {
			flags = append(flags, Flag{
				Type:        sig.Name(),
				Severity:    enums.SeverityForRisk(res.Risk),
				Confidence:  res.Confidence,
				Description: res.Description,
			})
		}
	}

	if applied == 0 {
		return Result{
			Score: s.fallback,
			Flags: []Flag{{
				Type:        enums.FraudFlagScoringUnavailable,
				Severity:    enums.FlagSeverityMedium,
				Confidence:  1,
				Description: "fraud scoring unavailable, neutral fallback applied",
			}},
		}
	}

	score := math.Round(clamp01(weighted/applied)*100) / 100
	return Result{Score: score, Flags: flags}
}
