package fraud

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fallstrom/kvittofri-backend/pkg/enums"
)

var (
	thousand    = decimal.NewFromInt(1000)
	hundred     = decimal.NewFromInt(100)
	fiveHundred = decimal.NewFromInt(500)
	tenThousand = decimal.NewFromInt(10000)
)

// phoneAbuseSignal measures claim volume and rejection history for one phone
// hash over a trailing week, across all businesses.
type phoneAbuseSignal struct {
	history History
}

func (s *phoneAbuseSignal) Name() enums.FraudFlagType { return enums.FraudFlagPhoneAbuse }
func (s *phoneAbuseSignal) Weight() float64           { return 0.30 }

func (s *phoneAbuseSignal) Evaluate(ctx context.Context, claim Claim) (SignalResult, error) {
	if claim.PhoneHash == "" {
		return SignalResult{}, nil
	}
	weekAgo := claim.SubmittedAt.Add(-7 * 24 * time.Hour)

	count, err := s.history.CountClaimsByPhoneSince(ctx, claim.PhoneHash, weekAgo)
	if err != nil {
		return SignalResult{}, err
	}
	// History holds prior claims only; the one under evaluation is not yet
	// persisted but belongs in its own window.
	count++

	var risk float64
	switch {
	case count > 20:
		risk = 0.9
	case count > 10:
		risk = 0.7
	case count > 5:
		risk = 0.4
	}

	total, rejected, err := s.history.ClaimStatsByPhone(ctx, claim.PhoneHash, weekAgo)
	if err != nil {
		return SignalResult{}, err
	}
	if total > 0 {
		risk += 0.2 * float64(rejected) / float64(total)
	}

	businesses, err := s.history.CountDistinctBusinessesByPhone(ctx, claim.PhoneHash, weekAgo)
	if err != nil {
		return SignalResult{}, err
	}
	if businesses > 3 {
		risk += 0.1
	}

	if risk == 0 {
		return SignalResult{}, nil
	}
	return SignalResult{
		Risk:        clamp01(risk),
		Confidence:  0.85,
		Description: fmt.Sprintf("%d claims from this phone in the last 7 days (%d rejected, %d businesses)", count, rejected, businesses),
	}, nil
}

// timePatternSignal flags claims submitted at unusual hours or in tight
// succession with a prior claim from the same phone.
type timePatternSignal struct {
	history History
}

func (s *timePatternSignal) Name() enums.FraudFlagType { return enums.FraudFlagTimePattern }
func (s *timePatternSignal) Weight() float64           { return 0.15 }

func (s *timePatternSignal) Evaluate(ctx context.Context, claim Claim) (SignalResult, error) {
	var risk float64
	var reasons []string

	hour := claim.SubmittedAt.Hour()
	switch {
	case hour >= 0 && hour <= 5:
		risk += 0.4
		reasons = append(reasons, fmt.Sprintf("submitted at %02d:00", hour))
	case hour >= 22:
		risk += 0.2
		reasons = append(reasons, fmt.Sprintf("submitted at %02d:00", hour))
	}

	if claim.PhoneHash != "" {
		prior, err := s.history.LastClaimTimeByPhone(ctx, claim.PhoneHash, claim.SubmittedAt)
		if err != nil {
			return SignalResult{}, err
		}
		if prior != nil {
			gap := claim.SubmittedAt.Sub(*prior)
			switch {
			case gap < 5*time.Minute:
				risk += 0.6
				reasons = append(reasons, fmt.Sprintf("previous claim %s earlier", gap.Round(time.Second)))
			case gap < 30*time.Minute:
				risk += 0.3
				reasons = append(reasons, fmt.Sprintf("previous claim %s earlier", gap.Round(time.Second)))
			}
		}
	}

	if risk == 0 {
		return SignalResult{}, nil
	}
	return SignalResult{
		Risk:        clamp01(risk),
		Confidence:  0.7,
		Description: strings.Join(reasons, "; "),
	}, nil
}

// amountPatternSignal flags round or repeated amounts typical of fabricated
// claims.
type amountPatternSignal struct {
	history History
}

func (s *amountPatternSignal) Name() enums.FraudFlagType { return enums.FraudFlagAmountPattern }
func (s *amountPatternSignal) Weight() float64           { return 0.20 }

func (s *amountPatternSignal) Evaluate(ctx context.Context, claim Claim) (SignalResult, error) {
	var risk float64
	var reasons []string

	amount := claim.Amount
	switch {
	case amount.Mod(thousand).IsZero() && amount.GreaterThanOrEqual(thousand):
		risk += 0.3
		reasons = append(reasons, "round multiple of 1000")
	case amount.Mod(hundred).IsZero() && amount.GreaterThanOrEqual(fiveHundred):
		risk += 0.1
		reasons = append(reasons, "round multiple of 100")
	}

	if claim.PhoneHash != "" {
		monthAgo := claim.SubmittedAt.Add(-30 * 24 * time.Hour)
		repeats, err := s.history.CountSameAmountByPhone(ctx, claim.PhoneHash, amount, monthAgo)
		if err != nil {
			return SignalResult{}, err
		}
		if repeats > 0 {
			repeatRisk := 0.1 * float64(repeats)
			if repeatRisk > 0.4 {
				repeatRisk = 0.4
			}
			risk += repeatRisk
			reasons = append(reasons, fmt.Sprintf("same amount claimed %d times in 30 days", repeats))
		}
	}

	if amount.GreaterThan(tenThousand) {
		risk += 0.2
		reasons = append(reasons, "amount above 10000")
	}

	if risk == 0 {
		return SignalResult{}, nil
	}
	return SignalResult{
		Risk:        clamp01(risk),
		Confidence:  0.75,
		Description: strings.Join(reasons, "; "),
	}, nil
}

// rapidSubmissionSignal flags burst submission from the same phone or IP.
type rapidSubmissionSignal struct {
	history History
}

func (s *rapidSubmissionSignal) Name() enums.FraudFlagType { return enums.FraudFlagRapidSubmission }
func (s *rapidSubmissionSignal) Weight() float64           { return 0.15 }

func (s *rapidSubmissionSignal) Evaluate(ctx context.Context, claim Claim) (SignalResult, error) {
	var risk float64
	var reasons []string

	if claim.PhoneHash != "" {
		recent, err := s.history.CountClaimsByPhoneSince(ctx, claim.PhoneHash, claim.SubmittedAt.Add(-5*time.Minute))
		if err != nil {
			return SignalResult{}, err
		}
		if recent > 0 {
			risk += 0.8
			reasons = append(reasons, fmt.Sprintf("%d claims from this phone in 5 minutes", recent))
		}
	}

	if claim.IPAddress != "" {
		ipCount, err := s.history.CountClaimsByIPSince(ctx, claim.IPAddress, claim.SubmittedAt.Add(-time.Hour))
		if err != nil {
			return SignalResult{}, err
		}
		switch {
		case ipCount > 20:
			risk += 0.6
			reasons = append(reasons, fmt.Sprintf("%d claims from this IP in the last hour", ipCount))
		case ipCount > 10:
			risk += 0.3
			reasons = append(reasons, fmt.Sprintf("%d claims from this IP in the last hour", ipCount))
		}
	}

	if risk == 0 {
		return SignalResult{}, nil
	}
	return SignalResult{
		Risk:        clamp01(risk),
		Confidence:  0.9,
		Description: strings.Join(reasons, "; "),
	}, nil
}

var botPatterns = []string{"bot", "crawler", "spider", "curl", "wget", "python-requests", "headless"}

// deviceFingerprintSignal grades request metadata quality. It never queries
// history, only the claim itself.
type deviceFingerprintSignal struct{}

func (s *deviceFingerprintSignal) Name() enums.FraudFlagType { return enums.FraudFlagDeviceFingerprint }
func (s *deviceFingerprintSignal) Weight() float64           { return 0.10 }

func (s *deviceFingerprintSignal) Evaluate(_ context.Context, claim Claim) (SignalResult, error) {
	var risk float64
	var reasons []string

	ua := strings.TrimSpace(claim.UserAgent)
	switch {
	case ua == "":
		risk += 0.4
		reasons = append(reasons, "missing user agent")
	case len(ua) < 20:
		risk += 0.2
		reasons = append(reasons, "suspiciously short user agent")
	}

	lowered := strings.ToLower(ua)
	for _, pattern := range botPatterns {
		if strings.Contains(lowered, pattern) {
			risk += 0.5
			reasons = append(reasons, "bot pattern in user agent")
			break
		}
	}

	for _, header := range []string{"Accept", "Accept-Language"} {
		if claim.Headers[header] == "" {
			risk += 0.15
			reasons = append(reasons, fmt.Sprintf("missing %s header", header))
		}
	}

	if ip := net.ParseIP(claim.IPAddress); ip != nil && (ip.IsPrivate() || ip.IsLoopback()) {
		risk += 0.2
		reasons = append(reasons, "private or local IP address")
	}

	if risk == 0 {
		return SignalResult{}, nil
	}
	return SignalResult{
		Risk:        clamp01(risk),
		Confidence:  0.6,
		Description: strings.Join(reasons, "; "),
	}, nil
}

// duplicateClaimSignal flags an exact resubmission of the same claim.
type duplicateClaimSignal struct {
	history History
}

func (s *duplicateClaimSignal) Name() enums.FraudFlagType { return enums.FraudFlagDuplicateClaim }
func (s *duplicateClaimSignal) Weight() float64           { return 0.10 }

func (s *duplicateClaimSignal) Evaluate(ctx context.Context, claim Claim) (SignalResult, error) {
	if claim.PhoneHash == "" {
		return SignalResult{}, nil
	}
	dup, err := s.history.ExistsDuplicate(ctx, claim.PhoneHash, claim.BusinessID, claim.Amount, claim.SubmittedAt.Add(-time.Hour))
	if err != nil {
		return SignalResult{}, err
	}
	if !dup {
		return SignalResult{}, nil
	}
	return SignalResult{
		Risk:        0.9,
		Confidence:  0.95,
		Description: "identical claim from this phone within the last hour",
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DefaultSignals returns the production analyzer set in evaluation order.
func DefaultSignals(history History) []Signal {
	return []Signal{
		&phoneAbuseSignal{history: history},
		&timePatternSignal{history: history},
		&amountPatternSignal{history: history},
		&rapidSubmissionSignal{history: history},
		&deviceFingerprintSignal{},
		&duplicateClaimSignal{history: history},
	}
}
