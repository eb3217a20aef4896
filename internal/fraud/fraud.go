package fraud

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fallstrom/kvittofri-backend/pkg/enums"
)

// Claim carries the request-time facts a signal analyzer may inspect.
// Analyzers treat missing fields as absent evidence, never as errors.
type Claim struct {
	BusinessID          uuid.UUID
	PhoneHash           string
	Amount              decimal.Decimal
	PurchaseTime        time.Time
	SubmittedAt         time.Time
	IPAddress           string
	UserAgent           string
	Headers             map[string]string
	DeviceFingerprintID *string
}

// Flag is one structured fraud indicator attached to a verification.
type Flag struct {
	Type        enums.FraudFlagType `json:"type"`
	Severity    enums.FlagSeverity  `json:"severity"`
	Confidence  float64             `json:"confidence"`
	Description string              `json:"description"`
}

// Result is the composite outcome of scoring a single claim.
type Result struct {
	Score float64
	Flags []Flag
}

// SignalResult is one analyzer's verdict on a claim.
type SignalResult struct {
	Risk        float64
	Confidence  float64
	Description string
}

// Signal analyzes one independent fraud dimension of a claim.
type Signal interface {
	Name() enums.FraudFlagType
	Weight() float64
	Evaluate(ctx context.Context, claim Claim) (SignalResult, error)
}

// History exposes the read-only claim history queries the analyzers need.
type History interface {
	CountClaimsByPhoneSince(ctx context.Context, phoneHash string, since time.Time) (int64, error)
	ClaimStatsByPhone(ctx context.Context, phoneHash string, since time.Time) (total int64, rejected int64, err error)
	CountDistinctBusinessesByPhone(ctx context.Context, phoneHash string, since time.Time) (int64, error)
	LastClaimTimeByPhone(ctx context.Context, phoneHash string, before time.Time) (*time.Time, error)
	CountSameAmountByPhone(ctx context.Context, phoneHash string, amount decimal.Decimal, since time.Time) (int64, error)
	CountClaimsByIPSince(ctx context.Context, ip string, since time.Time) (int64, error)
	ExistsDuplicate(ctx context.Context, phoneHash string, businessID uuid.UUID, amount decimal.Decimal, since time.Time) (bool, error)
}
