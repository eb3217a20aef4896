package types

import "github.com/shopspring/decimal"

// ToleranceSettings bound how far a claim may deviate from a POS transaction
// and still be considered a match. Configured per business.
type ToleranceSettings struct {
	TimeToleranceMinutes int             `json:"time_tolerance_minutes"`
	AmountToleranceSEK   decimal.Decimal `json:"amount_tolerance_sek"`
}
