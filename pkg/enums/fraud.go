package enums

// FraudFlagType classifies the signal that raised a fraud flag.
type FraudFlagType string

const (
	FraudFlagPhoneAbuse         FraudFlagType = "phone_abuse"
	FraudFlagTimePattern        FraudFlagType = "time_pattern"
	FraudFlagAmountPattern      FraudFlagType = "amount_pattern"
	FraudFlagRapidSubmission    FraudFlagType = "rapid_submission"
	FraudFlagDeviceFingerprint  FraudFlagType = "device_fingerprint"
	FraudFlagDuplicateClaim     FraudFlagType = "duplicate_claim"
	FraudFlagScoringUnavailable FraudFlagType = "scoring_unavailable"
)

// String implements fmt.Stringer.
func (f FraudFlagType) String() string {
	return string(f)
}

// FlagSeverity grades a fraud flag for downstream consumers.
type FlagSeverity string

const (
	FlagSeverityLow    FlagSeverity = "low"
	FlagSeverityMedium FlagSeverity = "medium"
	FlagSeverityHigh   FlagSeverity = "high"
)

// SeverityForRisk derives the severity band from a signal's own risk value.
func SeverityForRisk(risk float64) FlagSeverity {
	switch {
	case risk > 0.7:
		return FlagSeverityHigh
	case risk > 0.4:
		return FlagSeverityMedium
	default:
		return FlagSeverityLow
	}
}
