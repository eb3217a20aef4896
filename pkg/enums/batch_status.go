package enums

import "fmt"

// BatchStatus tracks the monthly billing batch lifecycle. Transitions are
// strictly monotonic: collecting -> review_period -> payment_processing -> completed.
type BatchStatus string

const (
	BatchStatusCollecting        BatchStatus = "collecting"
	BatchStatusReviewPeriod      BatchStatus = "review_period"
	BatchStatusPaymentProcessing BatchStatus = "payment_processing"
	BatchStatusCompleted         BatchStatus = "completed"
)

var batchStatusOrder = map[BatchStatus]int{
	BatchStatusCollecting:        0,
	BatchStatusReviewPeriod:      1,
	BatchStatusPaymentProcessing: 2,
	BatchStatusCompleted:         3,
}

// String implements fmt.Stringer.
func (b BatchStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is known.
func (b BatchStatus) IsValid() bool {
	_, ok := batchStatusOrder[b]
	return ok
}

// CanTransitionTo reports whether moving to next respects the monotonic order.
func (b BatchStatus) CanTransitionTo(next BatchStatus) bool {
	from, okFrom := batchStatusOrder[b]
	to, okTo := batchStatusOrder[next]
	if !okFrom || !okTo {
		return false
	}
	return to == from+1
}

// ParseBatchStatus converts raw input into a BatchStatus.
func ParseBatchStatus(value string) (BatchStatus, error) {
	if BatchStatus(value).IsValid() {
		return BatchStatus(value), nil
	}
	return "", fmt.Errorf("invalid batch status %q", value)
}
