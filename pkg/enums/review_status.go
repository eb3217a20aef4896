package enums

import "fmt"

// ReviewStatus tracks where a verification sits in the review lifecycle.
type ReviewStatus string

const (
	ReviewStatusPending      ReviewStatus = "pending"
	ReviewStatusApproved     ReviewStatus = "approved"
	ReviewStatusRejected     ReviewStatus = "rejected"
	ReviewStatusAutoApproved ReviewStatus = "auto_approved"
)

var validReviewStatuses = []ReviewStatus{
	ReviewStatusPending,
	ReviewStatusApproved,
	ReviewStatusRejected,
	ReviewStatusAutoApproved,
}

// String implements fmt.Stringer.
func (r ReviewStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is known.
func (r ReviewStatus) IsValid() bool {
	for _, candidate := range validReviewStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (r ReviewStatus) IsTerminal() bool {
	return r == ReviewStatusApproved || r == ReviewStatusRejected || r == ReviewStatusAutoApproved
}

// CountsTowardPayout reports whether verifications in this status contribute
// to batch payment totals.
func (r ReviewStatus) CountsTowardPayout() bool {
	return r == ReviewStatusApproved || r == ReviewStatusAutoApproved
}

// ParseReviewStatus converts raw input into a ReviewStatus.
func ParseReviewStatus(value string) (ReviewStatus, error) {
	for _, candidate := range validReviewStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid review status %q", value)
}
