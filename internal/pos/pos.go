// Package pos defines the pull interface to a business's point-of-sale
// transaction feed. Vendor-specific adapters implement TransactionFeed
// elsewhere; the matcher only depends on this boundary.
package pos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionRecord is one settled register transaction.
type TransactionRecord struct {
	ID         string
	BusinessID uuid.UUID
	LocationID *uuid.UUID
	Amount     decimal.Decimal
	OccurredAt time.Time
}

// TimeRange is a half-open [From, To) interval.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// TransactionFeed lists register transactions for a business inside a window.
type TransactionFeed interface {
	ListTransactions(ctx context.Context, businessID uuid.UUID, window TimeRange) ([]TransactionRecord, error)
}
