// Package notifications is the best-effort outbound messaging boundary.
// Delivery failures are logged, never propagated; no state transition may
// depend on a notification going out.
package notifications

import (
	"context"

	"github.com/fallstrom/kvittofri-backend/pkg/enums"
)

// Message is one templated notification for a business contact.
type Message struct {
	Template  enums.NotificationTemplate `json:"template"`
	Recipient string                     `json:"recipient"`
	Data      map[string]any             `json:"data"`
}

// Sender delivers a notification message.
type Sender interface {
	Send(ctx context.Context, message Message) error
}
