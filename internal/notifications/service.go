package notifications

import (
	"context"
	"fmt"

	"github.com/fallstrom/kvittofri-backend/pkg/enums"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
)

// Service fans a notification out to every listed recipient, swallowing
// delivery errors.
type Service struct {
	sender Sender
	logg   *logger.Logger
}

// NewService wires the notification fan-out to a sender.
func NewService(sender Sender, logg *logger.Logger) (*Service, error) {
	if sender == nil {
		return nil, fmt.Errorf("notification sender required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{sender: sender, logg: logg}, nil
}

// Notify sends the template to each recipient. Failures are logged per
// recipient; the call itself always succeeds.
func (s *Service) Notify(ctx context.Context, template enums.NotificationTemplate, recipients []string, data map[string]any) {
	for _, recipient := range recipients {
		err := s.sender.Send(ctx, Message{
			Template:  template,
			Recipient: recipient,
			Data:      data,
		})
		if err != nil {
			s.logg.Error(
				s.logg.WithFields(ctx, map[string]any{
					"template":  string(template),
					"recipient": recipient,
				}),
				"notification delivery failed",
				err,
			)
		}
	}
}
