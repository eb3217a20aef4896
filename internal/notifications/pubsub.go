package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/fallstrom/kvittofri-backend/pkg/pubsub"
)

// PubSubSender publishes notification events for the delivery workers.
type PubSubSender struct {
	client *pubsub.Client
}

// NewPubSubSender wires the sender to the shared Pub/Sub client.
func NewPubSubSender(client *pubsub.Client) (*PubSubSender, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client required")
	}
	return &PubSubSender{client: client}, nil
}

func (s *PubSubSender) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	result := s.client.NotificationPublisher().Publish(ctx, &gcppubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"template": string(message.Template)},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
