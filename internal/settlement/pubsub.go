package settlement

import (
	"context"
	"encoding/json"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/fallstrom/kvittofri-backend/pkg/logger"
	"github.com/fallstrom/kvittofri-backend/pkg/pubsub"
)

// PubSubExecutor publishes settlement requests for the downstream payment
// workers. Publishing is the hand-off: once the payout request is accepted
// by the broker the batch is considered settled from the core's view.
type PubSubExecutor struct {
	client *pubsub.Client
	logg   *logger.Logger
}

// NewPubSubExecutor wires the executor to the shared Pub/Sub client.
func NewPubSubExecutor(client *pubsub.Client, logg *logger.Logger) (*PubSubExecutor, error) {
	if client == nil {
		return nil, fmt.Errorf("pubsub client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &PubSubExecutor{client: client, logg: logg}, nil
}

func (e *PubSubExecutor) GenerateInvoice(ctx context.Context, invoice Invoice) error {
	payload, err := json.Marshal(invoice)
	if err != nil {
		return fmt.Errorf("encode invoice: %w", err)
	}
	result := e.client.PayoutPublisher().Publish(ctx, &gcppubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"event": "invoice.generate"},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish invoice request: %w", err)
	}
	e.logg.Info(e.logg.WithBatchID(ctx, invoice.BatchID.String()), "invoice generation requested")
	return nil
}

func (e *PubSubExecutor) Payout(ctx context.Context, request PayoutRequest) (*PayoutResult, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encode payout request: %w", err)
	}
	result := e.client.PayoutPublisher().Publish(ctx, &gcppubsub.Message{
		Data:       payload,
		Attributes: map[string]string{"event": "payout.request"},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("publish payout request: %w", err)
	}
	e.logg.Info(e.logg.WithBatchID(ctx, request.BatchID.String()), "payout requested")
	return &PayoutResult{Success: true, Reference: id}, nil
}
