package cron

import (
	"testing"

	"github.com/fallstrom/kvittofri-backend/internal/businesses"
	"github.com/fallstrom/kvittofri-backend/internal/fraud"
	"github.com/fallstrom/kvittofri-backend/internal/storecodes"
	"github.com/fallstrom/kvittofri-backend/internal/verifications"
	"github.com/fallstrom/kvittofri-backend/pkg/config"
	"github.com/fallstrom/kvittofri-backend/pkg/db"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
)

// newTestReviewer builds a verification service against the test database.
// The jobs only use its auto-approval path.
func newTestReviewer(t *testing.T, client *db.Client, cfg config.VerificationConfig, logg *logger.Logger) *verifications.ServiceImpl {
	t.Helper()

	businessRepo := businesses.NewRepository(client.DB())
	codeSvc, err := storecodes.NewService(storecodes.NewRepository(client.DB()), businessRepo, cfg)
	if err != nil {
		t.Fatalf("store code service: %v", err)
	}
	scorer, err := fraud.NewScorer(fraud.NewHistory(client.DB()), config.FraudConfig{NeutralFallbackScore: 0.5}, logg)
	if err != nil {
		t.Fatalf("fraud scorer: %v", err)
	}
	reviewer, err := verifications.NewService(
		verifications.NewRepository(client.DB()), businessRepo, codeSvc, scorer, client, cfg, logg,
	)
	if err != nil {
		t.Fatalf("verification service: %v", err)
	}
	return reviewer
}
