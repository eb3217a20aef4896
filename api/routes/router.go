package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fallstrom/kvittofri-backend/api/controllers"
	"github.com/fallstrom/kvittofri-backend/api/middleware"
	"github.com/fallstrom/kvittofri-backend/internal/billing"
	"github.com/fallstrom/kvittofri-backend/internal/businesses"
	"github.com/fallstrom/kvittofri-backend/internal/matching"
	"github.com/fallstrom/kvittofri-backend/internal/storecodes"
	"github.com/fallstrom/kvittofri-backend/internal/verifications"
	"github.com/fallstrom/kvittofri-backend/pkg/config"
	"github.com/fallstrom/kvittofri-backend/pkg/db"
	"github.com/fallstrom/kvittofri-backend/pkg/logger"
	"github.com/fallstrom/kvittofri-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	verificationService verifications.Service,
	billingService billing.Service,
	storeCodeService storecodes.Service,
	matchingService matching.Service,
	businessRepo businesses.Repository,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/claims", controllers.SubmitClaim(verificationService, logg))

		r.Route("/verifications/{verificationId}", func(r chi.Router) {
			r.Get("/", controllers.GetVerification(verificationService, logg))
			r.Post("/review", controllers.ReviewVerification(verificationService, logg))
		})

		r.Route("/businesses/{businessId}", func(r chi.Router) {
			r.Get("/batches/{month}", controllers.BatchSummary(billingService, logg))
			r.Post("/match-report", controllers.MatchReport(matchingService, businessRepo, logg))
			r.Route("/store-codes", func(r chi.Router) {
				r.Post("/", controllers.IssueStoreCode(storeCodeService, logg))
				r.Get("/", controllers.ListStoreCodes(storeCodeService, logg))
			})
		})
	})

	return r
}
