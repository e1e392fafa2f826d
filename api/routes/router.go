package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/branchledger/api/controllers"
	"github.com/angelmondragon/branchledger/api/middleware"
	"github.com/angelmondragon/branchledger/internal/followups"
	"github.com/angelmondragon/branchledger/internal/manifests"
	"github.com/angelmondragon/branchledger/pkg/config"
	"github.com/angelmondragon/branchledger/pkg/enums"
	"github.com/angelmondragon/branchledger/pkg/logger"
	"github.com/angelmondragon/branchledger/pkg/metrics"
	"github.com/angelmondragon/branchledger/pkg/redis"
)

// NewRouter wires every HTTP route. redisClient may be nil, in which case
// rate limiting and idempotency keys are disabled and readiness reports redis
// as disabled.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	manifestService manifests.Service,
	followUpService followups.Service,
	metricsHandler http.Handler,
	httpMetrics *metrics.HTTPMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Metrics(httpMetrics),
		middleware.Operator(logg),
	)

	var redisPinger controllers.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	mutations := func(r chi.Router) {
		r.Use(middleware.RequireOperator(logg))
		if redisClient != nil {
			policy := middleware.NewRateLimitPolicy("mutations", cfg.RateLimit.OperatorWindow, cfg.RateLimit.OperatorLimit)
			r.Use(
				middleware.OperatorRateLimit(policy, redisClient, logg),
				middleware.Idempotency(redisClient, logg),
			)
		}
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/manifests", func(r chi.Router) {
			r.Get("/", controllers.ListManifests(manifestService, logg))
			r.Get("/by-number/{number}", controllers.GetManifestByNumber(manifestService, logg))
			r.Get("/{manifestId}", controllers.GetManifest(manifestService, logg))
			r.Get("/{manifestId}/totals", controllers.ManifestTotals(manifestService, logg))
			r.Get("/{manifestId}/audit", controllers.ManifestAudit(manifestService, logg))

			r.Group(func(r chi.Router) {
				mutations(r)
				r.Post("/", controllers.CreateManifest(manifestService, logg))
				r.Post("/{manifestId}/items", controllers.AddManifestItem(manifestService, logg))
				r.Patch("/{manifestId}/items/{itemRef}", controllers.UpdateManifestItem(manifestService, logg))
				r.Delete("/{manifestId}/items/{itemRef}", controllers.RemoveManifestItem(manifestService, logg))
				r.Post("/{manifestId}/dispatches", controllers.DispatchManifestItem(manifestService, logg))
				r.Post("/{manifestId}/link", controllers.LinkManifestVehicle(manifestService, logg))
				r.With(middleware.RequireRole(logg, enums.OperatorRoleAdmin)).
					Delete("/{manifestId}", controllers.DeleteManifest(manifestService, logg))
			})
		})

		r.Route("/followups", func(r chi.Router) {
			r.Get("/", controllers.ListFollowUps(followUpService, logg))
			r.Group(func(r chi.Router) {
				mutations(r)
				r.Post("/{followUpId}/resolve", controllers.ResolveFollowUp(followUpService, logg))
			})
		})
	})

	return r
}
