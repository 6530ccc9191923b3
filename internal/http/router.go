package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"assetforge/internal/http/handlers"
	"assetforge/internal/infra"
	"assetforge/internal/middleware"
)

// NewRouter wires the API surface. The event stream and control channel
// share the /v1 prefix with the asset and review routes.
func NewRouter(app *handlers.App, cfg *infra.Config) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/assets", func(r chi.Router) {
		r.Post("/", app.EnqueueAsset)
		r.Get("/", app.ListAssets)
		r.Get("/pending", app.ListPending)
		r.Get("/{id}", app.GetAsset)
		r.Get("/{id}/artifact", app.GetArtifact)
		r.Get("/{id}/decisions", app.ListAssetDecisions)
		r.Get("/{id}/jobs", app.ListAssetJobs)
		r.Post("/{id}/decision", app.DecideAsset)
		r.Post("/{id}/reset", app.ResetAsset)
	})

	r.Get("/v1/budget", app.GetBudget)
	r.Get("/v1/events", app.StreamEvents)
	r.Post("/v1/control", app.SendControl)

	return r
}
