package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nimbus-stack/nimbus/internal/auth"
	"github.com/nimbus-stack/nimbus/internal/identity"
	"github.com/nimbus-stack/nimbus/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	Gate            *auth.Gate
	AuthHandler     *auth.Handler
	IdentityHandler *identity.Handler
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with Nimbus defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	// The gate runs on every request; downstream guards decide whether an
	// unauthenticated request is acceptable.
	if params.Gate != nil {
		r.Use(params.Gate.Authenticate)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/auth", params.AuthHandler.MountRoutes)
	r.Route("/api/users", params.IdentityHandler.MountRoutes)

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
