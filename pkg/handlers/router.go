package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-macro/pkg/config"
	"github.com/ekaya-inc/ekaya-macro/pkg/database"
	"github.com/ekaya-inc/ekaya-macro/pkg/metrics"
	"github.com/ekaya-inc/ekaya-macro/pkg/middleware"
)

// RouterDeps are the collaborators of the status server.
type RouterDeps struct {
	Config   *config.Config
	Scopes   database.ScopeProvider // nil serves the database routes without a scope
	Records  RecordCounter
	Runs     RunReader
	Registry *prometheus.Registry // nil disables /metrics
	Logger   *zap.Logger
}

// NewRouter builds the status server routes.
func NewRouter(d RouterDeps) http.Handler {
	var obs middleware.RequestObserver
	if d.Registry != nil {
		obs = metrics.NewHTTPMetrics(d.Registry)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Logger, obs))
	r.Use(chimw.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	health := NewHealthHandler(d.Config, d.Records, d.Logger)
	health.RegisterPublicRoutes(r)
	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Registry))
	}

	r.Group(func(r chi.Router) {
		if d.Scopes != nil {
			r.Use(database.WithScopeContext(d.Scopes, "http", d.Logger))
		}
		health.RegisterRoutes(r)
		NewStatusHandler(d.Runs, d.Logger).RegisterRoutes(r)
	})

	return r
}
