package app

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/alparslanahmed/vergilevhasi-ocr/internal/cache"
	"github.com/alparslanahmed/vergilevhasi-ocr/internal/observability"
	"github.com/alparslanahmed/vergilevhasi-ocr/internal/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  logrus.FieldLogger
	Config  *Config
	Handler *web.Handler
	Cache   *cache.Cache
	Metrics *observability.Metrics
}

// NewRouter constructs the chi router with the service's routes.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if err := params.Cache.Ping(r.Context()); err != nil {
			params.Logger.WithError(err).Warn("Cache ping failed")
			status = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	limit := 0
	if params.Config != nil {
		limit = params.Config.RateLimitPerMinute
	}
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(limit))
		params.Handler.MountRoutes(r)
	})

	return r
}
