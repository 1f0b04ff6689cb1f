package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Digigit24/kumsserp-sub000/internal/fulfillment"
	"github.com/Digigit24/kumsserp-sub000/internal/indent"
	"github.com/Digigit24/kumsserp-sub000/internal/issue"
	"github.com/Digigit24/kumsserp-sub000/internal/observability"
	"github.com/Digigit24/kumsserp-sub000/internal/procurement"
	"github.com/Digigit24/kumsserp-sub000/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	IndentHandler      *indent.Handler
	IssueHandler       *issue.Handler
	ProcurementHandler *procurement.Handler
	FulfillmentHandler *fulfillment.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router.
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

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		params.IndentHandler.MountRoutes(r)
		params.IssueHandler.MountRoutes(r)
		params.ProcurementHandler.MountRoutes(r)
		params.FulfillmentHandler.MountRoutes(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
