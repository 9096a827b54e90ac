/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, also added to log records
  2. RealIP:     Client address behind proxies
  3. Logger:     Request logging
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Prometheus request counters and latency
  6. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/timelines/*      Timelines, selection, filter, export
  /api/presets/*        Demo timelines and settings presets
  /api/admin/*          Admin operations
  /metrics              Prometheus
  /healthz              Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Route("/timelines", func(r chi.Router) {
			r.Get("/", h.ListTimelines)
			r.Post("/", h.CreateTimeline)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetTimeline)
				r.Delete("/", h.DeleteTimeline)
				r.Put("/settings", h.UpdateSettings)
				r.Put("/dates", h.ReplaceDates)
				r.Put("/granularity", h.ChangeGranularity)

				r.Post("/selection", h.Select)
				r.Post("/selection/current", h.SelectCurrent)
				r.Post("/selection/latest", h.SelectLatest)
				r.Delete("/selection", h.ClearSelection)

				r.Get("/filter", h.GetFilter)
				r.Get("/labels", h.GetLabels)
				r.Get("/events", h.GetEvents)
				r.Post("/export", h.ExportTimeline)
			})
		})

		r.Route("/presets", func(r chi.Router) {
			r.Get("/", h.ListPresets)
			r.Get("/settings", h.ListSettingsPresets)
			r.Post("/load", h.LoadPreset)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/refresh", h.TriggerRefresh)
		})
	})

	return r
}
