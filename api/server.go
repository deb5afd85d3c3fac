// Package api exposes allocation runs, moves, locks and the run history over
// HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/kilianp07/teamalloc/app/jobs"
	"github.com/kilianp07/teamalloc/core/events"
	"github.com/kilianp07/teamalloc/core/history"
	"github.com/kilianp07/teamalloc/core/model"
	"github.com/kilianp07/teamalloc/infra/logger"
	"github.com/kilianp07/teamalloc/internal/eventbus"
)

// Runs is the job runner used by the handlers.
type Runs interface {
	Submit(req jobs.Request) (jobs.Job, error)
	Get(id string) (jobs.Job, error)
	List() []jobs.Job
	Move(ctx context.Context, id string, req jobs.MoveRequest) (jobs.Job, error)
	SetLocked(id, teamID string, locked bool) (jobs.Job, error)
}

// Options configures the router.
type Options struct {
	// Token enables bearer authentication on /api when not empty.
	Token          string
	RunsPerSecond  float64
	RunsBurst      int
	AllowedOrigins []string
	MaxBodyBytes   int64
	// Sheet is the worksheet read from uploaded spreadsheets.
	Sheet string
	// Defaults fills the team count and tolerance missing from a request.
	Defaults func(teams int, tolerance *float64) model.Params
	Log      logger.Logger
}

type handler struct {
	runs  Runs
	store history.Store
	bus   *eventbus.Bus[events.RunEvent]
	opts  Options
	log   logger.Logger
}

// NewRouter builds the HTTP handler. store and bus may be nil, which disables
// the history and event routes.
func NewRouter(runs Runs, store history.Store, bus *eventbus.Bus[events.RunEvent], opts Options) http.Handler {
	if opts.Log == nil {
		opts.Log = logger.NopLogger{}
	}
	if opts.Defaults == nil {
		opts.Defaults = func(teams int, tolerance *float64) model.Params {
			p := model.Params{NumberOfTeams: teams}
			if tolerance != nil {
				p.TolerancePercent = *tolerance
			}
			return p
		}
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	h := &handler{runs: runs, store: store, bus: bus, opts: opts, log: opts.Log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(opts.Token))

		submit := r.With()
		if opts.RunsPerSecond > 0 {
			burst := opts.RunsBurst
			if burst < 1 {
				burst = 1
			}
			submit = r.With(rateLimit(rate.NewLimiter(rate.Limit(opts.RunsPerSecond), burst)))
		}
		submit.Post("/runs", h.submitRun)
		r.Get("/runs", h.listRuns)
		r.Get("/runs/{id}", h.getRun)
		r.Get("/runs/{id}/export", h.exportRun)
		r.Post("/runs/{id}/moves", h.moveStation)
		r.Put("/runs/{id}/teams/{team}/lock", h.lockTeam)

		r.Get("/history", h.queryHistory)
		r.Get("/history/{id}", h.getHistory)
		r.Delete("/history/{id}", h.deleteHistory)

		r.Get("/events", h.streamEvents)
	})
	return r
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debugw("http request", map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"duration": time.Since(start).String(),
		})
	})
}
