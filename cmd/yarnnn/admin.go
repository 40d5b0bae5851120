package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/kvkthecreator/yarnnn/internal/config"
)

// newAdminServer builds the operator-facing surface: liveness/readiness
// checks and a manual tick trigger for debugging a stalled scheduler
// without waiting for the next interval.
func newAdminServer(app *application, cfg config.ServerConfig, log *zap.Logger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
	}))

	r.Get("/healthz", app.handleHealthz(log))
	r.Post("/tick", app.handleTick(log))

	return &http.Server{
		Addr:    ":" + cfg.AdminPort,
		Handler: r,
	}
}

func (app *application) handleHealthz(log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := app.pool.Ping(ctx); err != nil {
			log.Warn("healthz: postgres unreachable", zap.Error(err))
			http.Error(w, "postgres unreachable", http.StatusServiceUnavailable)
			return
		}
		if err := app.redis.Ping(ctx).Err(); err != nil {
			log.Warn("healthz: redis unreachable", zap.Error(err))
			http.Error(w, "redis unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// handleTick runs a dispatcher tick on demand, bypassing the regular
// interval — for operators confirming the scheduler isn't stuck.
func (app *application) handleTick(log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := app.dispatcher.Tick(r.Context(), time.Now())
		log.Info("manual tick triggered",
			zap.Int("deliverables_checked", report.DeliverablesChecked),
			zap.Int("deliverables_triggered", report.DeliverablesTriggered),
			zap.Int("signals_created", report.SignalsCreated),
			zap.Int("errors", len(report.Errors)),
		)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	}
}
