package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/omaldonado/crewdispatch-backend/api/responses"
	"github.com/omaldonado/crewdispatch-backend/pkg/config"
	pkgerrors "github.com/omaldonado/crewdispatch-backend/pkg/errors"
	"github.com/omaldonado/crewdispatch-backend/pkg/logger"
)

const readinessTimeout = 5 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CrewDispatch-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports not-ready when any wired dependency fails its ping.
// Nil pingers are skipped so workers can reuse the handler with a subset.
func HealthReady(cfg *config.Config, logg *logger.Logger, db, redis pinger) http.HandlerFunc {
	checks := map[string]pinger{
		"database": db,
		"redis":    redis,
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-CrewDispatch-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		for name, dep := range checks {
			if dep == nil {
				continue
			}
			if err := dep.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" not ready").
						WithDetails(map[string]any{"dependency": name}))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
