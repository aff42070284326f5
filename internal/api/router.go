// Package api is the agent-local HTTP surface consumed by the UI layer. It
// never talks to the remote service directly; everything goes through the
// scheduling service and the local store.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/carebridge/clinic-sync/internal/schedule"
	"github.com/carebridge/clinic-sync/internal/vitals"
)

type RouterConfig struct {
	Schedule *schedule.Service
	Vitals   vitals.Store
	Health   Pinger
	Log      *zap.Logger
	Env      string
	Version  string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Log))

	health := NewHealthHandler(cfg.Health, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Get("/appointments", listDayHandler(cfg.Schedule))
	r.Post("/appointments", bookHandler(cfg.Schedule))
	r.Post("/appointments/{id}/reschedule", rescheduleHandler(cfg.Schedule))
	r.Post("/appointments/{id}/cancel", cancelHandler(cfg.Schedule))

	r.Post("/vitals", recordVitalHandler(cfg.Vitals))
	r.Get("/patients/{id}/vitals", patientVitalsHandler(cfg.Vitals))

	return r
}
