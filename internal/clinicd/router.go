package clinicd

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Repo      *Repository
	Pool      *pgxpool.Pool
	AuthToken string
	Log       *zap.Logger
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(loggingMiddleware(cfg.Log))

	r.Get("/health/live", livenessHandler(cfg.Env, cfg.Version))
	r.Get("/health/ready", readinessHandler(cfg.Pool, cfg.Env, cfg.Version))

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(cfg.AuthToken))

		r.Get("/appointments", listDayHandler(cfg.Repo))
		r.Post("/appointments", bookHandler(cfg.Repo))
		r.Put("/appointments/{id}", rescheduleHandler(cfg.Repo))
		r.Delete("/appointments/{id}", cancelHandler(cfg.Repo))

		r.Post("/vitals/bulk", bulkVitalsHandler(cfg.Repo))
	})

	return r
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func loggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", wrapped.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func livenessHandler(env, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"env":     env,
			"version": version,
		})
	}
}

func readinessHandler(pool *pgxpool.Pool, env, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		deps := map[string]string{"postgres": "ok"}
		status, httpStatus := "ok", http.StatusOK
		if err := pool.Ping(ctx); err != nil {
			deps["postgres"] = err.Error()
			status, httpStatus = "degraded", http.StatusServiceUnavailable
		}

		writeJSON(w, httpStatus, map[string]any{
			"status":       status,
			"env":          env,
			"version":      version,
			"dependencies": deps,
		})
	}
}
