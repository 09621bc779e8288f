package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is a dependency whose reachability is reported by the health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports the number of open wizard sessions.
type SessionCounter interface {
	Active() int
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	deps     map[string]Pinger
	sessions SessionCounter
	started  time.Time
	logger   *slog.Logger
}

// NewHealthHandler creates a HealthHandler. deps maps a dependency name
// ("postgres", "redis", "s3") to its pinger; nil entries are skipped.
func NewHealthHandler(deps map[string]Pinger, sessions SessionCounter, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		deps:     deps,
		sessions: sessions,
		started:  time.Now(),
		logger:   logger,
	}
}

// HealthCheck reports process liveness and the state of each dependency.
// A failing dependency degrades the response to 503.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, p := range h.deps {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "health: dependency unreachable",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	resp := map[string]any{
		"status":         status,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"checks":         checks,
	}
	if h.sessions != nil {
		resp["active_sessions"] = h.sessions.Active()
	}
	writeJSON(w, code, resp)
}
