package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/zhikangxie107/transcribe/internal/recognizer"
)

type HealthHandler struct {
	db     *pgxpool.Pool
	redis  *redis.Client
	engine recognizer.Engine
}

func NewHealthHandler(db *pgxpool.Pool, rdb *redis.Client, engine recognizer.Engine) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, engine: engine}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports per-dependency status. Redis is optional so a missing
// client is simply omitted rather than marked unhealthy.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}

	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "ok"
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(r.Context()).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
		} else {
			checks["redis"] = "ok"
		}
	}

	if h.engine != nil {
		checks["recognizer"] = "ok (" + h.engine.Model() + ")"
	}

	status := http.StatusOK
	for _, v := range checks {
		if len(v) < 2 || v[:2] != "ok" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, map[string]any{"status": statusStr(status), "checks": checks})
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
