package handler

import (
	"context"      // context bounds the pings
	"database/sql" // sql.DB is pinged for MySQL
	"net/http"     // http defines status code constants
	"time"         // time defines the ping timeout

	"github.com/labstack/echo/v4"  // echo framework provides context and JSON helpers
	"github.com/redis/go-redis/v9" // redis client is pinged when configured
)

// HealthHandler reports whether the process and its backing stores answer.
// Redis is optional; a nil client is reported as "disabled".
type HealthHandler struct {
	DB  *sql.DB       // required store
	RDB *redis.Client // optional cache and lock store
}

func NewHealthHandler(db *sql.DB, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{DB: db, RDB: rdb}
}

// Health handles GET /healthz.  It answers 503 when MySQL is unreachable.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := echo.Map{"status": "ok", "db": "ok", "redis": "disabled"}
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"], body["db"] = "degraded", "unreachable"
		}
	}
	if h.RDB != nil {
		body["redis"] = "ok"
		if err := h.RDB.Ping(ctx).Err(); err != nil { // Redis loss degrades features, not health
			body["redis"] = "unreachable"
		}
	}
	return c.JSON(status, body)
}
