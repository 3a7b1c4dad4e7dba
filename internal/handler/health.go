package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// DBPinger matches *sql.DB.
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// CachePinger matches the Redis cache client.
type CachePinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	DB    DBPinger
	Cache CachePinger
}

func NewHealthHandler(db DBPinger, cache CachePinger) *HealthHandler {
	return &HealthHandler{DB: db, Cache: cache}
}

// Health probes both backing stores.  Any failed check degrades the
// overall status and flips the response to 503.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	dbOK := h.DB.PingContext(ctx) == nil
	cacheOK := h.Cache.Ping(ctx) == nil

	status := "ok"
	code := http.StatusOK
	if !dbOK || !cacheOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, echo.Map{
		"status": status,
		"checks": echo.Map{"database": dbOK, "redis": cacheOK},
	})
}
