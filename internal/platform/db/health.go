package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the connection-pool snapshot exposed by the database health
// endpoint.
type PoolStats struct {
	TotalConns      int32         `json:"total_conns"`
	IdleConns       int32         `json:"idle_conns"`
	AcquiredConns   int32         `json:"acquired_conns"`
	MaxConns        int32         `json:"max_conns"`
	AcquireCount    int64         `json:"acquire_count"`
	AcquireDuration time.Duration `json:"acquire_duration"`
	PingLatencyMS   int64         `json:"ping_latency_ms"`
	Healthy         bool          `json:"healthy"`
}

// GetPoolStats pings the database and reports the current pool state.
func GetPoolStats(pool *pgxpool.Pool) PoolStats {
	healthy, latency := pingPool(pool)
	s := pool.Stat()
	return PoolStats{
		TotalConns:      s.TotalConns(),
		IdleConns:       s.IdleConns(),
		AcquiredConns:   s.AcquiredConns(),
		MaxConns:        s.MaxConns(),
		AcquireCount:    s.AcquireCount(),
		AcquireDuration: s.AcquireDuration(),
		PingLatencyMS:   latency.Milliseconds(),
		Healthy:         healthy,
	}
}

func pingPool(pool *pgxpool.Pool) (bool, time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start := time.Now()
	err := pool.Ping(ctx)
	return err == nil, time.Since(start)
}

// HealthHandler reports database reachability and pool utilisation. A failed
// ping downgrades the response to 503 so load balancers drain the instance.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		stats := GetPoolStats(pool)
		status := "healthy"
		code := http.StatusOK
		if !stats.Healthy {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, map[string]interface{}{
			"status": status,
			"pool":   stats,
		})
	}
}
