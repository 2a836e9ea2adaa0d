package controller

import (
	"context"
	"net/http"
	"time"
)

type pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealth reports store and Redis reachability.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := map[string]string{"status": "ok", "store": "ok"}
	code := http.StatusOK

	if p, ok := c.App.Store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			status["status"] = "degraded"
			status["store"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	if c.App.RedisClient != nil {
		status["redis"] = "ok"
		// Redis only carries invalidations; the TTL still bounds staleness without it.
		if err := c.App.RedisClient.Health(ctx); err != nil {
			status["redis"] = err.Error()
		}
	}

	c.writeJSON(w, code, status)
}
