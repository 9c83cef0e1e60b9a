package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GTDGit/gtd_esewa/internal/utils"
)

var startTime = time.Now()

// pingTimeout bounds each dependency check.
const pingTimeout = 2 * time.Second

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler provides health endpoint.
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler creates a new HealthHandler reporting on the named checks.
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// GetHealth responds with service and dependency status.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	healthy := true
	deps := make(gin.H, len(h.checks))
	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		err := check(ctx)
		cancel()

		if err != nil {
			healthy = false
			deps[name] = gin.H{"status": "disconnected"}
			continue
		}
		deps[name] = gin.H{"status": "connected"}
	}

	status, message := "healthy", "Service is healthy"
	if !healthy {
		status, message = "degraded", "Service is degraded"
	}

	utils.Success(c, 200, message, gin.H{
		"status":       status,
		"version":      "1.0.0",
		"uptime":       int(time.Since(startTime).Seconds()),
		"dependencies": deps,
	})
}
