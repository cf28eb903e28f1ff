package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/ecoaire/crac-forecast/internal/cache"
	"github.com/ecoaire/crac-forecast/internal/source"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	alarms source.AlarmSource
	cache  *cache.Cache
}

func NewHealthHandler(alarms source.AlarmSource, dataCache *cache.Cache) *HealthHandler {
	return &HealthHandler{alarms: alarms, cache: dataCache}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	status := "healthy"

	if err := h.alarms.HealthCheck(ctx); err != nil {
		checks["alarm_source"] = "unhealthy: " + err.Error()
		status = "unhealthy"
	} else {
		checks["alarm_source"] = "healthy"
	}

	if h.cache.Status().HasData {
		checks["cache"] = "healthy"
	} else {
		checks["cache"] = "empty"
		if status == "healthy" {
			status = "degraded"
		}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.alarms.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:    "not ready",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
