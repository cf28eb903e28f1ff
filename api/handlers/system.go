package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ecoaire/crac-forecast/internal/cache"
	"github.com/ecoaire/crac-forecast/internal/scheduler"
	"github.com/gin-gonic/gin"
)

// ClientCounter reports how many WebSocket clients are connected.
type ClientCounter interface {
	ClientCount() int
}

type SystemHandler struct {
	cache     *cache.Cache
	scheduler *scheduler.Scheduler
	hub       ClientCounter
}

func NewSystemHandler(dataCache *cache.Cache, sched *scheduler.Scheduler, hub ClientCounter) *SystemHandler {
	return &SystemHandler{cache: dataCache, scheduler: sched, hub: hub}
}

// Status reports cache freshness, scheduled tasks, and stream clients.
func (h *SystemHandler) Status(c *gin.Context) {
	response := gin.H{
		"cache": h.cache.Status(),
		"tasks": h.scheduler.StatusAll(),
	}
	if h.hub != nil {
		response["websocket_clients"] = h.hub.ClientCount()
	}

	c.JSON(http.StatusOK, response)
}

// Refresh forces an immediate data rebuild. A refresh already in flight is
// reported as a conflict, not an error.
func (h *SystemHandler) Refresh(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Minute)
	defer cancel()

	if err := h.cache.Refresh(ctx); err != nil {
		if errors.Is(err, cache.ErrRefreshInProgress) {
			c.JSON(http.StatusConflict, gin.H{"status": "refresh already in progress"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "refresh completed",
		"cache":  h.cache.Status(),
	})
}

// Tasks lists every scheduled task.
func (h *SystemHandler) Tasks(c *gin.Context) {
	tasks := h.scheduler.StatusAll()
	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// Task reports one scheduled task by name.
func (h *SystemHandler) Task(c *gin.Context) {
	status, err := h.scheduler.Status(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// CancelTask stops a scheduled task.
func (h *SystemHandler) CancelTask(c *gin.Context) {
	name := c.Param("name")
	if err := h.scheduler.Cancel(name); err != nil {
		if errors.Is(err, scheduler.ErrTaskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "task cancelled", "task": name})
}
