package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/ecoaire/crac-forecast/internal/cache"
	"github.com/ecoaire/crac-forecast/pkg/config"
	"github.com/ecoaire/crac-forecast/pkg/models"
	"github.com/ecoaire/crac-forecast/pkg/validation"
	"github.com/gin-gonic/gin"
)

// tenantParam validates and sanitizes the optional tenant query parameter,
// writing the error response itself on failure.
func tenantParam(c *gin.Context) (string, bool) {
	tenant := c.Query("tenant")
	if err := validation.ValidateTenant(tenant); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return validation.SanitizeString(tenant), true
}

type DeviceHandler struct {
	cache *cache.Cache
	cfg   config.APIConfig
}

func NewDeviceHandler(dataCache *cache.Cache, cfg config.APIConfig) *DeviceHandler {
	return &DeviceHandler{cache: dataCache, cfg: cfg}
}

// DeviceResponse is one cooling unit in the inventory, enriched with the
// maintenance metadata keyed by its serial number.
type DeviceResponse struct {
	Device          string     `json:"device"`
	Serial          string     `json:"serial,omitempty"`
	Brand           string     `json:"brand,omitempty"`
	Model           string     `json:"model,omitempty"`
	Client          string     `json:"client,omitempty"`
	LastMaintenance *time.Time `json:"last_maintenance,omitempty"`
	TotalAlarms     int        `json:"total_alarms"`
	LastAlarm       *time.Time `json:"last_alarm,omitempty"`
}

type AlarmResponse struct {
	Device      string     `json:"device"`
	Serial      string     `json:"serial,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	Description string     `json:"description"`
	Severity    int        `json:"severity"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// List returns the cooling device inventory, optionally scoped to a tenant.
func (h *DeviceHandler) List(c *gin.Context) {
	tenant, ok := tenantParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	snap, err := h.cache.Snapshot(ctx, tenant)
	if err != nil {
		respondSnapshotError(c, err)
		return
	}

	byDevice := make(map[string]*DeviceResponse)
	var order []string
	for _, rec := range snap.Alarms {
		dev, ok := byDevice[rec.Device]
		if !ok {
			dev = &DeviceResponse{Device: rec.Device}
			byDevice[rec.Device] = dev
			order = append(order, rec.Device)
		}

		dev.TotalAlarms++
		ts := rec.Timestamp
		if dev.LastAlarm == nil || ts.After(*dev.LastAlarm) {
			dev.LastAlarm = &ts
		}
		if rec.Serial != "" && dev.Serial == "" {
			dev.Serial = rec.Serial
		}
	}

	sort.Strings(order)
	response := make([]DeviceResponse, 0, len(order))
	for _, name := range order {
		dev := byDevice[name]
		if dev.Serial != "" {
			dev.Brand = snap.Brands[dev.Serial]
			dev.Model = snap.Models[dev.Serial]
			dev.Client = snap.Clients[dev.Serial]
			if lm, ok := snap.LastMaintenance[dev.Serial]; ok {
				lmCopy := lm
				dev.LastMaintenance = &lmCopy
			}
		}
		response = append(response, *dev)
	}

	c.JSON(http.StatusOK, gin.H{
		"devices":      response,
		"count":        len(response),
		"last_updated": snap.UpdatedAt,
	})
}

// Alarms returns recent alarm records, newest first.
func (h *DeviceHandler) Alarms(c *gin.Context) {
	tenant, ok := tenantParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	snap, err := h.cache.Snapshot(ctx, tenant)
	if err != nil {
		respondSnapshotError(c, err)
		return
	}

	limit := h.parseLimit(c)
	device := c.Query("device")

	records := snap.Alarms
	if device != "" {
		var filtered []models.AlarmRecord
		for _, rec := range records {
			if rec.Device == device {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	sorted := make([]models.AlarmRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	response := make([]AlarmResponse, len(sorted))
	for i, rec := range sorted {
		response[i] = AlarmResponse{
			Device:      rec.Device,
			Serial:      rec.Serial,
			Timestamp:   rec.Timestamp,
			Description: rec.Description,
			Severity:    rec.Severity,
			ResolvedAt:  rec.ResolvedAt,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"alarms":       response,
		"count":        len(response),
		"last_updated": snap.UpdatedAt,
	})
}

func (h *DeviceHandler) parseLimit(c *gin.Context) int {
	limit := h.cfg.DefaultLimit
	if limit <= 0 {
		limit = 100
	}

	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	if h.cfg.MaxLimit > 0 && limit > h.cfg.MaxLimit {
		limit = h.cfg.MaxLimit
	}
	return limit
}

// respondSnapshotError maps cache and source failures to HTTP statuses.
func respondSnapshotError(c *gin.Context, err error) {
	if errors.Is(err, cache.ErrNoData) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no data available yet"})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "data refresh failed: " + err.Error()})
}
