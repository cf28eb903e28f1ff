package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/ecoaire/crac-forecast/internal/cache"
	"github.com/ecoaire/crac-forecast/internal/logger"
	"github.com/ecoaire/crac-forecast/internal/metrics"
	"github.com/ecoaire/crac-forecast/internal/risk"
	"github.com/ecoaire/crac-forecast/pkg/config"
	"github.com/ecoaire/crac-forecast/pkg/models"
	"github.com/ecoaire/crac-forecast/pkg/validation"
	"github.com/gin-gonic/gin"
)

type PredictionHandler struct {
	cache  *cache.Cache
	engine *risk.Engine
	cfg    config.ModelConfig
}

func NewPredictionHandler(dataCache *cache.Cache, engine *risk.Engine, cfg config.ModelConfig) *PredictionHandler {
	return &PredictionHandler{cache: dataCache, engine: engine, cfg: cfg}
}

// PredictionResponse is a device forecast in operational units: hours for
// technicians reading trends, days for planning.
type PredictionResponse struct {
	Device              string            `json:"device"`
	TimeToThresholdH    float64           `json:"time_to_threshold_hours"`
	TimeToThresholdDays float64           `json:"time_to_threshold_days"`
	Risk                float64           `json:"risk"`
	CurrentElapsedH     float64           `json:"current_time_elapsed"`
	ThresholdReached    bool              `json:"threshold_reached"`
	RiskBucket          models.RiskBucket `json:"risk_bucket"`
}

func (h *PredictionHandler) toResponse(p *models.Prediction) PredictionResponse {
	days := p.TimeToThresholdH / 24.0
	return PredictionResponse{
		Device:              p.Device,
		TimeToThresholdH:    p.TimeToThresholdH,
		TimeToThresholdDays: days,
		Risk:                p.Risk,
		CurrentElapsedH:     p.CurrentElapsedH,
		ThresholdReached:    p.ThresholdReached(h.cfg.MaxTimeHours),
		RiskBucket:          models.BucketForDays(days),
	}
}

// Get forecasts time to the risk threshold for one device.
func (h *PredictionHandler) Get(c *gin.Context) {
	device := c.Param("device")
	if err := validation.ValidateDeviceName(device); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
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
	if snap.Model == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model not trained"})
		return
	}

	prediction, err := h.engine.PredictRisk(snap.Model, snap.Intervals, device, h.cfg.RiskThreshold, h.cfg.MaxTimeHours)
	if err != nil {
		h.respondPredictionError(c, device, err)
		return
	}

	metrics.Get().IncPrediction("ok")
	c.JSON(http.StatusOK, h.toResponse(prediction))
}

// Curve returns the device's failure-risk curve in days and percent.
func (h *PredictionHandler) Curve(c *gin.Context) {
	device := c.Param("device")
	if err := validation.ValidateDeviceName(device); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
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
	if snap.Model == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model not trained"})
		return
	}

	points, err := h.engine.SurvivalCurve(snap.Model, snap.Intervals, device, h.cfg.MaxTimeHours, h.cfg.CurvePoints)
	if err != nil {
		h.respondPredictionError(c, device, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device": device,
		"curve":  points,
		"count":  len(points),
	})
}

// List forecasts every device with intervals, sorted most urgent first.
// Devices whose forecast fails individually are skipped, not fatal.
func (h *PredictionHandler) List(c *gin.Context) {
	tenant, ok := tenantParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	snap, err := h.cache.Snapshot(ctx, tenant)
	if err != nil {
		respondSnapshotError(c, err)
		return
	}
	if snap.Model == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model not trained"})
		return
	}

	devices := intervalDevices(snap.Intervals)
	response := make([]PredictionResponse, 0, len(devices))
	for _, device := range devices {
		prediction, err := h.engine.PredictRisk(snap.Model, snap.Intervals, device, h.cfg.RiskThreshold, h.cfg.MaxTimeHours)
		if err != nil {
			logger.WithDevice(device).WithError(err).Warn("Skipping device forecast")
			continue
		}
		response = append(response, h.toResponse(prediction))
	}

	sort.Slice(response, func(i, j int) bool {
		return response[i].TimeToThresholdH < response[j].TimeToThresholdH
	})

	c.JSON(http.StatusOK, gin.H{
		"predictions":  response,
		"count":        len(response),
		"last_updated": snap.UpdatedAt,
	})
}

// Summary buckets every device forecast into urgency bands.
func (h *PredictionHandler) Summary(c *gin.Context) {
	tenant, ok := tenantParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	snap, err := h.cache.Snapshot(ctx, tenant)
	if err != nil {
		respondSnapshotError(c, err)
		return
	}
	if snap.Model == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model not trained"})
		return
	}

	buckets := map[models.RiskBucket]int{
		models.RiskCritical: 0,
		models.RiskHigh:     0,
		models.RiskMedium:   0,
		models.RiskLow:      0,
	}

	devices := intervalDevices(snap.Intervals)
	forecast := 0
	for _, device := range devices {
		prediction, err := h.engine.PredictRisk(snap.Model, snap.Intervals, device, h.cfg.RiskThreshold, h.cfg.MaxTimeHours)
		if err != nil {
			continue
		}
		buckets[models.BucketForDays(prediction.TimeToThresholdH/24.0)]++
		forecast++
	}

	c.JSON(http.StatusOK, gin.H{
		"total_devices": len(devices),
		"forecast":      forecast,
		"critical":      buckets[models.RiskCritical],
		"high":          buckets[models.RiskHigh],
		"medium":        buckets[models.RiskMedium],
		"low":           buckets[models.RiskLow],
		"last_updated":  snap.UpdatedAt,
	})
}

func (h *PredictionHandler) respondPredictionError(c *gin.Context, device string, err error) {
	if errors.Is(err, risk.ErrDeviceNotFound) {
		metrics.Get().IncPrediction("not_found")
		c.JSON(http.StatusNotFound, gin.H{"error": "device not found: " + device})
		return
	}
	metrics.Get().IncPrediction("error")
	logger.WithDevice(device).WithError(err).Error("Forecast failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "forecast failed"})
}

func intervalDevices(intervals []models.Interval) []string {
	seen := make(map[string]bool)
	var devices []string
	for _, iv := range intervals {
		if !seen[iv.Unit] {
			seen[iv.Unit] = true
			devices = append(devices, iv.Unit)
		}
	}
	sort.Strings(devices)
	return devices
}
