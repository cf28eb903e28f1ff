package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ecoaire/crac-forecast/internal/detector"
	"github.com/ecoaire/crac-forecast/internal/events"
	"github.com/ecoaire/crac-forecast/internal/intervals"
	"github.com/ecoaire/crac-forecast/internal/logger"
	"github.com/ecoaire/crac-forecast/internal/metrics"
	"github.com/ecoaire/crac-forecast/internal/risk"
	"github.com/ecoaire/crac-forecast/internal/source"
	"github.com/ecoaire/crac-forecast/internal/tenant"
	"github.com/ecoaire/crac-forecast/pkg/models"
)

var (
	// ErrRefreshInProgress is returned when a refresh request arrives while
	// one is already running; callers keep reading the prior snapshot.
	ErrRefreshInProgress = errors.New("refresh already in progress")

	// ErrNoData is returned when no snapshot has ever been published and a
	// bootstrap refresh could not produce one.
	ErrNoData = errors.New("no snapshot available")
)

// Snapshot is one immutable build of the forecast state. It is published by
// an atomic pointer swap and never mutated afterwards; readers hold whichever
// snapshot was current when they loaded it.
type Snapshot struct {
	Alarms          []models.AlarmRecord
	Intervals       []models.Interval
	Model           risk.Model
	Features        []string
	LastMaintenance map[string]time.Time
	Clients         map[string]string
	Brands          map[string]string
	Models          map[string]string
	UpdatedAt       time.Time
}

// Status reports the cache state for operational endpoints.
type Status struct {
	HasData            bool       `json:"has_data"`
	LastUpdate         *time.Time `json:"last_update,omitempty"`
	MinutesSinceUpdate *float64   `json:"minutes_since_update,omitempty"`
	Refreshing         bool       `json:"is_refreshing"`
	TotalAlarms        int        `json:"total_alarms"`
	TotalIntervals     int        `json:"total_intervals"`
	ModelTrained       bool       `json:"model_trained"`
}

type Config struct {
	SeverityThreshold int
	ExcludeDevices    []string
	SerialMapping     map[string]string
}

type Deps struct {
	Alarms      source.AlarmSource
	Maintenance source.MaintenanceSource
	Detector    *detector.Detector
	Builder     *intervals.Builder
	Engine      *risk.Engine
	Matcher     *tenant.Matcher
	Publisher   *events.Publisher
}

// Cache owns the single current snapshot and rebuilds it through the full
// pipeline: sources -> serial fill -> failure detection -> interval build ->
// model training -> atomic publish.
type Cache struct {
	cfg  Config
	deps Deps

	snapshot atomic.Pointer[Snapshot]

	mu         sync.Mutex
	refreshing bool

	now func() time.Time
}

func New(cfg Config, deps Deps) *Cache {
	return &Cache{
		cfg:  cfg,
		deps: deps,
		now:  time.Now,
	}
}

// SetClock overrides the cache's notion of "now"; tests only.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// Refresh runs the rebuild pipeline once. A request arriving while another
// refresh runs returns ErrRefreshInProgress without doing work
// (single-flight). Any pipeline failure keeps the previously published
// snapshot untouched.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.refreshing {
		c.mu.Unlock()
		logger.Warn("Refresh already in progress, skipping")
		return ErrRefreshInProgress
	}
	c.refreshing = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.refreshing = false
		c.mu.Unlock()
	}()

	start := c.now()
	metrics.Get().IncRefresh()
	c.deps.Publisher.RefreshStarted()
	logger.Info("Starting data refresh")

	snap, err := c.rebuild(ctx)
	if err != nil {
		logger.WithError(err).Error("Refresh failed, keeping previous snapshot")
		return err
	}

	c.snapshot.Store(snap)

	elapsed := c.now().Sub(start)
	metrics.Get().SetRefreshLatency(elapsed)
	metrics.Get().SetSnapshotSize(len(snap.Alarms), len(snap.Intervals))
	c.deps.Publisher.RefreshCompleted(len(snap.Alarms), len(snap.Intervals), elapsed)
	logger.Infof("Refresh completed in %.2fs: %d alarms, %d intervals",
		elapsed.Seconds(), len(snap.Alarms), len(snap.Intervals))
	return nil
}

func (c *Cache) rebuild(ctx context.Context) (*Snapshot, error) {
	records, err := c.deps.Alarms.Alarms(ctx, c.cfg.ExcludeDevices)
	if err != nil {
		metrics.Get().IncRefreshError("alarm_source")
		c.deps.Publisher.RefreshFailed("alarm source", err)
		return nil, fmt.Errorf("pulling alarms: %w", err)
	}
	logger.Infof("Pulled %d alarm records", len(records))

	records = source.FillSerials(records, c.cfg.SerialMapping)

	meta, err := c.deps.Maintenance.Metadata(ctx, models.Serials(records))
	if err != nil {
		metrics.Get().IncRefreshError("maintenance_source")
		c.deps.Publisher.RefreshFailed("maintenance source", err)
		return nil, fmt.Errorf("pulling maintenance metadata: %w", err)
	}

	flags := c.deps.Detector.Detect(records, c.cfg.SeverityThreshold)

	ivs := c.deps.Builder.Build(records, flags, c.cfg.SeverityThreshold, meta.LastMaintenance, c.now())
	logger.Infof("Built %d survival intervals", len(ivs))

	model, features, err := c.deps.Engine.Train(ivs)
	if err != nil {
		metrics.Get().IncRefreshError("model_training")
		c.deps.Publisher.RefreshFailed("model training", err)
		return nil, fmt.Errorf("training model: %w", err)
	}
	metrics.Get().IncModelTrained(len(ivs))
	c.deps.Publisher.ModelTrained(len(ivs), features)

	return &Snapshot{
		Alarms:          records,
		Intervals:       ivs,
		Model:           model,
		Features:        features,
		LastMaintenance: meta.LastMaintenance,
		Clients:         meta.Clients,
		Brands:          meta.Brands,
		Models:          meta.Models,
		UpdatedAt:       c.now(),
	}, nil
}

// Snapshot returns the current snapshot, optionally narrowed to one tenant.
// When nothing has been published yet it performs a synchronous bootstrap
// refresh first.
func (c *Cache) Snapshot(ctx context.Context, tenantKey string) (*Snapshot, error) {
	snap := c.snapshot.Load()
	if snap == nil {
		logger.Warn("No snapshot yet, running bootstrap refresh")
		if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrRefreshInProgress) {
			return nil, err
		}
		if snap = c.snapshot.Load(); snap == nil {
			return nil, ErrNoData
		}
	}

	if tenantKey == "" {
		return snap, nil
	}
	return c.filterForTenant(snap, tenantKey), nil
}

// filterForTenant derives a tenant-scoped view. The per-serial lookup maps
// are shared with the parent snapshot; both are read-only after publish.
func (c *Cache) filterForTenant(snap *Snapshot, tenantKey string) *Snapshot {
	return &Snapshot{
		Alarms:          c.deps.Matcher.FilterRecords(snap.Alarms, tenantKey),
		Intervals:       c.deps.Matcher.FilterIntervals(snap.Intervals, tenantKey),
		Model:           snap.Model,
		Features:        snap.Features,
		LastMaintenance: snap.LastMaintenance,
		Clients:         snap.Clients,
		Brands:          snap.Brands,
		Models:          snap.Models,
		UpdatedAt:       snap.UpdatedAt,
	}
}

func (c *Cache) Status() Status {
	c.mu.Lock()
	refreshing := c.refreshing
	c.mu.Unlock()

	status := Status{Refreshing: refreshing}

	snap := c.snapshot.Load()
	if snap == nil {
		return status
	}

	updated := snap.UpdatedAt
	minutes := c.now().Sub(updated).Minutes()

	status.HasData = true
	status.LastUpdate = &updated
	status.MinutesSinceUpdate = &minutes
	status.TotalAlarms = len(snap.Alarms)
	status.TotalIntervals = len(snap.Intervals)
	status.ModelTrained = snap.Model != nil
	return status
}
