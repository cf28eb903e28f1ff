package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoaire/crac-forecast/internal/detector"
	"github.com/ecoaire/crac-forecast/internal/intervals"
	"github.com/ecoaire/crac-forecast/internal/risk"
	"github.com/ecoaire/crac-forecast/internal/source"
	"github.com/ecoaire/crac-forecast/internal/tenant"
	"github.com/ecoaire/crac-forecast/pkg/models"
)

var testBase = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// trainableRecords yields enough devices, intervals and observed failures to
// train a model: four devices with a failure alarm plus eight with routine
// alarms only.
func trainableRecords() []models.AlarmRecord {
	var records []models.AlarmRecord
	for i := 0; i < 4; i++ {
		device := fmt.Sprintf("EAFIT CRAC-%02d", i)
		records = append(records,
			models.AlarmRecord{Device: device, Timestamp: testBase, Description: "routine notice", Severity: 3},
			models.AlarmRecord{
				Device:      device,
				Timestamp:   testBase.Add(time.Duration(10+i*5) * time.Hour),
				Description: "Low Superheat Critical",
				Severity:    8,
			},
		)
	}
	for i := 4; i < 12; i++ {
		records = append(records, models.AlarmRecord{
			Device:      fmt.Sprintf("UTP CRAC-%02d", i),
			Timestamp:   testBase.Add(time.Duration(i) * time.Hour),
			Description: "routine notice",
			Severity:    2,
		})
	}
	return records
}

func newTestCache(alarms source.AlarmSource) *Cache {
	c := New(
		Config{SeverityThreshold: 6},
		Deps{
			Alarms:      alarms,
			Maintenance: source.NewMockMaintenanceSource(),
			Detector: detector.New(detector.Config{
				Keywords:   []string{"Low Superheat Critical"},
				Exclusions: []string{"cleared"},
			}),
			Builder: intervals.New(),
			Engine:  risk.NewEngine(risk.NewKaplanMeierBackend()),
			Matcher: tenant.NewMatcher(map[string][]string{
				"EAFIT": {"EAFIT"},
				"UTP":   {"UTP"},
			}),
		},
	)
	c.SetClock(func() time.Time { return testBase.Add(100 * time.Hour) })
	return c
}

func TestCache_Refresh_PublishesSnapshot(t *testing.T) {
	mock := source.NewMockAlarmSource(trainableRecords())
	c := newTestCache(mock)

	require.NoError(t, c.Refresh(context.Background()))

	snap, err := c.Snapshot(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, snap.Alarms, 16)
	assert.NotEmpty(t, snap.Intervals)
	assert.NotNil(t, snap.Model)
	assert.Equal(t, risk.Features, snap.Features)
	assert.Equal(t, testBase.Add(100*time.Hour), snap.UpdatedAt)

	status := c.Status()
	assert.True(t, status.HasData)
	assert.True(t, status.ModelTrained)
	assert.Equal(t, 16, status.TotalAlarms)
}

func TestCache_Refresh_SourceFailureKeepsSnapshot(t *testing.T) {
	mock := source.NewMockAlarmSource(trainableRecords())
	c := newTestCache(mock)

	require.NoError(t, c.Refresh(context.Background()))
	before, err := c.Snapshot(context.Background(), "")
	require.NoError(t, err)

	mock.SetError(errors.New("connection refused"))
	err = c.Refresh(context.Background())
	require.Error(t, err)

	after, snapErr := c.Snapshot(context.Background(), "")
	require.NoError(t, snapErr)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Len(t, after.Alarms, 16)
}

func TestCache_Refresh_TrainingFailureKeepsSnapshot(t *testing.T) {
	mock := source.NewMockAlarmSource(trainableRecords())
	c := newTestCache(mock)
	require.NoError(t, c.Refresh(context.Background()))

	// Too little data to train: refresh must fail and retain the old state.
	mock.SetRecords([]models.AlarmRecord{
		{Device: "CRAC-X", Timestamp: testBase, Description: "routine", Severity: 1},
	})
	err := c.Refresh(context.Background())
	require.ErrorIs(t, err, risk.ErrValidation)

	snap, snapErr := c.Snapshot(context.Background(), "")
	require.NoError(t, snapErr)
	assert.Len(t, snap.Alarms, 16)
	assert.NotNil(t, snap.Model)
}

// blockingAlarmSource parks Alarms calls until released.
type blockingAlarmSource struct {
	entered chan struct{}
	release chan struct{}
	records []models.AlarmRecord
	once    sync.Once
}

func (b *blockingAlarmSource) Alarms(ctx context.Context, _ []string) ([]models.AlarmRecord, error) {
	b.once.Do(func() { close(b.entered) })
	select {
	case <-b.release:
		return b.records, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *blockingAlarmSource) HealthCheck(context.Context) error { return nil }

func TestCache_Refresh_SingleFlight(t *testing.T) {
	blocking := &blockingAlarmSource{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		records: trainableRecords(),
	}
	c := newTestCache(blocking)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- c.Refresh(context.Background())
	}()

	<-blocking.entered

	// A second refresh while the first is in flight is a no-op.
	err := c.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrRefreshInProgress)
	assert.True(t, c.Status().Refreshing)

	close(blocking.release)
	require.NoError(t, <-firstDone)
	assert.False(t, c.Status().Refreshing)
}

func TestCache_Snapshot_BootstrapsWhenEmpty(t *testing.T) {
	mock := source.NewMockAlarmSource(trainableRecords())
	c := newTestCache(mock)

	snap, err := c.Snapshot(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, snap.Model)
	assert.Equal(t, 1, mock.Calls())

	// A second read serves the cached snapshot without touching the source.
	_, err = c.Snapshot(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, mock.Calls())
}

func TestCache_Snapshot_BootstrapFailure(t *testing.T) {
	mock := source.NewMockAlarmSource(nil)
	mock.SetError(errors.New("connection refused"))
	c := newTestCache(mock)

	_, err := c.Snapshot(context.Background(), "")
	assert.Error(t, err)
	assert.False(t, c.Status().HasData)
}

func TestCache_Snapshot_TenantFiltering(t *testing.T) {
	mock := source.NewMockAlarmSource(trainableRecords())
	c := newTestCache(mock)
	require.NoError(t, c.Refresh(context.Background()))

	snap, err := c.Snapshot(context.Background(), "EAFIT")
	require.NoError(t, err)

	assert.Len(t, snap.Alarms, 8)
	for _, rec := range snap.Alarms {
		assert.Contains(t, rec.Device, "EAFIT")
	}
	for _, iv := range snap.Intervals {
		assert.Contains(t, iv.Unit, "EAFIT")
	}

	// The shared model survives tenant narrowing.
	assert.NotNil(t, snap.Model)
}

func TestCache_Status_Empty(t *testing.T) {
	c := newTestCache(source.NewMockAlarmSource(nil))

	status := c.Status()
	assert.False(t, status.HasData)
	assert.False(t, status.Refreshing)
	assert.Nil(t, status.LastUpdate)
	assert.False(t, status.ModelTrained)
}
