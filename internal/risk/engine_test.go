package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoaire/crac-forecast/pkg/models"
)

// stubModel returns a fixed survival curve regardless of features.
type stubModel struct {
	fn StepFunction
}

func (m *stubModel) SurvivalFunction([]float64) (StepFunction, error) {
	return m.fn, nil
}

func trainingIntervals(rows, events int) []models.Interval {
	out := make([]models.Interval, rows)
	for i := range out {
		out[i] = models.Interval{
			Unit:          "CRAC-01",
			DurationHours: float64(10 + i*7),
			Event:         i < events,
			TotalAlarms:   i + 1,
		}
	}
	return out
}

func TestEngine_Train_Validation(t *testing.T) {
	tests := []struct {
		name      string
		intervals []models.Interval
	}{
		{
			name:      "no intervals",
			intervals: nil,
		},
		{
			name:      "all censored",
			intervals: trainingIntervals(12, 0),
		},
		{
			name:      "too few events",
			intervals: trainingIntervals(12, 2),
		},
		{
			name:      "too few rows",
			intervals: trainingIntervals(8, 4),
		},
		{
			name: "zero duration variance",
			intervals: func() []models.Interval {
				out := trainingIntervals(12, 4)
				for i := range out {
					out[i].DurationHours = 50
				}
				return out
			}(),
		},
	}

	engine := NewEngine(NewKaplanMeierBackend())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, features, err := engine.Train(tt.intervals)

			assert.Nil(t, model)
			assert.Nil(t, features)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestEngine_Train_Success(t *testing.T) {
	engine := NewEngine(NewKaplanMeierBackend())

	model, features, err := engine.Train(trainingIntervals(15, 5))

	require.NoError(t, err)
	require.NotNil(t, model)
	assert.Equal(t, Features, features)
}

func TestEngine_Train_ImputesMissingFeatures(t *testing.T) {
	// Rows with nil TimeSinceLastAlarmH still train; the gap is filled with
	// the column median.
	intervals := trainingIntervals(15, 5)
	for i := range intervals {
		if i%2 == 0 {
			gap := float64(i)
			intervals[i].TimeSinceLastAlarmH = &gap
		}
	}

	engine := NewEngine(NewKaplanMeierBackend())
	_, _, err := engine.Train(intervals)
	require.NoError(t, err)
}

func TestEngine_PredictRisk_ThresholdReached(t *testing.T) {
	engine := NewEngine(NewKaplanMeierBackend())

	// Survival collapses to 0.1 by t=100: risk 0.9 crosses a 0.8 threshold
	// well inside the projection window.
	model := &stubModel{fn: StepFunction{
		X: []float64{50, 100},
		Y: []float64{0.5, 0.1},
	}}
	intervals := []models.Interval{{Unit: "CRAC-01", CurrentTimeElapsedH: 10}}

	p, err := engine.PredictRisk(model, intervals, "CRAC-01", 0.8, 1000)

	require.NoError(t, err)
	assert.Equal(t, "CRAC-01", p.Device)
	assert.Equal(t, 10.0, p.CurrentElapsedH)
	assert.GreaterOrEqual(t, p.Risk, 0.8)
	assert.Less(t, p.TimeToThresholdH, 1000.0)
	assert.True(t, p.ThresholdReached(1000))
}

func TestEngine_PredictRisk_SentinelWhenNeverReached(t *testing.T) {
	engine := NewEngine(NewKaplanMeierBackend())

	// Survival never drops below 0.9, so risk stays under the threshold.
	model := &stubModel{fn: StepFunction{
		X: []float64{100},
		Y: []float64{0.9},
	}}
	intervals := []models.Interval{{Unit: "CRAC-01", CurrentTimeElapsedH: 10}}

	p, err := engine.PredictRisk(model, intervals, "CRAC-01", 0.8, 5000)

	require.NoError(t, err)
	assert.Equal(t, 5000.0, p.TimeToThresholdH)
	assert.False(t, p.ThresholdReached(5000))
	assert.InDelta(t, 0.1, p.Risk, 1e-9)
}

func TestEngine_PredictRisk_UnknownDevice(t *testing.T) {
	engine := NewEngine(NewKaplanMeierBackend())
	model := &stubModel{}

	_, err := engine.PredictRisk(model, nil, "CRAC-99", 0.8, 5000)

	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestEngine_PredictRisk_UsesLatestInterval(t *testing.T) {
	engine := NewEngine(NewKaplanMeierBackend())
	model := &stubModel{fn: StepFunction{X: []float64{1}, Y: []float64{0.05}}}

	intervals := []models.Interval{
		{Unit: "CRAC-01", CurrentTimeElapsedH: 100},
		{Unit: "CRAC-01", CurrentTimeElapsedH: 42},
	}

	p, err := engine.PredictRisk(model, intervals, "CRAC-01", 0.8, 5000)

	require.NoError(t, err)
	assert.Equal(t, 42.0, p.CurrentElapsedH)
}

func TestEngine_SurvivalCurve(t *testing.T) {
	engine := NewEngine(NewKaplanMeierBackend())
	model := &stubModel{fn: StepFunction{
		X: []float64{100, 1000},
		Y: []float64{0.8, 0.2},
	}}
	intervals := []models.Interval{{Unit: "CRAC-01", CurrentTimeElapsedH: 0}}

	points, err := engine.SurvivalCurve(model, intervals, "CRAC-01", 2400, 100)

	require.NoError(t, err)
	require.Len(t, points, 100)

	assert.Equal(t, 0.0, points[0].ElapsedDays)
	assert.InDelta(t, 100.0, points[len(points)-1].ElapsedDays, 1e-9)

	for i := 1; i < len(points); i++ {
		assert.GreaterOrEqual(t, points[i].RiskPercent, points[i-1].RiskPercent)
	}
	for _, p := range points {
		assert.GreaterOrEqual(t, p.RiskPercent, 0.0)
		assert.LessOrEqual(t, p.RiskPercent, 100.0)
	}
}

func TestEngine_SurvivalCurve_TooFewPoints(t *testing.T) {
	engine := NewEngine(NewKaplanMeierBackend())
	_, err := engine.SurvivalCurve(&stubModel{}, []models.Interval{{Unit: "CRAC-01"}}, "CRAC-01", 100, 1)
	assert.Error(t, err)
}

func TestImputeMedians(t *testing.T) {
	matrix := [][]float64{
		{1, math.NaN()},
		{3, 10},
		{math.NaN(), 20},
	}

	imputeMedians(matrix)

	assert.Equal(t, 2.0, matrix[2][0])
	assert.Equal(t, 15.0, matrix[0][1])
	for _, row := range matrix {
		for _, v := range row {
			assert.False(t, math.IsNaN(v))
		}
	}
}

func TestStddev(t *testing.T) {
	assert.Equal(t, 0.0, stddev(nil))
	assert.Equal(t, 0.0, stddev([]float64{5, 5, 5}))
	assert.InDelta(t, 2.0, stddev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
}
