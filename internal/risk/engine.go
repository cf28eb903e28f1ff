package risk

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ecoaire/crac-forecast/internal/logger"
	"github.com/ecoaire/crac-forecast/pkg/models"
)

var (
	// ErrValidation indicates the training data cannot support a model.
	ErrValidation = errors.New("training data validation failed")

	// ErrDeviceNotFound indicates a forecast was requested for a device with
	// no intervals.
	ErrDeviceNotFound = errors.New("device not found in intervals")
)

const (
	minTrainingRows   = 10
	minObservedEvents = 3
	riskSamplePoints  = 500
)

// Features is the fixed, ordered feature list every trained model is bound to.
var Features = []string{"total_alarms", "alarms_last_24h", "time_since_last_alarm_h"}

// Engine trains survival models and turns them into risk forecasts.
type Engine struct {
	backend Backend
}

func NewEngine(backend Backend) *Engine {
	return &Engine{backend: backend}
}

// Train fits a survival model on the interval set. Missing feature values are
// median-imputed per column immediately before fitting. Validation failures
// wrap ErrValidation.
func (e *Engine) Train(intervals []models.Interval) (Model, []string, error) {
	if len(intervals) == 0 {
		return nil, nil, fmt.Errorf("%w: no intervals to train on", ErrValidation)
	}

	events := 0
	for _, iv := range intervals {
		if iv.Event {
			events++
		}
	}

	if events == 0 {
		return nil, nil, fmt.Errorf("%w: no observed events (all intervals censored)", ErrValidation)
	}
	if events < minObservedEvents {
		return nil, nil, fmt.Errorf("%w: %d observed events, minimum %d required", ErrValidation, events, minObservedEvents)
	}
	if len(intervals) < minTrainingRows {
		return nil, nil, fmt.Errorf("%w: %d rows, minimum %d required", ErrValidation, len(intervals), minTrainingRows)
	}

	durations := make([]float64, len(intervals))
	eventFlags := make([]bool, len(intervals))
	matrix := make([][]float64, len(intervals))
	for i, iv := range intervals {
		durations[i] = iv.DurationHours
		eventFlags[i] = iv.Event
		matrix[i] = featureVector(iv)
	}

	if stddev(durations) == 0 {
		return nil, nil, fmt.Errorf("%w: zero variance in interval durations", ErrValidation)
	}

	imputeMedians(matrix)

	model, err := e.backend.Fit(matrix, durations, eventFlags)
	if err != nil {
		return nil, nil, fmt.Errorf("model fit failed: %w", err)
	}

	logger.Infof("Survival model trained on %d intervals (%d events)", len(intervals), events)
	return model, Features, nil
}

// PredictRisk forecasts when the device reaches the cumulative failure-risk
// threshold. The projection starts at the device's current elapsed time and
// samples 500 points over maxTimeHours; when the threshold is never reached
// the result carries TimeToThresholdH = maxTimeHours as a sentinel.
func (e *Engine) PredictRisk(
	model Model,
	intervals []models.Interval,
	device string,
	threshold float64,
	maxTimeHours float64,
) (*models.Prediction, error) {
	latest, err := latestInterval(intervals, device)
	if err != nil {
		return nil, err
	}

	sf, err := model.SurvivalFunction(predictionVector(*latest))
	if err != nil {
		return nil, fmt.Errorf("survival function for %s: %w", device, err)
	}

	current := latest.CurrentTimeElapsedH

	for i := 0; i < riskSamplePoints; i++ {
		t := current + maxTimeHours*float64(i)/float64(riskSamplePoints-1)
		risk := 1 - sf.SurvivalAt(t)
		if risk >= threshold {
			return &models.Prediction{
				Device:           device,
				TimeToThresholdH: t - current,
				Risk:             risk,
				CurrentElapsedH:  current,
			}, nil
		}
	}

	finalRisk := 1 - sf.SurvivalAt(current+maxTimeHours)
	return &models.Prediction{
		Device:           device,
		TimeToThresholdH: maxTimeHours,
		Risk:             finalRisk,
		CurrentElapsedH:  current,
	}, nil
}

// SurvivalCurve samples the device's failure-risk curve: nPoints uniform
// samples over [0, maxTimeHours] relative to the device's current elapsed
// time, reported in days on a 0-100 risk scale.
func (e *Engine) SurvivalCurve(
	model Model,
	intervals []models.Interval,
	device string,
	maxTimeHours float64,
	nPoints int,
) ([]models.CurvePoint, error) {
	if nPoints < 2 {
		return nil, fmt.Errorf("curve requires at least 2 points, got %d", nPoints)
	}

	latest, err := latestInterval(intervals, device)
	if err != nil {
		return nil, err
	}

	sf, err := model.SurvivalFunction(predictionVector(*latest))
	if err != nil {
		return nil, fmt.Errorf("survival function for %s: %w", device, err)
	}

	current := latest.CurrentTimeElapsedH
	points := make([]models.CurvePoint, nPoints)
	for i := 0; i < nPoints; i++ {
		t := maxTimeHours * float64(i) / float64(nPoints-1)
		risk := 1 - sf.SurvivalAt(current+t)
		points[i] = models.CurvePoint{
			ElapsedDays: t / 24.0,
			RiskPercent: risk * 100,
		}
	}

	return points, nil
}

func latestInterval(intervals []models.Interval, device string) (*models.Interval, error) {
	deviceIntervals := models.IntervalsForUnit(intervals, device)
	if len(deviceIntervals) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, device)
	}
	return &deviceIntervals[len(deviceIntervals)-1], nil
}

// featureVector keeps missing values as NaN; imputation happens at training.
func featureVector(iv models.Interval) []float64 {
	tsla := math.NaN()
	if iv.TimeSinceLastAlarmH != nil {
		tsla = *iv.TimeSinceLastAlarmH
	}
	return []float64{float64(iv.TotalAlarms), float64(iv.AlarmsLast24h), tsla}
}

// predictionVector zeroes missing values: at forecast time there is no
// training population to impute from.
func predictionVector(iv models.Interval) []float64 {
	v := featureVector(iv)
	for i := range v {
		if math.IsNaN(v[i]) {
			v[i] = 0
		}
	}
	return v
}

// imputeMedians replaces NaN cells with their column median, computed over
// the non-missing values of that column.
func imputeMedians(matrix [][]float64) {
	if len(matrix) == 0 {
		return
	}
	cols := len(matrix[0])

	for c := 0; c < cols; c++ {
		var present []float64
		for _, row := range matrix {
			if !math.IsNaN(row[c]) {
				present = append(present, row[c])
			}
		}

		med := 0.0
		if len(present) > 0 {
			sort.Float64s(present)
			mid := len(present) / 2
			if len(present)%2 == 0 {
				med = (present[mid-1] + present[mid]) / 2
			} else {
				med = present[mid]
			}
		}

		for _, row := range matrix {
			if math.IsNaN(row[c]) {
				row[c] = med
			}
		}
	}
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))

	return math.Sqrt(variance)
}
