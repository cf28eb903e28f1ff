package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Metrics tracks forecast pipeline counters and gauges, exposed in the
// Prometheus text format.
type Metrics struct {
	mu sync.RWMutex

	// Counters
	refreshTotal     int64
	refreshErrors    map[string]int64 // stage -> count
	modelTrainings   int64
	predictionsTotal map[string]int64 // outcome -> count

	// Gauges
	snapshotAlarms    int
	snapshotIntervals int
	trainingRows      int
	breakerState      int // 0=closed, 1=open

	// Last observed latencies
	refreshLatency time.Duration
}

var (
	instance *Metrics
	once     sync.Once
)

func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			refreshErrors:    make(map[string]int64),
			predictionsTotal: make(map[string]int64),
		}
	})
	return instance
}

func (m *Metrics) IncRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshTotal++
}

func (m *Metrics) IncRefreshError(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshErrors[stage]++
}

func (m *Metrics) SetRefreshLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshLatency = d
}

func (m *Metrics) IncModelTrained(rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelTrainings++
	m.trainingRows = rows
}

func (m *Metrics) IncPrediction(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionsTotal[outcome]++
}

func (m *Metrics) SetSnapshotSize(alarms, intervals int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshotAlarms = alarms
	m.snapshotIntervals = intervals
}

func (m *Metrics) SetBreakerState(state int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breakerState = state
}

func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		writeMetric(w, "forecaster_refresh_total", nil, float64(m.refreshTotal))
		for stage, count := range m.refreshErrors {
			writeMetric(w, "forecaster_refresh_errors_total", map[string]string{"stage": stage}, float64(count))
		}
		writeMetric(w, "forecaster_refresh_latency_ms", nil, float64(m.refreshLatency.Milliseconds()))

		writeMetric(w, "forecaster_model_trainings_total", nil, float64(m.modelTrainings))
		writeMetric(w, "forecaster_training_rows", nil, float64(m.trainingRows))

		for outcome, count := range m.predictionsTotal {
			writeMetric(w, "forecaster_predictions_total", map[string]string{"outcome": outcome}, float64(count))
		}

		writeMetric(w, "forecaster_snapshot_alarms", nil, float64(m.snapshotAlarms))
		writeMetric(w, "forecaster_snapshot_intervals", nil, float64(m.snapshotIntervals))
		writeMetric(w, "forecaster_source_breaker_state", nil, float64(m.breakerState))
	})
}

func writeMetric(w http.ResponseWriter, name string, labels map[string]string, value float64) {
	labelStr := ""
	if len(labels) > 0 {
		labelStr = "{"
		first := true
		for k, v := range labels {
			if !first {
				labelStr += ","
			}
			labelStr += k + `="` + v + `"`
			first = false
		}
		labelStr += "}"
	}
	w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(value, 'f', -1, 64) + "\n"))
}
