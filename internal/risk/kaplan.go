package risk

import (
	"errors"
	"sort"
)

// KaplanMeierBackend is the in-process model backend: a stratified
// Kaplan-Meier estimator. Rows are split at the median of the first feature
// (total alarms) so that alarm-heavy devices get their own, typically
// steeper, survival curve. It stands behind the same contract an external
// survival-forest service would.
type KaplanMeierBackend struct{}

func NewKaplanMeierBackend() *KaplanMeierBackend {
	return &KaplanMeierBackend{}
}

type kmModel struct {
	cutoff float64
	low    StepFunction
	high   StepFunction
	pooled StepFunction
}

func (b *KaplanMeierBackend) Fit(features [][]float64, durations []float64, events []bool) (Model, error) {
	if len(features) == 0 || len(features) != len(durations) || len(durations) != len(events) {
		return nil, errors.New("kaplan-meier: feature, duration and event lengths must match and be non-empty")
	}

	first := make([]float64, len(features))
	for i, row := range features {
		if len(row) == 0 {
			return nil, errors.New("kaplan-meier: empty feature row")
		}
		first[i] = row[0]
	}
	cutoff := median(first)

	var lowDur, highDur []float64
	var lowEvt, highEvt []bool
	for i := range durations {
		if first[i] <= cutoff {
			lowDur = append(lowDur, durations[i])
			lowEvt = append(lowEvt, events[i])
		} else {
			highDur = append(highDur, durations[i])
			highEvt = append(highEvt, events[i])
		}
	}

	pooled := kaplanMeier(durations, events)
	m := &kmModel{cutoff: cutoff, pooled: pooled}

	if len(lowDur) > 0 {
		m.low = kaplanMeier(lowDur, lowEvt)
	} else {
		m.low = pooled
	}
	if len(highDur) > 0 {
		m.high = kaplanMeier(highDur, highEvt)
	} else {
		m.high = pooled
	}

	return m, nil
}

func (m *kmModel) SurvivalFunction(features []float64) (StepFunction, error) {
	if len(features) == 0 {
		return m.pooled, nil
	}
	if features[0] <= m.cutoff {
		return m.low, nil
	}
	return m.high, nil
}

// kaplanMeier computes the product-limit survival estimate over censored
// duration data: at each distinct event time t, S *= (1 - d/n) with d events
// at t and n subjects still at risk.
func kaplanMeier(durations []float64, events []bool) StepFunction {
	type subject struct {
		t     float64
		event bool
	}

	subjects := make([]subject, len(durations))
	for i := range durations {
		subjects[i] = subject{t: durations[i], event: events[i]}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].t < subjects[j].t })

	var fn StepFunction
	survival := 1.0
	atRisk := len(subjects)

	i := 0
	for i < len(subjects) {
		t := subjects[i].t
		deaths := 0
		removed := 0
		for i < len(subjects) && subjects[i].t == t {
			if subjects[i].event {
				deaths++
			}
			removed++
			i++
		}

		if deaths > 0 && atRisk > 0 {
			survival *= 1 - float64(deaths)/float64(atRisk)
			fn.X = append(fn.X, t)
			fn.Y = append(fn.Y, survival)
		}
		atRisk -= removed
	}

	return fn
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
