package intervals

import (
	"sort"
	"time"

	"github.com/ecoaire/crac-forecast/internal/logger"
	"github.com/ecoaire/crac-forecast/pkg/models"
)

// Builder converts per-device alarm streams plus failure flags into survival
// intervals: one interval per observed failure, closed by a single censored
// interval running to the build time.
type Builder struct{}

func New() *Builder {
	return &Builder{}
}

type flaggedAlarm struct {
	record  models.AlarmRecord
	failure bool
}

// Build walks each device's chronologically ordered alarms and emits its
// survival intervals. Devices with zero alarms produce no rows. The caller
// supplies "now" so censoring is reproducible.
//
// The elapsed-time clock of a device restarts at the later of its last
// maintenance and its last critical alarm (severity >= severityThreshold);
// if no alarm qualifies as critical the device's last alarm overall stands
// in, and with no maintenance record either the elapsed time is zero.
func (b *Builder) Build(
	records []models.AlarmRecord,
	failureFlags []bool,
	severityThreshold int,
	lastMaintenance map[string]time.Time,
	now time.Time,
) []models.Interval {
	byDevice := make(map[string][]flaggedAlarm)
	for i, rec := range records {
		failed := i < len(failureFlags) && failureFlags[i]
		byDevice[rec.Device] = append(byDevice[rec.Device], flaggedAlarm{record: rec, failure: failed})
	}

	devices := make([]string, 0, len(byDevice))
	for device := range byDevice {
		devices = append(devices, device)
	}
	sort.Strings(devices)

	var out []models.Interval
	for _, device := range devices {
		alarms := byDevice[device]
		sort.SliceStable(alarms, func(i, j int) bool {
			return alarms[i].record.Timestamp.Before(alarms[j].record.Timestamp)
		})
		out = append(out, b.buildDevice(device, alarms, severityThreshold, lastMaintenance, now)...)
	}

	return out
}

func (b *Builder) buildDevice(
	device string,
	alarms []flaggedAlarm,
	severityThreshold int,
	lastMaintenance map[string]time.Time,
	now time.Time,
) []models.Interval {
	n := len(alarms)
	if n == 0 {
		return nil
	}

	times := make([]time.Time, n)
	for i, a := range alarms {
		times[i] = a.record.Timestamp
	}

	maintTime := maintenanceTime(alarms, lastMaintenance)
	criticalTime := lastCriticalTime(alarms, severityThreshold)
	elapsed := currentElapsedHours(maintTime, criticalTime, now)

	base := models.Interval{
		Unit:                device,
		CurrentTimeElapsedH: elapsed,
		LastCriticalTime:    criticalTime,
		LastMaintenanceTime: maintTime,
	}

	var failIdx []int
	for i, a := range alarms {
		if a.failure {
			failIdx = append(failIdx, i)
		}
	}

	var out []models.Interval

	if len(failIdx) == 0 {
		iv := base
		iv.Start = times[0]
		iv.End = now
		iv.DurationHours = hoursBetween(times[0], now)
		iv.TotalAlarms = n
		iv.AlarmsLast24h = 0
		gap := hoursBetween(times[n-1], now)
		iv.TimeSinceLastAlarmH = &gap
		return append(out, iv)
	}

	startIdx := 0
	for _, fi := range failIdx {
		if fi <= startIdx {
			// Out-of-order or duplicate boundary: advance without emitting
			// to avoid zero/negative-duration rows.
			startIdx = fi
			continue
		}

		iv := base
		iv.Start = times[startIdx]
		iv.End = times[fi]
		iv.DurationHours = hoursBetween(times[startIdx], times[fi])
		iv.Event = true
		iv.TotalAlarms = fi - startIdx
		iv.AlarmsLast24h = alarmsInWindow(times, times[startIdx])
		if startIdx > 0 {
			gap := hoursBetween(times[startIdx-1], times[startIdx])
			iv.TimeSinceLastAlarmH = &gap
		}
		out = append(out, iv)
		startIdx = fi
	}

	// Trailing censored interval from the last boundary to now.
	if startIdx < n {
		iv := base
		iv.Start = times[startIdx]
		iv.End = now
		iv.DurationHours = hoursBetween(times[startIdx], now)
		iv.TotalAlarms = n - startIdx
		iv.AlarmsLast24h = alarmsInWindow(times, times[startIdx])
		gap := hoursBetween(times[n-1], now)
		iv.TimeSinceLastAlarmH = &gap
		out = append(out, iv)
	}

	logger.WithDevice(device).Debugf("Built %d intervals (%d failures)", len(out), len(failIdx))
	return out
}

// maintenanceTime resolves the device's last maintenance through the first
// alarm carrying a serial number.
func maintenanceTime(alarms []flaggedAlarm, lastMaintenance map[string]time.Time) *time.Time {
	if lastMaintenance == nil {
		return nil
	}
	for _, a := range alarms {
		if a.record.Serial == "" {
			continue
		}
		if t, ok := lastMaintenance[a.record.Serial]; ok {
			return &t
		}
		return nil
	}
	return nil
}

// lastCriticalTime is the latest alarm with severity at or above the
// threshold, falling back to the latest alarm overall when none qualify.
func lastCriticalTime(alarms []flaggedAlarm, severityThreshold int) *time.Time {
	var critical, latest *time.Time
	for i := range alarms {
		ts := alarms[i].record.Timestamp
		if latest == nil || ts.After(*latest) {
			t := ts
			latest = &t
		}
		if alarms[i].record.Severity >= severityThreshold {
			if critical == nil || ts.After(*critical) {
				t := ts
				critical = &t
			}
		}
	}
	if critical != nil {
		return critical
	}
	return latest
}

func currentElapsedHours(maintTime, criticalTime *time.Time, now time.Time) float64 {
	switch {
	case maintTime != nil && criticalTime != nil:
		start := *maintTime
		if criticalTime.After(start) {
			start = *criticalTime
		}
		return hoursBetween(start, now)
	case maintTime != nil:
		return hoursBetween(*maintTime, now)
	case criticalTime != nil:
		return hoursBetween(*criticalTime, now)
	default:
		return 0
	}
}

// alarmsInWindow counts alarms in the 24h window immediately before start.
func alarmsInWindow(times []time.Time, start time.Time) int {
	lookback := start.Add(-24 * time.Hour)
	count := 0
	for _, t := range times {
		if !t.Before(lookback) && t.Before(start) {
			count++
		}
	}
	return count
}

func hoursBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours()
}
