package models

import "time"

// Interval is one survival-analysis segment of a device's timeline. It ends
// either in an observed failure (Event=true) or in administrative censoring
// at the build time (Event=false).
type Interval struct {
	Unit                string     `json:"unit"`
	Start               time.Time  `json:"start"`
	End                 time.Time  `json:"end"`
	DurationHours       float64    `json:"duration_hours"`
	Event               bool       `json:"event"`
	TotalAlarms         int        `json:"total_alarms"`
	AlarmsLast24h       int        `json:"alarms_last_24h"`
	TimeSinceLastAlarmH *float64   `json:"time_since_last_alarm_h,omitempty"`
	CurrentTimeElapsedH float64    `json:"current_time_elapsed"`
	LastCriticalTime    *time.Time `json:"last_critical_time,omitempty"`
	LastMaintenanceTime *time.Time `json:"last_maintenance_time,omitempty"`
}

// IntervalsForUnit returns the intervals belonging to one device, preserving
// build order (chronological, censored interval last).
func IntervalsForUnit(intervals []Interval, unit string) []Interval {
	var out []Interval
	for _, iv := range intervals {
		if iv.Unit == unit {
			out = append(out, iv)
		}
	}
	return out
}
