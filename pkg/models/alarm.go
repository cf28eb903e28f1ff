package models

import "time"

// AlarmRecord is a single alarm row pulled from the alarm history source.
type AlarmRecord struct {
	Device      string     `json:"device"`
	Serial      string     `json:"serial,omitempty"`
	Model       string     `json:"model,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	Description string     `json:"description"`
	Severity    int        `json:"severity"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Devices returns the distinct device names in records, in first-seen order.
func Devices(records []AlarmRecord) []string {
	seen := make(map[string]bool, len(records))
	var devices []string
	for _, r := range records {
		if !seen[r.Device] {
			seen[r.Device] = true
			devices = append(devices, r.Device)
		}
	}
	return devices
}

// Serials returns the distinct non-empty serial numbers in records.
func Serials(records []AlarmRecord) []string {
	seen := make(map[string]bool, len(records))
	var serials []string
	for _, r := range records {
		if r.Serial != "" && !seen[r.Serial] {
			seen[r.Serial] = true
			serials = append(serials, r.Serial)
		}
	}
	return serials
}
