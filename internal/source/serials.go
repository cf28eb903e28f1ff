package source

import (
	"strings"

	"github.com/ecoaire/crac-forecast/pkg/models"
)

// FillSerials completes missing serial numbers from a device-name mapping.
// Device names commonly carry a parenthesised management IP; matching is
// tried exact first, then on the name with the parenthesised suffix removed,
// then by containment for names longer than three characters. Records that
// already carry a serial are left alone.
func FillSerials(records []models.AlarmRecord, mapping map[string]string) []models.AlarmRecord {
	if len(mapping) == 0 {
		return records
	}

	cleaned := make(map[string]string, len(mapping))
	for name, serial := range mapping {
		cleaned[cleanDeviceName(name)] = serial
	}

	out := make([]models.AlarmRecord, len(records))
	for i, rec := range records {
		out[i] = rec
		if rec.Serial != "" {
			continue
		}
		if serial, ok := mapping[rec.Device]; ok {
			out[i].Serial = serial
			continue
		}
		out[i].Serial = lookupFlexible(cleaned, cleanDeviceName(rec.Device))
	}
	return out
}

func lookupFlexible(cleaned map[string]string, name string) string {
	if serial, ok := cleaned[name]; ok {
		return serial
	}
	if len(name) <= 3 {
		return ""
	}
	for key, serial := range cleaned {
		if strings.Contains(key, name) || strings.Contains(name, key) {
			return serial
		}
	}
	return ""
}

// cleanDeviceName strips the parenthesised suffix, e.g. the management IP.
func cleanDeviceName(name string) string {
	if idx := strings.Index(name, "("); idx >= 0 {
		name = name[:idx]
	}
	return strings.TrimSpace(name)
}
