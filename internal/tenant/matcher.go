package tenant

import (
	"strings"

	"github.com/ecoaire/crac-forecast/pkg/models"
)

// Matcher decides which devices belong to a tenant. Device names embed the
// client name in free text, so matching is case-insensitive containment over
// the tenant key plus its known alias variants (a short client code also
// matches the full institutional name).
type Matcher struct {
	aliases map[string][]string
}

func NewMatcher(aliases map[string][]string) *Matcher {
	normalized := make(map[string][]string, len(aliases))
	for key, variants := range aliases {
		upper := make([]string, len(variants))
		for i, v := range variants {
			upper[i] = strings.ToUpper(v)
		}
		normalized[strings.ToUpper(key)] = upper
	}
	return &Matcher{aliases: normalized}
}

// Match reports whether the device belongs to the tenant.
func (m *Matcher) Match(device, tenant string) bool {
	if tenant == "" {
		return true
	}

	deviceUpper := strings.ToUpper(device)
	tenantUpper := strings.ToUpper(tenant)

	if strings.Contains(deviceUpper, tenantUpper) {
		return true
	}

	for _, variant := range m.variantsFor(tenantUpper) {
		if strings.Contains(deviceUpper, variant) {
			return true
		}
	}
	return false
}

// variantsFor returns the alias list whose key contains, or is contained in,
// the tenant name.
func (m *Matcher) variantsFor(tenantUpper string) []string {
	if variants, ok := m.aliases[tenantUpper]; ok {
		return variants
	}
	for key, variants := range m.aliases {
		if strings.Contains(tenantUpper, key) || strings.Contains(key, tenantUpper) {
			return variants
		}
	}
	return nil
}

// FilterRecords keeps only the records of devices belonging to the tenant.
func (m *Matcher) FilterRecords(records []models.AlarmRecord, tenant string) []models.AlarmRecord {
	if tenant == "" {
		return records
	}
	var out []models.AlarmRecord
	for _, rec := range records {
		if m.Match(rec.Device, tenant) {
			out = append(out, rec)
		}
	}
	return out
}

// FilterIntervals keeps only intervals of devices belonging to the tenant.
func (m *Matcher) FilterIntervals(intervals []models.Interval, tenant string) []models.Interval {
	if tenant == "" {
		return intervals
	}
	var out []models.Interval
	for _, iv := range intervals {
		if m.Match(iv.Unit, tenant) {
			out = append(out, iv)
		}
	}
	return out
}
