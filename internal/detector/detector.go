package detector

import (
	"strings"

	"github.com/ecoaire/crac-forecast/pkg/models"
)

// Config is the text-matching failure policy: a record is a failure when its
// description contains any keyword and none of the exclusions.
type Config struct {
	Keywords   []string
	Exclusions []string
}

type Detector struct {
	keywords   []string
	exclusions []string
}

func New(cfg Config) *Detector {
	lower := func(in []string) []string {
		out := make([]string, len(in))
		for i, s := range in {
			out[i] = strings.ToLower(s)
		}
		return out
	}

	return &Detector{
		keywords:   lower(cfg.Keywords),
		exclusions: lower(cfg.Exclusions),
	}
}

// Detect flags each record as a failure or not. The severity threshold is
// accepted for interface parity with the interval builder but does not feed
// the text rule; it only drives baseline-time computation downstream.
func (d *Detector) Detect(records []models.AlarmRecord, severityThreshold int) []bool {
	_ = severityThreshold

	flags := make([]bool, len(records))
	for i, rec := range records {
		flags[i] = d.isFailure(rec.Description)
	}
	return flags
}

func (d *Detector) isFailure(description string) bool {
	if description == "" {
		return false
	}

	desc := strings.ToLower(description)

	matched := false
	for _, kw := range d.keywords {
		if strings.Contains(desc, kw) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	for _, ex := range d.exclusions {
		if strings.Contains(desc, ex) {
			return false
		}
	}

	return true
}
