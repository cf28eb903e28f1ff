package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ecoaire/crac-forecast/pkg/models"
)

func newTestDetector() *Detector {
	return New(Config{
		Keywords: []string{
			"Low Superheat Critical",
			"Compressor High Head Condition",
			"Compressor Drive Failure",
		},
		Exclusions: []string{"cleared", "restored", "return to normal"},
	})
}

func TestDetector_Detect(t *testing.T) {
	tests := []struct {
		name        string
		description string
		expected    bool
	}{
		{
			name:        "exact keyword match",
			description: "Low Superheat Critical",
			expected:    true,
		},
		{
			name:        "keyword match is case-insensitive",
			description: "LOW SUPERHEAT CRITICAL on circuit 1",
			expected:    true,
		},
		{
			name:        "keyword inside longer text",
			description: "Unit 3: Compressor Drive Failure detected",
			expected:    true,
		},
		{
			name:        "exclusion suppresses keyword",
			description: "Low Superheat Critical cleared",
			expected:    false,
		},
		{
			name:        "exclusion is case-insensitive",
			description: "Compressor High Head Condition RESTORED",
			expected:    false,
		},
		{
			name:        "no keyword",
			description: "High return temperature",
			expected:    false,
		},
		{
			name:        "empty description",
			description: "",
			expected:    false,
		},
	}

	d := newTestDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := []models.AlarmRecord{{
				Device:      "CRAC-01",
				Timestamp:   time.Now(),
				Description: tt.description,
			}}

			flags := d.Detect(records, 6)

			assert.Len(t, flags, 1)
			assert.Equal(t, tt.expected, flags[0])
		})
	}
}

func TestDetector_Detect_OneFlagPerRecord(t *testing.T) {
	d := newTestDetector()

	records := []models.AlarmRecord{
		{Device: "CRAC-01", Description: "Low Superheat Critical"},
		{Device: "CRAC-01", Description: "routine notice"},
		{Device: "CRAC-02", Description: "Compressor Drive Failure"},
	}

	flags := d.Detect(records, 6)

	assert.Equal(t, []bool{true, false, true}, flags)
}

func TestDetector_Detect_EmptyInput(t *testing.T) {
	d := newTestDetector()
	assert.Empty(t, d.Detect(nil, 6))
}
