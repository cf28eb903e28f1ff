package source

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ecoaire/crac-forecast/pkg/models"
)

func TestFillSerials(t *testing.T) {
	mapping := map[string]string{
		"EAFIT CRAC-01":           "SN-100",
		"METRO SALA 2 (10.1.1.4)": "SN-200",
	}

	tests := []struct {
		name     string
		record   models.AlarmRecord
		expected string
	}{
		{
			name:     "exact name match",
			record:   models.AlarmRecord{Device: "EAFIT CRAC-01"},
			expected: "SN-100",
		},
		{
			name:     "parenthesised suffix stripped from record",
			record:   models.AlarmRecord{Device: "EAFIT CRAC-01 (10.0.0.5)"},
			expected: "SN-100",
		},
		{
			name:     "parenthesised suffix stripped from mapping",
			record:   models.AlarmRecord{Device: "METRO SALA 2"},
			expected: "SN-200",
		},
		{
			name:     "containment match for long names",
			record:   models.AlarmRecord{Device: "EAFIT CRAC-01 PRINCIPAL"},
			expected: "SN-100",
		},
		{
			name:     "existing serial untouched",
			record:   models.AlarmRecord{Device: "EAFIT CRAC-01", Serial: "SN-KEEP"},
			expected: "SN-KEEP",
		},
		{
			name:     "no match leaves serial empty",
			record:   models.AlarmRecord{Device: "UNKNOWN UNIT"},
			expected: "",
		},
		{
			name:     "short names never match by containment",
			record:   models.AlarmRecord{Device: "EA"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FillSerials([]models.AlarmRecord{tt.record}, mapping)
			assert.Equal(t, tt.expected, out[0].Serial)
		})
	}
}

func TestFillSerials_EmptyMapping(t *testing.T) {
	records := []models.AlarmRecord{{Device: "EAFIT CRAC-01"}}
	out := FillSerials(records, nil)
	assert.Equal(t, "", out[0].Serial)
}

func TestFillSerials_DoesNotMutateInput(t *testing.T) {
	records := []models.AlarmRecord{{Device: "EAFIT CRAC-01"}}
	FillSerials(records, map[string]string{"EAFIT CRAC-01": "SN-100"})
	assert.Equal(t, "", records[0].Serial)
}

func TestCleanDeviceName(t *testing.T) {
	assert.Equal(t, "EAFIT CRAC-01", cleanDeviceName("EAFIT CRAC-01 (10.0.0.5)"))
	assert.Equal(t, "EAFIT CRAC-01", cleanDeviceName("EAFIT CRAC-01"))
	assert.Equal(t, "", cleanDeviceName("(10.0.0.5)"))
}
