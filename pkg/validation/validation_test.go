package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"trims whitespace", "  CRAC-01  ", "CRAC-01"},
		{"strips null bytes", "CRAC\x00-01", "CRAC-01"},
		{"strips control characters", "CRAC\x07-01", "CRAC-01"},
		{"keeps tabs and newlines", "a\tb\nc", "a\tb\nc"},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeString(tt.input))
		})
	}
}

func TestValidateDeviceName(t *testing.T) {
	assert.NoError(t, ValidateDeviceName("EAFIT CRAC-01 (10.0.0.5)"))
	assert.Error(t, ValidateDeviceName(""))
	assert.Error(t, ValidateDeviceName("   "))

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}
	assert.Error(t, ValidateDeviceName(string(long)))
}

func TestValidateTenant(t *testing.T) {
	assert.NoError(t, ValidateTenant(""))
	assert.NoError(t, ValidateTenant("EAFIT"))
	assert.NoError(t, ValidateTenant("UNIVERSIDAD DEL CAUCA"))
	assert.Error(t, ValidateTenant("tenant;DROP TABLE"))
	assert.Error(t, ValidateTenant("a%b"))
}

func TestValidateLimit(t *testing.T) {
	assert.NoError(t, ValidateLimit(10, 100))
	assert.NoError(t, ValidateLimit(10, 0))
	assert.Error(t, ValidateLimit(0, 100))
	assert.Error(t, ValidateLimit(200, 100))
}
