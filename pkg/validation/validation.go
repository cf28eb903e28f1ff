package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

var (
	// ErrInvalidInput indicates the input failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// Tenant keys are short institutional codes or names.
	tenantRegex = regexp.MustCompile(`^[a-zA-Z0-9 _.-]{1,100}$`)
)

// SanitizeString trims whitespace and strips null bytes and control
// characters, keeping newline and tab.
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")

	var builder strings.Builder
	for _, r := range input {
		if !unicode.IsControl(r) || r == '\n' || r == '\t' {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// ValidateDeviceName checks a device name taken from a request path. Device
// names are free text from the monitoring system, so only length and control
// characters are policed.
func ValidateDeviceName(name string) error {
	name = SanitizeString(name)

	if name == "" {
		return errors.New("device name cannot be empty")
	}
	if len(name) > 200 {
		return errors.New("device name must not exceed 200 characters")
	}
	return nil
}

// ValidateTenant checks a tenant query parameter. An empty tenant is valid
// and means no scoping.
func ValidateTenant(tenant string) error {
	tenant = SanitizeString(tenant)

	if tenant == "" {
		return nil
	}
	if !tenantRegex.MatchString(tenant) {
		return errors.New("tenant may contain only letters, digits, spaces, dots, hyphens and underscores")
	}
	return nil
}

// ValidateLimit checks a pagination limit against the configured ceiling.
func ValidateLimit(limit, max int) error {
	if limit < 1 {
		return errors.New("limit must be at least 1")
	}
	if max > 0 && limit > max {
		return errors.New("limit exceeds the maximum")
	}
	return nil
}
