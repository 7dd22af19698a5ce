package logging

import "strings"

// RedactedValue is the canonical placeholder used for sensitive config
// fields when they are logged or dumped (e.g. by config.Config.Sanitized).
const RedactedValue = "[REDACTED]"

// MaskValue returns RedactedValue for any non-empty secret. Empty values are
// returned unchanged so missing configuration stays visibly missing.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}
