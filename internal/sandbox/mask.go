// File: internal/sandbox/mask.go
package sandbox

import (
	"regexp"
	"strings"
)

// Masked is the placeholder substituted for any value extracted from a field
// whose metadata marks it as sensitive.
const Masked = "[MASKED]"

// sensitivePattern matches field names, ids, and input types that commonly
// carry credentials or other secrets. The match is metadata-based on
// purpose: the value itself is never inspected.
var sensitivePattern = regexp.MustCompile(`(?i)(password|passwd|secret|token|key|credential|auth|ssn|cvv|cvc|pin)`)

// IsSensitiveField reports whether a field's identifying metadata (name, id,
// label, or input type) marks its value as sensitive.
func IsSensitiveField(identifiers ...string) bool {
	for _, id := range identifiers {
		if id == "" {
			continue
		}
		if strings.EqualFold(id, "password") || sensitivePattern.MatchString(id) {
			return true
		}
	}
	return false
}

// MaskValue returns the placeholder when any identifier is sensitive and the
// original value otherwise. Empty values pass through untouched so callers
// can distinguish "empty" from "hidden".
func MaskValue(value string, identifiers ...string) string {
	if value == "" {
		return value
	}
	if IsSensitiveField(identifiers...) {
		return Masked
	}
	return value
}

// MaskText blanks any value that was typed into a sensitive field before it
// is echoed back in a command result or log entry.
func MaskText(fieldIdentifier, text string) string {
	return MaskValue(text, fieldIdentifier)
}
