package model

import (
	"strings"
)

// NormalizeSID returns the canonical join key for a student identifier.
// Numeric identifiers lose leading zeros and a trailing ".0" written by
// spreadsheet exports; anything else is only trimmed.
func NormalizeSID(raw string) string {
	s := strings.TrimSpace(raw)
	digits := strings.TrimSuffix(s, ".0")
	if digits == "" || !allDigits(digits) {
		return s
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return "0"
	}
	return digits
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
