package model

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeKey trims surrounding whitespace and applies Unicode NFC so that
// visually identical keys compare equal.
func NormalizeKey(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
