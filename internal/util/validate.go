package util

import (
	"fmt"
	"regexp"
	"strings"
)

// maxOrderRefLen bounds references accepted from the CLI and HTTP API.
const maxOrderRefLen = 64

// validRefChars matches alphanumerics plus the separators order systems
// commonly use in references. Slashes are excluded so a reference is
// always a single path segment.
var validRefChars = regexp.MustCompile(`^[a-zA-Z0-9._\-]+$`)

// ValidateOrderRef checks that an order reference is safe to store, log
// and place in a provider URL path segment:
//   - 1 to 64 characters
//   - only a-z, A-Z, 0-9, '.', '_' and '-'
//   - first character must be alphanumeric
func ValidateOrderRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("order reference must not be empty")
	}
	if len(ref) > maxOrderRefLen {
		return fmt.Errorf("order reference must be at most %d characters, got %d", maxOrderRefLen, len(ref))
	}

	if !validRefChars.MatchString(ref) {
		return fmt.Errorf("order reference %q contains invalid characters (only a-z, A-Z, 0-9, '.', '_' and '-' are allowed)", ref)
	}

	if first := ref[0]; !isAlphanumeric(first) {
		return fmt.Errorf("order reference must start with an alphanumeric character, got %q", string(first))
	}

	return nil
}

func isAlphanumeric(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// NormalizeKey lowercases and trims s for case-insensitive lookups of
// payment methods, secret names and config keys.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
