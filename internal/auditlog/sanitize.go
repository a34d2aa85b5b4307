package auditlog

import (
	"regexp"
	"strings"
)

const redacted = "<redacted>"

var sensitiveFlags = map[string]struct{}{
	"--api-key":       {},
	"--smtp-password": {},
	"--password":      {},
	"--token":         {},
}

// SanitizeArgs redacts sensitive flag values for audit storage.
func SanitizeArgs(args []string) []string {
	sanitized := make([]string, 0, len(args))
	skipNext := false

	for _, arg := range args {
		if skipNext {
			sanitized = append(sanitized, redacted)
			skipNext = false
			continue
		}

		if _, ok := sensitiveFlags[arg]; ok {
			sanitized = append(sanitized, arg)
			skipNext = true
			continue
		}

		if key, _, ok := strings.Cut(arg, "="); ok {
			if _, ok := sensitiveFlags[key]; ok {
				sanitized = append(sanitized, key+"="+redacted)
				continue
			}
		}

		sanitized = append(sanitized, arg)
	}

	return sanitized
}

var (
	bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/=-]+`)
	secretPattern = regexp.MustCompile(`(?i)((?:api[_-]?key|token|password|secret)\s*[=:]\s*"?)[^\s",&]+`)
)

// maxDetail caps stored error text; provider error bodies can be large.
const maxDetail = 512

// SanitizeDetail strips credentials from free-form error text and
// truncates it for storage.
func SanitizeDetail(detail string) string {
	detail = bearerPattern.ReplaceAllString(detail, "${1}"+redacted)
	detail = secretPattern.ReplaceAllString(detail, "${1}"+redacted)
	if len(detail) > maxDetail {
		detail = detail[:maxDetail] + "..."
	}
	return detail
}
