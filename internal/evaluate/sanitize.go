package evaluate

import "regexp"

var (
	secretAssignmentPattern = regexp.MustCompile(`(?i)\b(password|pass|pwd|token|api[_-]?key|secret)\b\s*[:=]\s*[^\s,;]+`)
	declaredPasswordPattern = regexp.MustCompile(`(?i)\b(my password is|password is)\s+[^\s,;]+`)
	longTokenPattern        = regexp.MustCompile(`\b[A-Za-z0-9_\-]{28,}\b`)
)

// Sanitize redacts credential-like material from a text sample before it is
// persisted anywhere. The evaluators score the raw text; only stored
// excerpts pass through here.
func Sanitize(text string) string {
	out := secretAssignmentPattern.ReplaceAllString(text, "$1=[REDACTED]")
	out = declaredPasswordPattern.ReplaceAllString(out, "$1 [REDACTED]")
	out = longTokenPattern.ReplaceAllString(out, "[REDACTED_TOKEN]")
	return out
}
