// Package logging keeps credentials out of log output. Errors surfaced by
// the database driver, the storage SDK and the AI collaborators can echo the
// connection string or API key that failed; anything logged at the
// entrypoints goes through these helpers first.
package logging

import "regexp"

// RedactedText replaces any credential found in logged text.
const RedactedText = "[REDACTED]"

var (
	// password=..., pwd=..., pass=... up to the next delimiter.
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:password@host credentials inside a URL.
	connStringPattern = regexp.MustCompile(`://[^:]+:[^@]+@[^/\s]+`)

	// key=... values long enough to plausibly be a real API key; short
	// values stay visible to avoid redacting ordinary parameters.
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// Bearer tokens, as the OpenAI and Anthropic SDKs include them in
	// transport errors.
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-_.]+`)
)

// SanitizeConnectionString redacts credentials in a database or Redis
// connection string before it is logged.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}

// SanitizeError redacts credentials in an error message. Driver and SDK
// errors are the usual leak path: pgx quotes the failing conninfo, and HTTP
// client errors can carry the Authorization header.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}
