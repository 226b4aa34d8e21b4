package logger

import "strings"

// RedactEmail masks an email address for safe logging.
// "jane.doe@example.com" becomes "ja***@example.com". Local parts of two
// characters or fewer are masked entirely so short addresses are not
// recoverable from logs.
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) > 2 {
		return local[:2] + "***@" + domain
	}
	return "***@" + domain
}
