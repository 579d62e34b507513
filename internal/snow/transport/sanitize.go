package transport

import (
	"net/url"

	"github.com/snowbridge-io/snowbridge/internal/secrets"
)

// sanitizeURL removes sensitive query parameters from URLs before logging.
// This prevents leaking credentials that might appear in query values.
func sanitizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	q := u.Query()
	changed := false
	for param := range q {
		if secrets.IsSensitiveKey(param) {
			q.Set(param, "[REDACTED]")
			changed = true
		}
	}

	if !changed {
		return u.String()
	}

	safe := *u
	safe.RawQuery = q.Encode()
	return safe.String()
}
