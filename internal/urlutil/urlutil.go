package urlutil

import (
	"net/url"
	"strings"
)

// NormalizeFeedURL canonicalizes a user-supplied feed address: whitespace is
// trimmed, feed: schemes are rewritten to http(s), and a missing scheme
// defaults to https.
func NormalizeFeedURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(trimmed, "feed://"):
		trimmed = "https://" + strings.TrimPrefix(trimmed, "feed://")
	case strings.HasPrefix(trimmed, "feed:"):
		trimmed = strings.TrimPrefix(trimmed, "feed:")
	}

	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	return trimmed
}

// StripFragment removes URL fragments while keeping scheme/host/path/query.
func StripFragment(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(trimmed)
	if err == nil {
		parsed.Fragment = ""
		return parsed.String()
	}

	if idx := strings.Index(trimmed, "#"); idx >= 0 {
		return trimmed[:idx]
	}
	return trimmed
}
