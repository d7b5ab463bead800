package urlutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeFeedURL(t *testing.T) {
	cases := map[string]string{
		"https://example.com/feed":     "https://example.com/feed",
		"  https://example.com/feed  ": "https://example.com/feed",
		"feed://example.com/rss":       "https://example.com/rss",
		"feed:https://example.com/rss": "https://example.com/rss",
		"example.com/feed":             "https://example.com/feed",
		"":                             "",
		"   ":                          "",
	}
	for input, want := range cases {
		require.Equal(t, want, NormalizeFeedURL(input), "input %q", input)
	}
}

func TestStripFragment(t *testing.T) {
	require.Equal(t, "https://example.com/a?b=c", StripFragment("https://example.com/a?b=c#frag"))
	require.Equal(t, "https://example.com/a", StripFragment("https://example.com/a"))
	require.Equal(t, "", StripFragment("  "))
}
