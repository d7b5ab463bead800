package sanitizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPolicy_SanitizeRemovesScripts(t *testing.T) {
	p := NewPolicy()

	out := p.Sanitize(`<p>hello</p><script>alert("x")</script>`)
	require.Contains(t, out, "<p>hello</p>")
	require.NotContains(t, out, "script")
	require.NotContains(t, out, "alert")
}

func TestPolicy_SanitizeKeepsFormatting(t *testing.T) {
	p := NewPolicy()

	out := p.Sanitize(`<p>a <strong>bold</strong> <a href="https://example.com">link</a></p>`)
	require.Contains(t, out, "<strong>bold</strong>")
	require.Contains(t, out, `href="https://example.com"`)
}

func TestPolicy_PrefilterContent(t *testing.T) {
	p := NewPolicy()

	link, title, content := p.PrefilterContent(
		"https://example.com/post",
		`Breaking <em>news</em>`,
		`<p>body</p><iframe src="https://evil.example"></iframe>`,
	)
	require.Equal(t, "https://example.com/post", link)
	require.Equal(t, "Breaking news", title)
	require.Contains(t, content, "<p>body</p>")
	require.NotContains(t, content, "iframe")
}

func TestStripTags(t *testing.T) {
	require.Equal(t, "Hello World", StripTags("<p>Hello <strong>World</strong></p>"))
	require.Equal(t, "Plain text", StripTags("Plain text"))
	require.Equal(t, "John Doe", StripTags("<author>John Doe</author>"))
	require.Equal(t, "", StripTags("   "))
}
