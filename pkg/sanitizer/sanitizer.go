package sanitizer

import (
	"io"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"golang.org/x/net/html"
)

// Policy sanitizes untrusted feed HTML down to a user-generated-content
// whitelist before it is stored.
type Policy struct {
	policy *bluemonday.Policy
}

func NewPolicy() *Policy {
	return &Policy{policy: bluemonday.UGCPolicy()}
}

// Sanitize strips scripts, event handlers and other disallowed markup,
// keeping common formatting tags.
func (p *Policy) Sanitize(input string) string {
	return p.policy.Sanitize(input)
}

// PrefilterContent cleans an item before storage: the title loses all
// markup, the body keeps whitelisted formatting. The link passes through.
func (p *Policy) PrefilterContent(link, title, content string) (string, string, string) {
	return link, StripTags(title), p.Sanitize(content)
}

// StripTags removes all HTML/XML tags, keeping only text content. It is a
// cleanup helper, not an XSS defense.
func StripTags(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(input))
	var buf strings.Builder

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			if tokenizer.Err() == io.EOF {
				break
			}
			return ""
		}

		if tt == html.TextToken {
			buf.WriteString(tokenizer.Token().Data)
		}
	}

	return strings.TrimSpace(buf.String())
}
