package parser

import (
	"regexp"
	"strings"

	"github.com/inbucket/html2text"
	"github.com/microcosm-cc/bluemonday"
)

var (
	htmlTagRe  = regexp.MustCompile(`(?i)<(p|div|br|span|pre|code|ul|ol|li|h[1-6]|table|blockquote|strong|em)\b[^>]*>`)
	htmlPolicy = bluemonday.UGCPolicy()
)

// normalizeHTML converts web-export markup into plain text. Plain text and
// content that fails conversion come back unchanged.
func normalizeHTML(content string) (string, bool) {
	if !htmlTagRe.MatchString(content) {
		return content, false
	}

	sanitized := htmlPolicy.Sanitize(content)
	text, err := html2text.FromString(sanitized, html2text.Options{
		OmitLinks:    false,
		PrettyTables: true,
	})
	if err != nil {
		return content, false
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return content, false
	}
	return text, true
}
