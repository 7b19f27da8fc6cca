package conv

import (
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

var (
	extensions = parser.CommonExtensions | parser.NoEmptyLineBeforeBlock
	htmlFlags  = html.CommonFlags
	viewPolicy = bluemonday.NewPolicy()
)

func init() {
	viewPolicy.AllowElements("h1", "h2", "h3", "h4", "p", "ul", "ol", "li", "b", "strong", "i", "em",
		"code", "pre", "blockquote", "hr", "br", "table", "thead", "tbody", "tr", "th", "td", "a")
	viewPolicy.AllowAttrs("href").OnElements("a")
	// sets nofollow, turned off again below
	viewPolicy.AllowStandardURLs()
	viewPolicy.AllowAttrs("class").OnElements("code")
	viewPolicy.RequireNoFollowOnLinks(false)
}

// MarkdownToHTML renders memory markdown for the HTTP API.
func MarkdownToHTML(md []byte) string {
	// 1. Render HTML
	p := parser.NewWithExtensions(extensions)
	renderer := html.NewRenderer(html.RendererOptions{Flags: htmlFlags})
	unsafeHTML := markdown.Render(p.Parse(md), renderer)

	// 2. Sanitize tags
	return string(viewPolicy.SanitizeBytes(unsafeHTML))
}

// Headings returns the plain text of every heading of the given level, in
// document order. Level 0 matches all levels.
func Headings(md []byte, level int) []string {
	doc := parser.NewWithExtensions(extensions).Parse(md)

	var out []string
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		h, ok := node.(*ast.Heading)
		if !ok || !entering {
			return ast.GoToNext
		}
		if level == 0 || h.Level == level {
			out = append(out, nodeText(h))
		}
		return ast.SkipChildren
	})
	return out
}

func nodeText(n ast.Node) string {
	var b strings.Builder
	ast.WalkFunc(n, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		if leaf := node.AsLeaf(); leaf != nil {
			b.Write(leaf.Literal)
		}
		return ast.GoToNext
	})
	return strings.TrimSpace(b.String())
}
