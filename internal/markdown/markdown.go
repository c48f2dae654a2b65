// Package markdown turns the lightly formatted free text stored in the
// content source into sanitized HTML.
package markdown

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	xhtml "golang.org/x/net/html"
)

// Renderer converts markdown to HTML and strips everything outside its
// allow-list. It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer builds the converter and the sanitizer policy.
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)

	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "strong", "em", "del",
		"ul", "ol", "li",
		"h3", "h4",
		"code", "pre", "blockquote",
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(true)
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &Renderer{md: md, policy: p}
}

// Render converts text to sanitized HTML. Empty input renders as "".
func (r *Renderer) Render(text string) string {
	text = Normalize(text)
	if text == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(text), &buf); err != nil {
		// Conversion only fails on writer errors; fall back to escaped text.
		return r.policy.Sanitize("<p>" + xhtml.EscapeString(text) + "</p>")
	}
	return strings.TrimSpace(r.policy.Sanitize(buf.String()))
}

// Sanitize applies the allow-list to HTML that did not come from Render.
func (r *Renderer) Sanitize(rawHTML string) string {
	return r.policy.Sanitize(rawHTML)
}

var (
	bulletLine  = regexp.MustCompile(`^\s*(?:[-*+•]|\d+[.)])\s+`)
	unicodeDot  = regexp.MustCompile(`^(\s*)•\s+`)
	boldLead    = regexp.MustCompile(`^\s*\*\*[^*]+\*\*:?\s*$`)
	headingLine = regexp.MustCompile(`^\s*#{1,6}\s`)
	excessBlank = regexp.MustCompile(`\n{3,}`)
)

// Normalize inserts the blank lines authors tend to omit: around bullet
// lists, after a bold lead-in line and after headings. Unicode bullets are
// turned into markdown ones.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines)+8)
	for i, line := range lines {
		line = strings.TrimRight(unicodeDot.ReplaceAllString(line, "$1- "), " \t")

		if i > 0 && line != "" {
			prev := out[len(out)-1]
			if needsBreak(prev, line) {
				out = append(out, "")
			}
		}
		out = append(out, line)
	}

	return excessBlank.ReplaceAllString(strings.Join(out, "\n"), "\n\n")
}

func needsBreak(prev, line string) bool {
	if prev == "" {
		return false
	}
	prevBullet := bulletLine.MatchString(prev)
	curBullet := bulletLine.MatchString(line)

	switch {
	case prevBullet && !curBullet && !isIndented(line):
		return true
	case !prevBullet && !isIndented(prev) && curBullet:
		return true
	case boldLead.MatchString(prev):
		return true
	case headingLine.MatchString(prev):
		return true
	}
	return false
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")
}

// Excerpt returns the text content of an HTML fragment with whitespace
// collapsed, cut at a word boundary to at most limit runes plus an ellipsis.
func Excerpt(fragment string, limit int) string {
	var sb strings.Builder
	z := xhtml.NewTokenizer(strings.NewReader(fragment))
	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			break
		}
		switch tt {
		case xhtml.TextToken:
			sb.Write(z.Text())
		case xhtml.StartTagToken, xhtml.EndTagToken, xhtml.SelfClosingTagToken:
			sb.WriteByte(' ')
		}
	}

	text := strings.Join(strings.Fields(sb.String()), " ")
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:limit])
	if i := strings.LastIndex(cut, " "); i > limit/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}
