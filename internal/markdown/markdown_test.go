package markdown

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "   \n ", ""},
		{"crlf", "a\r\nb", "a\nb"},
		{"list after paragraph", "Intro\n- a\n- b", "Intro\n\n- a\n- b"},
		{"paragraph after list", "- a\n- b\nOutro", "- a\n- b\n\nOutro"},
		{"bold lead line", "**What changed**\nWe fixed it.", "**What changed**\n\nWe fixed it."},
		{"bold lead with colon", "**Impact:**\nNone.", "**Impact:**\n\nNone."},
		{"heading", "### Steps\nDo this", "### Steps\n\nDo this"},
		{"unicode bullets", "• one\n• two", "- one\n- two"},
		{"numbered list", "Steps\n1. open\n2. click", "Steps\n\n1. open\n2. click"},
		{"continuation line", "- a\n  more about a\n- b", "- a\n  more about a\n- b"},
		{"collapses blank runs", "a\n\n\n\nb", "a\n\nb"},
		{"plain lines untouched", "line one\nline two", "line one\nline two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestRender_Formatting(t *testing.T) {
	r := NewRenderer()

	out := r.Render("Features:\n- **Fast** sync\n- Offline mode\nAvailable now")
	assert.Contains(t, out, "<p>Features:</p>")
	assert.Contains(t, out, "<ul>")
	assert.Contains(t, out, "<li><strong>Fast</strong> sync</li>")
	assert.Contains(t, out, "<li>Offline mode</li>")
	assert.Contains(t, out, "<p>Available now</p>")
}

func TestRender_HardWraps(t *testing.T) {
	out := NewRenderer().Render("line one\nline two")
	assert.Contains(t, out, "line one<br")
	assert.Contains(t, out, "line two")
}

func TestRender_Links(t *testing.T) {
	r := NewRenderer()

	out := r.Render("Read the [guide](https://cofabri.com/kb/start).")
	assert.Contains(t, out, `href="https://cofabri.com/kb/start"`)
	assert.Contains(t, out, "nofollow")
	assert.Contains(t, out, `target="_blank"`)

	out = r.Render("Visit https://cofabri.com today")
	assert.Contains(t, out, `href="https://cofabri.com"`)
}

func TestRender_Sanitizes(t *testing.T) {
	r := NewRenderer()

	tests := []struct {
		name      string
		in        string
		forbidden []string
	}{
		{"script block", "<script>alert(1)</script>\n\nhello", []string{"<script", "alert(1)"}},
		{"inline handler", `<img src=x onerror="alert(1)">`, []string{"onerror", "<img"}},
		{"javascript link", "[click](javascript:alert(1))", []string{"javascript:"}},
		{"iframe", `<iframe src="https://evil.example"></iframe>`, []string{"<iframe"}},
		{"style", "<style>body{display:none}</style>", []string{"<style", "display:none"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := r.Render(tt.in)
			for _, f := range tt.forbidden {
				assert.NotContains(t, out, f)
			}
		})
	}
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "", NewRenderer().Render(""))
	assert.Equal(t, "", NewRenderer().Render(" \n\t"))
}

func TestRender_Idempotent(t *testing.T) {
	r := NewRenderer()
	in := "**Bold**\nText with [link](https://cofabri.com)"
	assert.Equal(t, r.Render(in), r.Render(in))
}

func TestRender_Concurrent(t *testing.T) {
	r := NewRenderer()
	want := r.Render("- a\n- b")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, r.Render("- a\n- b"))
		}()
	}
	wg.Wait()
}

func TestSanitize(t *testing.T) {
	out := NewRenderer().Sanitize(`<p onclick="x()">ok</p><script>bad()</script>`)
	assert.Equal(t, "<p>ok</p>", out)
}

func TestExcerpt(t *testing.T) {
	html := "<p>Hello <strong>world</strong></p><p>Second&nbsp;para</p>"

	assert.Equal(t, "Hello world Second para", Excerpt(html, 0))
	assert.Equal(t, "The quick…", Excerpt("<p>The quick brown fox jumps</p>", 12))
	assert.Equal(t, "short", Excerpt("<p>short</p>", 100))

	long := strings.Repeat("a", 30)
	got := Excerpt("<p>"+long+"</p>", 10)
	assert.Equal(t, strings.Repeat("a", 10)+"…", got)
}
