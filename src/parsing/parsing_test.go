package parsing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdown(t *testing.T) {
	t.Run("fenced code blocks", func(t *testing.T) {
		t.Run("multiple lines", func(t *testing.T) {
			html := string(ParseMarkdown("```\nmultiple lines\n\tof code\n```", ContentMarkdown))
			t.Log(html)
			assert.Equal(t, 1, strings.Count(html, "<pre"))
			assert.Contains(t, html, `class="coderun-code"`)
			assert.Contains(t, html, "multiple lines\n\tof code")
		})
		t.Run("multiple lines with language", func(t *testing.T) {
			html := string(ParseMarkdown("```python\ndef solve(n):\n    return n * 2\n```", ContentMarkdown))
			t.Log(html)
			assert.Equal(t, 1, strings.Count(html, "<pre"))
			assert.Contains(t, html, `class="coderun-code"`)
			assert.Contains(t, html, "solve")
			assert.Contains(t, html, `<span class="`, "highlighted with classes")
		})
	})
	t.Run("raw html is not passed through", func(t *testing.T) {
		html := string(ParseMarkdown("hi <script>alert(1)</script> <img src=x onerror=alert(1)>", ContentMarkdown))
		assert.NotContains(t, html, "<script")
		assert.NotContains(t, html, "onerror")
	})
	t.Run("links", func(t *testing.T) {
		html := string(ParseMarkdown("[docs](https://example.com/a) and [bad](javascript:alert(1))", ContentMarkdown))
		assert.Contains(t, html, `href="https://example.com/a"`)
		assert.Contains(t, html, "nofollow")
		assert.NotContains(t, html, "javascript:")
	})
	t.Run("spoilers", func(t *testing.T) {
		html := string(ParseMarkdown("The answer is ||42||.", ContentMarkdown))
		assert.Contains(t, html, `<span class="answer-hidden">42</span>`)
	})
}

func TestPlaintextSummary(t *testing.T) {
	summary := PlaintextSummary("# Title\n\nSome *emphasis* here.\n\nThe answer is ||42||.", 0)
	assert.NotContains(t, summary, "42")
	assert.NotContains(t, summary, "*")
	assert.Contains(t, summary, "Some emphasis here.")
	assert.NotContains(t, summary, "  ")

	short := PlaintextSummary("abcdefghijklmnopqrstuvwxyz", 10)
	assert.Equal(t, 10, len([]rune(short)))
	assert.True(t, strings.HasSuffix(short, "…"))

	assert.Equal(t, "tiny", PlaintextSummary("tiny", 10))
}

func TestLinkifyComment(t *testing.T) {
	html := string(LinkifyComment("see https://example.com/x?a=1&b=2\n<b>thanks</b>"))
	t.Log(html)
	assert.Contains(t, html, `href="https://example.com/x?a=1&amp;b=2"`)
	assert.Contains(t, html, "<br")
	assert.Contains(t, html, "&lt;b&gt;thanks&lt;/b&gt;")
	assert.NotContains(t, html, "<b>")

	assert.Equal(t, "no links", string(LinkifyComment("no links")))
}

func TestChromaCSS(t *testing.T) {
	css := string(ChromaCSS("monokai"))
	assert.Contains(t, css, ".chroma")
	assert.NotEmpty(t, ChromaCSS("no such style"))
}
