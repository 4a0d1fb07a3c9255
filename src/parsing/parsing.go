package parsing

import (
	"bytes"
	"html"
	"html/template"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/util"
	"mvdan.cc/xurls/v2"
)

// Used for video descriptions and community articles.
var ContentMarkdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlightExtension,
		SpoilerExtension{},
	),
)

// Used for the plain-text summaries in page metadata.
var PlaintextMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM, SpoilerExtension{}),
	goldmark.WithRenderer(plaintextRenderer{}),
)

var highlightExtension = highlighting.NewHighlighting(
	highlighting.WithFormatOptions(CodeRunChromaOptions...),
	highlighting.WithWrapperRenderer(func(w util.BufWriter, context highlighting.CodeBlockContext, entering bool) {
		if entering {
			w.WriteString(`<pre class="coderun-code">`)
		} else {
			w.WriteString(`</pre>`)
		}
	}),
)

// All rendered user content passes through this policy. The class
// attributes are the ones chroma and the spoiler renderer emit.
var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func contentPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("pre", "code", "span")
		p.RequireNoFollowOnLinks(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		policy = p
	})
	return policy
}

// ParseMarkdown renders user-written markdown to sanitized HTML.
func ParseMarkdown(source string, md goldmark.Markdown) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(source), &buf); err != nil {
		panic(err)
	}

	return template.HTML(contentPolicy().SanitizeBytes(buf.Bytes()))
}

// PlaintextSummary renders markdown down to a single line of text of at most
// maxRunes runes, for use in meta descriptions.
func PlaintextSummary(source string, maxRunes int) string {
	var buf bytes.Buffer
	if err := PlaintextMarkdown.Convert([]byte(source), &buf); err != nil {
		panic(err)
	}

	text := strings.Join(strings.Fields(buf.String()), " ")
	runes := []rune(text)
	if maxRunes > 0 && len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes-1])) + "…"
	}
	return text
}

var urlRegex = xurls.Strict()

// LinkifyComment renders a plain-text comment: everything is escaped, line
// breaks are kept, and bare URLs become links.
func LinkifyComment(text string) template.HTML {
	var b strings.Builder
	last := 0
	for _, loc := range urlRegex.FindAllStringIndex(text, -1) {
		b.WriteString(escapeWithBreaks(text[last:loc[0]]))
		url := text[loc[0]:loc[1]]
		b.WriteString(`<a href="`)
		b.WriteString(html.EscapeString(url))
		b.WriteString(`" rel="nofollow noopener" target="_blank">`)
		b.WriteString(html.EscapeString(url))
		b.WriteString(`</a>`)
		last = loc[1]
	}
	b.WriteString(escapeWithBreaks(text[last:]))

	return template.HTML(contentPolicy().Sanitize(b.String()))
}

func escapeWithBreaks(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>")
}
