package parsing

import (
	"github.com/yuin/goldmark"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Spoilers hide the answer to an exercise in a description or article until
// the reader hovers it.

type spoilerParser struct{}

func NewSpoilerParser() parser.InlineParser {
	return spoilerParser{}
}

func (s spoilerParser) Trigger() []byte {
	return []byte{'|'}
}

func (s spoilerParser) Parse(parent gast.Node, block text.Reader, pc parser.Context) gast.Node {
	before := block.PrecendingCharacter()
	restOfLine, segment := block.PeekLine()
	// Answers are hidden with a double bar, ||like this||.
	delimiter := parser.ScanDelimiter(restOfLine, before, 2, spoilerDelimiterParser{})
	if delimiter == nil {
		return nil
	}
	delimiter.Segment = segment.WithStop(segment.Start + delimiter.OriginalLength)
	block.Advance(delimiter.OriginalLength)
	pc.PushDelimiter(delimiter)
	return delimiter
}

type spoilerDelimiterParser struct{}

func (p spoilerDelimiterParser) IsDelimiter(b byte) bool {
	return b == '|'
}

func (p spoilerDelimiterParser) CanOpenCloser(opener, closer *parser.Delimiter) bool {
	return opener.Char == closer.Char
}

func (p spoilerDelimiterParser) OnMatch(consumes int) gast.Node {
	return NewSpoiler()
}

type SpoilerNode struct {
	gast.BaseInline
}

var _ gast.Node = &SpoilerNode{}

func (n *SpoilerNode) Dump(source []byte, level int) {
	gast.DumpHelper(n, source, level, nil, nil)
}

var KindSpoiler = gast.NewNodeKind("Spoiler")

func (n *SpoilerNode) Kind() gast.NodeKind {
	return KindSpoiler
}

func NewSpoiler() gast.Node {
	return &SpoilerNode{}
}

type SpoilerHTMLRenderer struct {
	html.Config
}

func NewSpoilerHTMLRenderer(opts ...html.Option) renderer.NodeRenderer {
	r := &SpoilerHTMLRenderer{
		Config: html.NewConfig(),
	}
	for _, opt := range opts {
		opt.SetHTMLOption(&r.Config)
	}
	return r
}

func (r *SpoilerHTMLRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindSpoiler, r.renderSpoiler)
}

func (r *SpoilerHTMLRenderer) renderSpoiler(w util.BufWriter, source []byte, n gast.Node, entering bool) (gast.WalkStatus, error) {
	if entering {
		_, _ = w.WriteString("<span class=\"answer-hidden\">")
	} else {
		_, _ = w.WriteString("</span>")
	}
	return gast.WalkContinue, nil
}

type SpoilerExtension struct{}

func (e SpoilerExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(parser.WithInlineParsers(
		util.Prioritized(NewSpoilerParser(), 500),
	))
	m.Renderer().AddOptions(renderer.WithNodeRenderers(
		util.Prioritized(NewSpoilerHTMLRenderer(), 500),
	))
}
