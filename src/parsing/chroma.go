package parsing

import (
	"bytes"

	"github.com/alecthomas/chroma/formatters/html"
	"github.com/alecthomas/chroma/styles"
)

var CodeRunChromaOptions = []html.Option{
	html.WithClasses(true),
	html.WithPreWrapper(nopPreWrapper{}),
}

type nopPreWrapper struct{}

var _ html.PreWrapper = nopPreWrapper{}

func (w nopPreWrapper) Start(code bool, styleAttr string) string {
	return ""
}

func (w nopPreWrapper) End(code bool) string {
	return ""
}

// ChromaCSS returns the stylesheet for highlighted code blocks. Unknown
// style names fall back to chroma's default style.
func ChromaCSS(styleName string) []byte {
	var buf bytes.Buffer
	formatter := html.New(CodeRunChromaOptions...)
	if err := formatter.WriteCSS(&buf, styles.Get(styleName)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
