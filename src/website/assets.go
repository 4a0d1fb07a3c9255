package website

import (
	"net/http"
	"sync"

	"git.coderun.dev/coderun/coderun/src/parsing"
)

const chromaStyle = "github"

var chromaCSS = sync.OnceValue(func() []byte {
	return parsing.ChromaCSS(chromaStyle)
})

// Asset serves the stylesheets. style.css is a template so it can derive its
// colours from the brand palette.
func Asset(c *RequestContext) ResponseData {
	var res ResponseData
	switch c.PathParams["file"] {
	case "style.css":
		res.Header().Set("Content-Type", "text/css; charset=utf-8")
		if err := res.WriteTemplate("style.css", nil, c.Perf); err != nil {
			return c.ErrorResponse(http.StatusInternalServerError, err)
		}
	case "chroma.css":
		res.Header().Set("Content-Type", "text/css; charset=utf-8")
		res.Write(chromaCSS())
	default:
		return FourOhFour(c)
	}
	res.Header().Set("Cache-Control", "public, max-age=300")
	return res
}
