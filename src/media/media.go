// Package media checks the files a user attaches to a video upload before
// they are forwarded to the platform API.
package media

import (
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"git.coderun.dev/coderun/coderun/src/oops"
)

var (
	ErrUnsupportedImage = errors.New("image type not supported")
	ErrEmptyImage       = errors.New("image has zero size")
	ErrNotVideo         = errors.New("file is not a video")
)

// The standard library's table knows no video types, and the system table
// may not be installed.
var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
}

func init() {
	for ext, typ := range videoExtensions {
		if err := mime.AddExtensionType(ext, typ); err != nil {
			panic(err)
		}
	}
}

type ImageInfo struct {
	Format string
	Width  int
	Height int
}

func (i ImageInfo) ContentType() string {
	return "image/" + i.Format
}

// InspectImage reads just enough of r to learn the image format and
// dimensions. Callers that go on to forward the file must seek back to the
// start.
func InspectImage(r io.Reader) (ImageInfo, error) {
	config, format, err := image.DecodeConfig(r)
	if err != nil {
		return ImageInfo{}, ErrUnsupportedImage
	}
	if config.Width == 0 || config.Height == 0 {
		return ImageInfo{}, ErrEmptyImage
	}
	return ImageInfo{
		Format: format,
		Width:  config.Width,
		Height: config.Height,
	}, nil
}

// VideoExtension derives the extension the platform stores a video under
// from its MIME type, so "video/mp4" gives "mp4". When the browser sent no
// useful type, the type implied by the filename is used instead.
func VideoExtension(contentType string, filename string) (string, error) {
	mediaType := ""
	if contentType != "" {
		parsed, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			mediaType = parsed
		}
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		if byName := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byName != "" {
			parsed, _, err := mime.ParseMediaType(byName)
			if err == nil {
				mediaType = parsed
			}
		}
	}

	kind, sub, found := strings.Cut(mediaType, "/")
	if !found || kind != "video" || sub == "" {
		return "", oops.New(ErrNotVideo, "cannot upload %q (%s) as a video", filename, contentType)
	}
	return sub, nil
}

// VideoContentType is the inverse of VideoExtension.
func VideoContentType(ext string) string {
	return "video/" + strings.TrimPrefix(ext, ".")
}
