// Package devs3 is a minimal S3 stand-in for local development. It stores
// objects as plain files so HLS playlists produced by a local transcoder can
// be served to the watch page without a real bucket.
package devs3

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"git.coderun.dev/coderun/coderun/src/logging"
)

// Handler serves GET, HEAD and PUT for path-style requests of the form
// /{bucket}/{key}. Slashes in keys are flattened so every bucket is a single
// directory under root.
func Handler(root string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket, key := bucketKey(r.URL.Path)
		logging.Debug().
			Str("method", r.Method).
			Str("bucket", bucket).
			Str("key", key).
			Msg("devs3 request")

		if bucket == "" || strings.Contains(bucket, "..") || strings.Contains(key, "..") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodPut:
			err := os.MkdirAll(filepath.Join(root, bucket), fs.ModePerm)
			if err == nil && key != "" {
				err = writeObject(filepath.Join(root, bucket, key), r.Body)
			}
			if err != nil {
				logging.Error().Err(err).Msg("devs3 failed to store object")
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Header().Set("Location", fmt.Sprintf("/%s", bucket))
			w.WriteHeader(http.StatusOK)
		case http.MethodGet, http.MethodHead:
			path := filepath.Join(root, bucket, key)
			info, err := os.Stat(path)
			if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
				w.Header().Set("Content-Type", "application/xml")
				w.WriteHeader(http.StatusNotFound)
				if r.Method == http.MethodGet {
					fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Key>%s</Key></Error>`, key)
				}
				return
			} else if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
			w.Header().Set("Last-Modified", info.ModTime().UTC().Format(http.TimeFormat))
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusOK)
				return
			}
			f, err := os.Open(path)
			if err != nil {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			defer f.Close()
			_, _ = io.Copy(w, f)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func writeObject(path string, body io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, body)
	return err
}

func bucketKey(path string) (string, string) {
	path = strings.TrimPrefix(path, "/")
	slashIdx := strings.IndexByte(path, '/')
	if slashIdx == -1 {
		return path, ""
	}
	return path[:slashIdx], strings.ReplaceAll(path[slashIdx+1:], "/", "~")
}

// ObjectPath is where Handler keeps the object with the given key.
func ObjectPath(root, bucket, key string) string {
	return filepath.Join(root, bucket, strings.ReplaceAll(key, "/", "~"))
}
