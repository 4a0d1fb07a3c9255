// Package api is the client for the CODE:RUN platform API. Every page of the
// website reads and writes through it; the website itself stores nothing.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"git.coderun.dev/coderun/coderun/src/config"
	"git.coderun.dev/coderun/coderun/src/logging"
	"git.coderun.dev/coderun/coderun/src/metrics"
	"git.coderun.dev/coderun/coderun/src/oops"
)

// Error responses are read in full for logging, but no further than this.
const maxErrorBody = 64 * 1024

type Client struct {
	BaseUrl   string
	UserAgent string
	HTTP      *http.Client

	// Sent as a bearer token when non-empty.
	Token string
}

func NewClient(cfg config.ApiConfig) *Client {
	return &Client{
		BaseUrl:   strings.TrimRight(cfg.BaseUrl, "/"),
		UserAgent: cfg.UserAgent,
		HTTP:      &http.Client{Timeout: cfg.Timeout},
	}
}

// WithToken returns a copy of the client that authorizes as the given user.
func (c *Client) WithToken(token string) *Client {
	copied := *c
	copied.Token = token
	return &copied
}

func (c *Client) makeRequest(ctx context.Context, method string, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseUrl+path, body)
	if err != nil {
		return nil, oops.New(err, "failed to build API request")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and turns any non-2xx response into an *Error. On success the
// caller owns the response body.
func (c *Client) do(ctx context.Context, name string, req *http.Request) (*http.Response, error) {
	logger := logging.ExtractLogger(ctx)
	start := time.Now()

	res, err := c.HTTP.Do(req)
	if err != nil {
		metrics.ObserveApiRequest(name, 0, time.Since(start))
		logger.Warn().Err(err).Str("name", name).Msg("API request failed")
		return nil, oops.New(err, "%s: request to the API failed", name)
	}
	metrics.ObserveApiRequest(name, res.StatusCode, time.Since(start))

	if res.StatusCode >= 400 {
		defer res.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		apiErr := &Error{
			Operation:  name,
			StatusCode: res.StatusCode,
			Detail:     parseDetail(body),
		}
		logErrorResponse(ctx, name, req, apiErr)
		return nil, apiErr
	}

	logger.Debug().
		Str("name", name).
		Int("status", res.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("API request")
	return res, nil
}

// callJSON sends reqBody (if any) as JSON and decodes the response into
// result (if any).
func (c *Client) callJSON(ctx context.Context, name string, method string, path string, reqBody interface{}, result interface{}) error {
	var bodyReader io.Reader
	if reqBody != nil {
		bodyBytes, err := json.Marshal(reqBody)
		if err != nil {
			return oops.New(err, "%s: failed to marshal request", name)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := c.makeRequest(ctx, method, path, bodyReader)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.do(ctx, name, req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if result == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return oops.New(err, "%s: failed to read API response", name)
	}
	err = json.Unmarshal(bodyBytes, result)
	if err != nil {
		return oops.New(err, "%s: failed to unmarshal API response", name)
	}
	return nil
}

// uploadFile streams file to the API as multipart/form-data under the field
// name "file". The body is produced through a pipe so large videos are never
// held in memory.
func (c *Client) uploadFile(ctx context.Context, name string, path string, file File) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(file.Filename)))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := mw.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, file.Body)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()
	defer pr.Close()

	req, err := c.makeRequest(ctx, http.MethodPost, path, pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := c.do(ctx, name, req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	return nil
}

// Ping checks that the API answers at all. Used by the health monitor and the
// checkapi command.
func (c *Client) Ping(ctx context.Context, path string) error {
	return c.callJSON(ctx, "Ping", http.MethodGet, path, nil, nil)
}

func pathEscape(s string) string {
	return url.PathEscape(s)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func logErrorResponse(ctx context.Context, name string, req *http.Request, apiErr *Error) {
	logger := logging.ExtractLogger(ctx)
	event := logger.Warn()
	if apiErr.StatusCode >= 500 {
		event = logger.Error()
	}
	event.
		Str("name", name).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", apiErr.StatusCode).
		Str("detail", apiErr.Detail).
		Msg("API returned an error")
}
