package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"git.coderun.dev/coderun/coderun/src/config"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.ApiConfig{
		BaseUrl:   srv.URL + "/",
		UserAgent: "test-agent",
		Timeout:   5 * time.Second,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLogin(t *testing.T) {
	var gotBody LoginRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/login", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		writeJSON(w, 200, map[string]interface{}{
			"token": "T",
			"user":  map[string]interface{}{"id": 3, "email": "u@test.com", "active": true},
		})
	})

	res, err := c.Login(context.Background(), LoginRequest{Email: "u@test.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "T", res.Token)
	assert.True(t, res.User.Active)
	assert.Equal(t, LoginRequest{Email: "u@test.com", Password: "secret"}, gotBody)
}

func TestBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		writeJSON(w, 200, map[string]interface{}{"data": map[string]interface{}{"id": 7, "title": "T", "content": "C"}})
	})

	authed := c.WithToken("abc")
	assert.Empty(t, c.Token, "WithToken must not modify the original client")

	article, err := authed.GetArticle(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, &Article{ID: 7, Title: "T", Content: "C"}, article)
}

func TestErrors(t *testing.T) {
	t.Run("invalid credentials", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 401, map[string]string{"detail": InvalidCredentialsDetail})
		})
		_, err := c.GetVideoDetail(context.Background(), 1)
		require.Error(t, err)
		assert.True(t, IsInvalidCredentials(err))

		var apiErr *Error
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, 401, apiErr.StatusCode)
		assert.Equal(t, "Get Video", apiErr.Operation)
	})
	t.Run("other 401 is not invalid credentials", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 401, map[string]string{"detail": "Incorrect user"})
		})
		_, err := c.Login(context.Background(), LoginRequest{})
		require.Error(t, err)
		assert.False(t, IsInvalidCredentials(err))
		assert.Contains(t, err.Error(), "Incorrect user")
	})
	t.Run("validation detail list", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, 422, map[string]interface{}{
				"detail": []map[string]interface{}{
					{"loc": []string{"body", "email"}, "msg": "field required"},
					{"loc": []string{"body", "name"}, "msg": "too short"},
				},
			})
		})
		_, err := c.Signup(context.Background(), SignupRequest{})
		var apiErr *Error
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, "field required; too short", apiErr.Detail)
	})
	t.Run("not found", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(404)
			_, _ = io.WriteString(w, "nope")
		})
		_, err := c.GetArticle(context.Background(), 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})
	t.Run("transport failure", func(t *testing.T) {
		c := NewClient(config.ApiConfig{BaseUrl: "http://127.0.0.1:1", Timeout: time.Second})
		err := c.Ping(context.Background(), "/openapi.json")
		require.Error(t, err)
		var apiErr *Error
		assert.False(t, errors.As(err, &apiErr))
	})
}

func TestCheckEmailAvailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/taken@test.com") {
			writeJSON(w, 400, map[string]string{"detail": "Duplicated e-mail"})
			return
		}
		writeJSON(w, 200, map[string]string{"data": "free@test.com"})
	})

	assert.NoError(t, c.CheckEmailAvailable(context.Background(), "free@test.com"))
	assert.ErrorIs(t, c.CheckEmailAvailable(context.Background(), "taken@test.com"), ErrConflict)
}

func TestResendVerification(t *testing.T) {
	answer := "success"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/emailconfirm/message/u@test.com", r.URL.Path)
		writeJSON(w, 200, map[string]string{"data": answer})
	})

	assert.NoError(t, c.ResendVerification(context.Background(), "u@test.com"))
	answer = "fail"
	assert.ErrorIs(t, c.ResendVerification(context.Background(), "u@test.com"), ErrTooManyRequests)
}

func TestGetTags(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tag/language":
			writeJSON(w, 200, map[string]interface{}{"data": []map[string]interface{}{
				{"id": 1, "language_name": "Python"},
				{"id": 2, "language_name": "Java"},
			}})
		case "/api/tag/subject":
			writeJSON(w, 200, map[string]interface{}{"data": []map[string]interface{}{
				{"id": 4, "language_name": "wrong field"},
			}})
		default:
			writeJSON(w, 200, map[string]interface{}{"data": []interface{}{}})
		}
	})

	langs, err := c.GetLanguageTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Tag{{ID: 1, Name: "Python"}, {ID: 2, Name: "Java"}}, langs)

	algos, err := c.GetAlgorithmTags(context.Background())
	require.NoError(t, err)
	assert.Empty(t, algos)

	_, err = c.GetSubjectTags(context.Background())
	assert.Error(t, err)
}

func TestCreateVideoContent(t *testing.T) {
	var got map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, 200, map[string]interface{}{"data": map[string]interface{}{"id": 42}})
	})

	created, err := c.CreateVideoContent(context.Background(), CreateVideoRequest{Title: "t", Content: "c"})
	require.NoError(t, err)
	assert.Equal(t, 42, created.ID)

	want := map[string]interface{}{
		"title":             "t",
		"content":           "c",
		"language_tag_id":   nil,
		"algorithm_tag_ids": []interface{}{},
		"subject_tag_ids":   []interface{}{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}
}

func TestUploadVideo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/video/42/mp4", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		contents, _ := io.ReadAll(f)
		assert.Equal(t, "clip.mp4", header.Filename)
		assert.Equal(t, "video/mp4", header.Header.Get("Content-Type"))
		assert.Equal(t, "not really a video", string(contents))
		writeJSON(w, 200, map[string]string{"data": "success"})
	})

	err := c.UploadVideo(context.Background(), 42, "mp4", File{
		Filename:    "clip.mp4",
		ContentType: "video/mp4",
		Body:        strings.NewReader("not really a video"),
	})
	assert.NoError(t, err)
}

func TestUploadRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		writeJSON(w, 500, map[string]string{"detail": "disk full"})
	})

	err := c.UploadThumbnail(context.Background(), 1, File{
		Filename: "thumb.png",
		Body:     strings.NewReader(strings.Repeat("x", 1<<20)),
	})
	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "disk full", apiErr.Detail)
}

func TestGetVideoComments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data": null}`)
	})
	comments, err := c.GetVideoComments(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, comments)
	assert.Empty(t, comments)
}
