package website

import (
	"bytes"
	"context"
	"encoding/json"
	"html/template"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"git.coderun.dev/coderun/coderun/src/api"
	"git.coderun.dev/coderun/coderun/src/auth"
	"git.coderun.dev/coderun/coderun/src/config"
	"git.coderun.dev/coderun/coderun/src/crurl"
	"git.coderun.dev/coderun/coderun/src/forms"
	"git.coderun.dev/coderun/coderun/src/mockapi"
	"git.coderun.dev/coderun/coderun/src/templates"
	"git.coderun.dev/coderun/coderun/src/validate"
	"git.coderun.dev/coderun/coderun/src/videostream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSite struct {
	mock    *mockapi.Server
	sealer  *auth.Sealer
	handler http.Handler
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	templates.Init()

	mock := mockapi.New()
	apiServer := httptest.NewServer(mock)
	t.Cleanup(apiServer.Close)

	sealer, err := auth.NewSealer("")
	require.NoError(t, err)
	videos, err := videostream.New(context.Background(), config.VideoConfig{StreamBaseUrl: "http://stream.test"})
	require.NoError(t, err)

	return &testSite{
		mock:   mock,
		sealer: sealer,
		handler: NewWebsiteRoutes(&Deps{
			Api:    api.NewClient(config.ApiConfig{BaseUrl: apiServer.URL, Timeout: 5 * time.Second}),
			Sealer: sealer,
			Videos: videos,
		}),
	}
}

// loggedIn returns a session cookie for a fresh active account.
func (s *testSite) loggedIn(t *testing.T) *http.Cookie {
	t.Helper()
	token := s.mock.AddUser("ada@example.com", "hunter22", "ada", true)
	require.NotEmpty(t, token)
	return s.sealer.NewTokenCookie(token, time.Now())
}

func (s *testSite) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testSite) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	return s.do(httptest.NewRequest(http.MethodGet, path, nil), cookies...)
}

func (s *testSite) postForm(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req, cookies...)
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestPublicPages(t *testing.T) {
	site := newTestSite(t)

	for _, path := range []string{"/", "/community", "/account", "/healthz", "/assets/style.css", "/assets/chroma.css"} {
		rec := site.get(path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Header().Get(RequestIDHeader), path)
	}

	rec := site.get("/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNeedsAuth(t *testing.T) {
	site := newTestSite(t)

	for _, path := range []string{"/upload", "/watch/1", "/community/1/edit"} {
		rec := site.get(path)
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, crurl.BuildAccount(path), rec.Header().Get("Location"), path)
	}
}

func TestLogin(t *testing.T) {
	t.Run("active account", func(t *testing.T) {
		site := newTestSite(t)
		site.mock.AddUser("grace@example.com", "cobol", "grace", true)

		rec := site.postForm("/account/login", url.Values{"email": {"grace@example.com"}, "password": {"cobol"}})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, crurl.BuildLanding(), rec.Header().Get("Location"))

		cookie := findCookie(rec, auth.TokenCookieName)
		require.NotNil(t, cookie)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(cookie)
		token, err := site.sealer.TokenFromRequest(req)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("keeps a local redirect", func(t *testing.T) {
		site := newTestSite(t)
		site.mock.AddUser("grace@example.com", "cobol", "grace", true)

		rec := site.postForm("/account/login", url.Values{
			"email":    {"grace@example.com"},
			"password": {"cobol"},
			"redirect": {"/watch/2"},
		})
		assert.Equal(t, "/watch/2", rec.Header().Get("Location"))
	})

	t.Run("unverified account", func(t *testing.T) {
		site := newTestSite(t)
		site.mock.AddUser("grace@example.com", "cobol", "grace", false)

		rec := site.postForm("/account/login", url.Values{"email": {"grace@example.com"}, "password": {"cobol"}})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), template.HTMLEscapeString(msgVerifyBeforeLogin))
		assert.Contains(t, rec.Body.String(), `name="login_email" value="grace@example.com"`)
		assert.Nil(t, findCookie(rec, auth.TokenCookieName))
	})

	t.Run("empty fields", func(t *testing.T) {
		site := newTestSite(t)

		rec := site.postForm("/account/login", url.Values{})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), forms.MsgEnterEmail)
	})

	t.Run("wrong password", func(t *testing.T) {
		site := newTestSite(t)
		site.mock.AddUser("grace@example.com", "cobol", "grace", true)

		rec := site.postForm("/account/login", url.Values{"email": {"grace@example.com"}, "password": {"fortran"}})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "check your email and password")
		assert.Nil(t, findCookie(rec, auth.TokenCookieName))
	})
}

func TestSignup(t *testing.T) {
	site := newTestSite(t)

	rec := site.postForm("/account/signup", url.Values{
		"email":            {"new@example.com"},
		"nickname":         {"newbie"},
		"password":         {"secret"},
		"password_confirm": {"secret"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), msgVerifyAfterSignup)

	user, ok := site.mock.User("new@example.com")
	require.True(t, ok)
	assert.Equal(t, "newbie", user.Name)
	assert.False(t, user.Active)

	t.Run("mismatched passwords never reach the API", func(t *testing.T) {
		rec := site.postForm("/account/signup", url.Values{
			"email":            {"other@example.com"},
			"nickname":         {"other"},
			"password":         {"secret"},
			"password_confirm": {"secrte"},
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		_, ok := site.mock.User("other@example.com")
		assert.False(t, ok)
	})
}

func TestEmailCheck(t *testing.T) {
	site := newTestSite(t)
	site.mock.AddUser("taken@example.com", "pw", "taken", true)

	rec := site.postForm("/account/emailcheck", url.Values{"email": {"taken@example.com"}})
	assert.Contains(t, rec.Body.String(), msgEmailTaken)

	rec = site.postForm("/account/emailcheck", url.Values{"email": {"free@example.com"}})
	assert.Contains(t, rec.Body.String(), msgEmailAvailable)

	rec = site.postForm("/account/emailcheck", url.Values{"email": {"not-an-email"}})
	assert.Contains(t, rec.Body.String(), forms.MsgInvalidEmail)
}

func TestResendVerificationNotices(t *testing.T) {
	site := newTestSite(t)
	site.mock.AddUser("grace@example.com", "cobol", "grace", false)

	rec := site.postForm("/account/resend", url.Values{"login_email": {"grace@example.com"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	notices := findCookie(rec, NoticesCookieName)
	require.NotNil(t, notices)

	// The notice shows on the next page and is then cleared.
	rec = site.get("/account", notices)
	assert.Contains(t, rec.Body.String(), msgResendSent)
	cleared := findCookie(rec, NoticesCookieName)
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestTemporaryPassword(t *testing.T) {
	site := newTestSite(t)
	site.mock.AddUser("grace@example.com", "cobol", "grace", true)

	rec := site.postForm("/account/password", url.Values{"email": {"grace@example.com"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	rec = site.get("/account", findCookie(rec, NoticesCookieName))
	assert.Contains(t, rec.Body.String(), msgPasswordSent)

	user, ok := site.mock.User("grace@example.com")
	require.True(t, ok)
	assert.NotEqual(t, "cobol", user.Password)

	rec = site.postForm("/account/password", url.Values{"email": {"not an email"}})
	rec = site.get("/account", findCookie(rec, NoticesCookieName))
	assert.Contains(t, rec.Body.String(), forms.MsgInvalidEmail)
}

func TestValidateSignup(t *testing.T) {
	site := newTestSite(t)

	statuses := func(form url.Values) map[string]string {
		t.Helper()
		rec := site.postForm("/account/validate", form)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var result map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		return result
	}

	assert.Equal(t,
		map[string]string{"email": validate.Valid.String(), "password": validate.Valid.String()},
		statuses(url.Values{"email": {"a.b@test.com"}, "password": {"pw"}, "password_confirm": {"pw"}}))
	assert.Equal(t,
		map[string]string{"email": validate.Invalid.String(), "password": validate.Invalid.String()},
		statuses(url.Values{"email": {"a..b@test"}, "password": {"pw"}, "password_confirm": {"wp"}}))

	// The signup form posts to it while the user types.
	rec := site.get("/account")
	assert.Contains(t, rec.Body.String(), `data-validate-url="`+crurl.BuildValidateSignup()+`"`)
	assert.Contains(t, rec.Body.String(), "form.dataset.validateUrl")
}

func TestLogout(t *testing.T) {
	site := newTestSite(t)
	session := site.loggedIn(t)

	rec := site.postForm("/logout", nil, session)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	cookie := findCookie(rec, auth.TokenCookieName)
	require.NotNil(t, cookie)
	assert.Less(t, cookie.MaxAge, 0)
}

func TestWatch(t *testing.T) {
	site := newTestSite(t)
	session := site.loggedIn(t)

	rec := site.get("/watch/1", session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http://stream.test/video/1_VIDEO.m3u8")

	rec = site.get("/watch/404", session)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	t.Run("comments fail", func(t *testing.T) {
		site.mock.FailPath = "/api/video/1/comments"
		defer func() { site.mock.FailPath = "" }()

		rec := site.get("/watch/1", session)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "http://stream.test/video/1_VIDEO.m3u8")
		assert.Contains(t, rec.Body.String(), template.HTMLEscapeString(msgCommentsFailed))
		assert.Contains(t, rec.Body.String(), "No comments yet.")
	})

	t.Run("rejected token logs out", func(t *testing.T) {
		site.mock.RevokeTokens()

		rec := site.get("/watch/1", session)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, crurl.BuildAccount("/watch/1"), rec.Header().Get("Location"))

		cookie := findCookie(rec, auth.TokenCookieName)
		require.NotNil(t, cookie)
		assert.Less(t, cookie.MaxAge, 0)
		assert.NotNil(t, findCookie(rec, NoticesCookieName))
	})

	t.Run("unreadable cookie", func(t *testing.T) {
		rec := site.get("/watch/1", &http.Cookie{Name: auth.TokenCookieName, Value: "garbage"})
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		cookie := findCookie(rec, auth.TokenCookieName)
		require.NotNil(t, cookie)
		assert.Less(t, cookie.MaxAge, 0)
	})
}

func TestArticleEdit(t *testing.T) {
	site := newTestSite(t)
	session := site.loggedIn(t)

	rec := site.get("/community/1/edit", session)
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("empty fields", func(t *testing.T) {
		before, _ := site.mock.Article(1)
		rec := site.postForm("/community/1/edit", url.Values{"title": {""}, "content": {""}}, session)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), forms.MsgFillEveryField)

		after, _ := site.mock.Article(1)
		assert.Equal(t, before, after)
	})

	t.Run("saves", func(t *testing.T) {
		rec := site.postForm("/community/1/edit", url.Values{"title": {"Graphs"}, "content": {"BFS and DFS"}}, session)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, crurl.BuildCommunity(), rec.Header().Get("Location"))

		article, _ := site.mock.Article(1)
		assert.Equal(t, "Graphs", article.Title)
		assert.Equal(t, "BFS and DFS", article.Content)
	})

	t.Run("missing article", func(t *testing.T) {
		rec := site.get("/community/99/edit", session)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUploadTagActions(t *testing.T) {
	site := newTestSite(t)
	session := site.loggedIn(t)

	rec := site.get("/upload", session)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = site.postForm("/upload", url.Values{"action": {"course:algorithm"}, "title": {"Kept"}}, session)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="course" value="algorithm"`)
	assert.Contains(t, body, "Kept")

	rec = site.postForm("/upload", url.Values{
		"action": {"language:2"},
		"course": {"algorithm"},
	}, session)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="language" value="2"`)
}

func uploadRequest(t *testing.T, fields url.Values, withFiles bool) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, values := range fields {
		for _, v := range values {
			require.NoError(t, mw.WriteField(name, v))
		}
	}

	if withFiles {
		img := image.NewRGBA(image.Rect(0, 0, 4, 4))
		img.Set(1, 1, color.RGBA{R: 255, A: 255})
		thumb, err := mw.CreateFormFile("thumbnail", "thumb.png")
		require.NoError(t, err)
		require.NoError(t, png.Encode(thumb, img))

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="video"; filename="clip.mp4"`)
		header.Set("Content-Type", "video/mp4")
		video, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = video.Write([]byte("not really an mp4"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadSubmit(t *testing.T) {
	fields := url.Values{
		"action":    {actionSubmit},
		"title":     {"Quicksort"},
		"content":   {"Partitioning, step by step"},
		"course":    {"algorithm"},
		"language":  {"1"},
		"algorithm": {"1"},
	}

	t.Run("success", func(t *testing.T) {
		site := newTestSite(t)
		session := site.loggedIn(t)
		before := site.mock.VideoCount()

		rec := site.do(uploadRequest(t, fields, true), session)
		require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())

		id := before + 1
		assert.Equal(t, crurl.BuildWatch(id), rec.Header().Get("Location"))
		video, ok := site.mock.Video(id)
		require.True(t, ok)
		assert.Equal(t, "Quicksort", video.Title)
		assert.ElementsMatch(t, []string{"thumbnail", "video.mp4"}, video.Files)
	})

	t.Run("missing files", func(t *testing.T) {
		site := newTestSite(t)
		session := site.loggedIn(t)
		before := site.mock.VideoCount()

		rec := site.do(uploadRequest(t, fields, false), session)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, before, site.mock.VideoCount())
	})

	t.Run("metadata failure uploads no files", func(t *testing.T) {
		site := newTestSite(t)
		session := site.loggedIn(t)
		site.mock.FailPath = "/api/video"
		before := site.mock.VideoCount()

		rec := site.do(uploadRequest(t, fields, true), session)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "We couldn&#39;t upload your video")
		assert.Equal(t, before, site.mock.VideoCount())
	})
}

func TestSafeRedirect(t *testing.T) {
	assert.Equal(t, "/watch/1", safeRedirect("/watch/1"))
	assert.Equal(t, crurl.BuildLanding(), safeRedirect(""))
	assert.Equal(t, crurl.BuildLanding(), safeRedirect("https://evil.example"))
	assert.Equal(t, crurl.BuildLanding(), safeRedirect("//evil.example"))
	assert.Equal(t, crurl.BuildLanding(), safeRedirect(`/\evil.example`))
}

func TestNoticeCookieRoundTrip(t *testing.T) {
	var res ResponseData
	res.AddFutureNotice(noticeSuccess, "Saved; all good, 100%")
	res.AddFutureNotice(noticeWarn, `<b>"quoted"</b>`)

	c := &RequestContext{Req: httptest.NewRequest(http.MethodGet, "/", nil)}
	serialized := serializeNoticesForCookie(c, res.FutureNotices)
	assert.NotContains(t, serialized, ";")
	assert.NotContains(t, serialized, " ")

	notices := deserializeNoticesFromCookie(serialized)
	require.Len(t, notices, 2)
	assert.Equal(t, noticeSuccess, notices[0].Class)
	assert.Equal(t, "Saved; all good, 100%", string(notices[0].Content))
	assert.Equal(t, res.FutureNotices[1].Content, notices[1].Content)
}

func TestCrossSitePost(t *testing.T) {
	site := newTestSite(t)
	site.mock.AddUser("grace@example.com", "cobol", "grace", true)
	form := url.Values{"email": {"grace@example.com"}, "password": {"cobol"}}

	post := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/account/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Origin", origin)
		return site.do(req)
	}

	rec := post("https://evil.example")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, findCookie(rec, auth.TokenCookieName))

	rec = post("http://" + httptest.DefaultRemoteAddr)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post("http://example.com")
	assert.NotNil(t, findCookie(rec, auth.TokenCookieName))
}
