package forms

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"

	"git.coderun.dev/coderun/coderun/src/api"
	"git.coderun.dev/coderun/coderun/src/tagselect"
	"git.coderun.dev/coderun/coderun/src/validate"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userMessage(t *testing.T, err error) string {
	t.Helper()
	var formErr *Error
	require.True(t, errors.As(err, &formErr), "expected a form error, got %v", err)
	return formErr.Message
}

func TestConfirmPassword(t *testing.T) {
	creds := Credentials{RawPassword: "hunter2"}

	creds, status := creds.ConfirmPassword("hunter")
	assert.Equal(t, validate.Invalid, status)
	assert.Empty(t, creds.ConfirmedPassword)

	creds, status = creds.ConfirmPassword("hunter2")
	assert.Equal(t, validate.Valid, status)
	assert.Equal(t, "hunter2", creds.ConfirmedPassword)

	// A later mismatch does not erase the confirmed value.
	creds.RawPassword = "changed"
	creds, status = creds.ConfirmPassword("hunter2")
	assert.Equal(t, validate.Invalid, status)
	assert.Equal(t, "hunter2", creds.ConfirmedPassword)
}

func TestComposeSignup(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		creds, status := ParseSignup(url.Values{
			"email":            {" u@test.com "},
			"nickname":         {"runner"},
			"password":         {"secret"},
			"password_confirm": {"secret"},
		})
		assert.Equal(t, validate.Valid, status)

		req, err := creds.ComposeSignup()
		require.NoError(t, err)
		want := api.SignupRequest{Email: "u@test.com", Password: "secret", Name: "runner"}
		if diff := cmp.Diff(want, req); diff != "" {
			t.Errorf("payload mismatch (-want +got):\n%s", diff)
		}
	})
	t.Run("bad email", func(t *testing.T) {
		creds, _ := ParseSignup(url.Values{
			"email": {"a..b@test"}, "nickname": {"n"}, "password": {"p"}, "password_confirm": {"p"},
		})
		_, err := creds.ComposeSignup()
		assert.Equal(t, "Please enter a valid email address.", userMessage(t, err))
	})
	t.Run("unconfirmed password", func(t *testing.T) {
		creds, status := ParseSignup(url.Values{
			"email": {"u@test.com"}, "nickname": {"n"}, "password": {"p"}, "password_confirm": {"q"},
		})
		assert.Equal(t, validate.Invalid, status)
		_, err := creds.ComposeSignup()
		assert.Equal(t, "The passwords don't match.", userMessage(t, err))
	})
	t.Run("empty everything reports the email first", func(t *testing.T) {
		_, err := Credentials{}.ComposeSignup()
		assert.Equal(t, "Please enter your email address.", userMessage(t, err))
	})
}

func TestComposeLogin(t *testing.T) {
	req, err := ParseLogin(url.Values{"email": {"u@test.com"}, "password": {" secret "}}).ComposeLogin()
	require.NoError(t, err)
	assert.Equal(t, api.LoginRequest{Email: "u@test.com", Password: " secret "}, req, "passwords are sent as typed")

	_, err = LoginForm{Email: "u@test.com"}.ComposeLogin()
	assert.Equal(t, "Please enter your password.", userMessage(t, err))
}

func TestCheckSignup(t *testing.T) {
	assert.Equal(t, SignupStatus{Email: validate.Neutral, Password: validate.Neutral}, CheckSignup("", "", ""))
	assert.Equal(t, SignupStatus{Email: validate.Valid, Password: validate.Valid}, CheckSignup("a.b@test.com", "x", "x"))
	assert.Equal(t, SignupStatus{Email: validate.Invalid, Password: validate.Invalid}, CheckSignup("nope", "x", "y"))
}

func TestResendAddress(t *testing.T) {
	assert.Equal(t, "signup@test.com", ResendAddress("signup@test.com", "login@test.com"))
	assert.Equal(t, "login@test.com", ResendAddress("", "login@test.com"))
}

func TestComposeArticle(t *testing.T) {
	draft := ParseArticle(8, url.Values{"title": {"Hello"}, "content": {"  indented"}})
	req, err := draft.ComposeArticle(8)
	require.NoError(t, err)
	assert.Equal(t, api.UpdateArticleRequest{BoardID: 8, Title: "Hello", Content: "  indented"}, req)

	for _, values := range []url.Values{
		{"title": {""}, "content": {"body"}},
		{"title": {"Hello"}, "content": {""}},
		{},
	} {
		_, err := ParseArticle(8, values).ComposeArticle(8)
		assert.Equal(t, MsgFillEveryField, userMessage(t, err))
	}
}

func TestSelectionRoundTrip(t *testing.T) {
	s := tagselect.Selection{}.
		SelectCourse(tagselect.Algorithm).
		ToggleLanguage(2).
		ToggleAlgorithm(9).
		ToggleAlgorithm(4).
		ToggleSubject(1)

	values := SelectionValues(s)
	assert.Equal(t, []string{"4", "9"}, values[FieldAlgorithm])
	assert.Equal(t, s, ParseSelection(values))

	garbage := url.Values{FieldCourse: {"music"}, FieldLanguage: {"x"}, FieldAlgorithm: {"1", "y", "1"}}
	parsed := ParseSelection(garbage)
	assert.Equal(t, tagselect.None, parsed.Course)
	assert.Nil(t, parsed.LanguageID)
	assert.Equal(t, tagselect.Set{1}, parsed.AlgorithmIDs)

	repeated := ParseSelection(url.Values{FieldAlgorithm: {"2", "1", "2"}, FieldSubject: {"3", "3"}})
	assert.Equal(t, tagselect.Set{1, 2}, repeated.AlgorithmIDs)
	assert.Equal(t, tagselect.Set{3}, repeated.SubjectIDs)
	assert.Equal(t, tagselect.Set{1}, repeated.ToggleAlgorithm(2).AlgorithmIDs)
}

func TestUploadApply(t *testing.T) {
	form := ParseUpload(url.Values{"title": {"t"}, FieldAlgorithm: {"5"}})
	form, err := form.Apply("algorithm:5")
	require.NoError(t, err)
	assert.Empty(t, form.Selection.AlgorithmIDs)
	assert.Equal(t, "t", form.Title)

	_, err = form.Apply("bogus")
	assert.Error(t, err)
}

func testAttachments() Attachments {
	return Attachments{
		Thumbnail: &api.File{Filename: "t.png", ContentType: "image/png", Size: 4, Body: strings.NewReader("png!")},
		Video:     &api.File{Filename: "v.mp4", ContentType: "video/mp4", Size: 5, Body: strings.NewReader("video")},
		VideoExt:  "mp4",
	}
}

func TestComposeUpload(t *testing.T) {
	form := UploadForm{
		Title:     "Two pointers",
		Content:   "An introduction",
		Selection: tagselect.Selection{}.ToggleLanguage(1).ToggleAlgorithm(3).ToggleSubject(7),
	}

	req, att, err := form.ComposeUpload(testAttachments())
	require.NoError(t, err)
	lang := 1
	want := api.CreateVideoRequest{
		Title:           "Two pointers",
		Content:         "An introduction",
		LanguageTagID:   &lang,
		AlgorithmTagIDs: []int{3},
		SubjectTagIDs:   []int{7},
	}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "mp4", att.VideoExt)

	t.Run("missing files", func(t *testing.T) {
		_, _, err := form.ComposeUpload(Attachments{})
		assert.Equal(t, "Please choose a video file.", userMessage(t, err))

		att := testAttachments()
		att.Thumbnail = nil
		_, _, err = form.ComposeUpload(att)
		assert.Equal(t, "Please choose a thumbnail image.", userMessage(t, err))
	})
	t.Run("title too long", func(t *testing.T) {
		long := form
		long.Title = strings.Repeat("가", MaxTitleLength+1)
		_, _, err := long.ComposeUpload(testAttachments())
		assert.Contains(t, userMessage(t, err), "at most 50")

		long.Title = strings.Repeat("가", MaxTitleLength)
		_, _, err = long.ComposeUpload(testAttachments())
		assert.NoError(t, err)
	})
}

type fakeUploader struct {
	m sync.Mutex

	createErr    error
	thumbnailErr error
	videoErr     error

	calls []string
}

func (f *fakeUploader) record(call string) {
	f.m.Lock()
	defer f.m.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeUploader) CreateVideoContent(ctx context.Context, req api.CreateVideoRequest) (*api.CreatedVideo, error) {
	f.record("create")
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &api.CreatedVideo{ID: 42}, nil
}

func (f *fakeUploader) UploadThumbnail(ctx context.Context, videoID int, file api.File) error {
	f.record("thumbnail")
	return f.thumbnailErr
}

func (f *fakeUploader) UploadVideo(ctx context.Context, videoID int, ext string, file api.File) error {
	f.record("video:" + ext)
	return f.videoErr
}

func TestSubmitUpload(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		uploader := &fakeUploader{}
		id, err := SubmitUpload(context.Background(), uploader, api.CreateVideoRequest{}, testAttachments())
		require.NoError(t, err)
		assert.Equal(t, 42, id)
		assert.Equal(t, "create", uploader.calls[0])
		assert.ElementsMatch(t, []string{"create", "thumbnail", "video:mp4"}, uploader.calls)
	})
	t.Run("metadata failure skips the files", func(t *testing.T) {
		uploader := &fakeUploader{createErr: errors.New("rejected")}
		id, err := SubmitUpload(context.Background(), uploader, api.CreateVideoRequest{}, testAttachments())
		assert.Zero(t, id)

		var uerr *UploadError
		require.True(t, errors.As(err, &uerr))
		assert.Equal(t, PhaseMetadata, uerr.Phase)
		assert.Zero(t, uerr.VideoID)
		assert.Equal(t, []string{"create"}, uploader.calls)
	})
	t.Run("file failure leaves the record", func(t *testing.T) {
		cause := errors.New("too big")
		uploader := &fakeUploader{videoErr: cause}
		id, err := SubmitUpload(context.Background(), uploader, api.CreateVideoRequest{}, testAttachments())
		assert.Equal(t, 42, id)

		var uerr *UploadError
		require.True(t, errors.As(err, &uerr))
		assert.Equal(t, PhaseVideo, uerr.Phase)
		assert.Equal(t, 42, uerr.VideoID)
		assert.ErrorIs(t, err, cause)
		assert.NotContains(t, uploader.calls[1:], "create", "no retry of phase one")
	})
}
