package website

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"

	"git.coderun.dev/coderun/coderun/src/api"
	"git.coderun.dev/coderun/coderun/src/config"
	"git.coderun.dev/coderun/coderun/src/crurl"
	"git.coderun.dev/coderun/coderun/src/forms"
	"git.coderun.dev/coderun/coderun/src/media"
	"git.coderun.dev/coderun/coderun/src/oops"
	"git.coderun.dev/coderun/coderun/src/templates"
	"golang.org/x/sync/errgroup"
)

type UploadTemplateData struct {
	templates.BaseData

	SubmitUrl string
	Title     string
	Content   string

	Courses    []templates.Course
	Languages  []templates.Tag
	Algorithms []templates.Tag
	Subjects   []templates.Tag

	ShowLanguages  bool
	ShowAlgorithms bool
	ShowSubjects   bool

	// The current selection, echoed back on every post.
	SelectionFields []HiddenField

	MaxTitleLength    int
	MaxContentLength  int
	MaxThumbnailBytes int64
	MaxVideoBytes     int64
}

type HiddenField struct {
	Name  string
	Value string
}

const (
	actionSubmit = "submit"

	// Form fields beyond the files themselves are small.
	uploadMemoryLimit = 1 << 20
)

// loadTagCatalog fetches the three tag lists side by side. Each list is
// fetched exactly once per page load.
func loadTagCatalog(c *RequestContext) (api.TagCatalog, error) {
	var catalog api.TagCatalog

	group, ctx := errgroup.WithContext(c)
	fetch := func(kind api.TagKind, dest *[]api.Tag) {
		group.Go(func() error {
			end := c.Perf.StartBlock("API", fmt.Sprintf("Fetch %s tags", kind))
			defer end()

			tags, err := c.Api.GetTags(ctx, kind)
			if err != nil {
				return err
			}
			*dest = tags
			return nil
		})
	}
	fetch(api.TagLanguage, &catalog.Languages)
	fetch(api.TagAlgorithm, &catalog.Algorithms)
	fetch(api.TagSubject, &catalog.Subjects)

	if err := group.Wait(); err != nil {
		return api.TagCatalog{}, err
	}
	return catalog, nil
}

func getUploadData(c *RequestContext, form forms.UploadForm, catalog api.TagCatalog) UploadTemplateData {
	sel := form.Selection

	var fields []HiddenField
	values := forms.SelectionValues(sel)
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range values[name] {
			fields = append(fields, HiddenField{Name: name, Value: v})
		}
	}

	return UploadTemplateData{
		BaseData:  getBaseData(c, "Upload"),
		SubmitUrl: crurl.BuildUpload(),
		Title:     form.Title,
		Content:   form.Content,

		Courses:    templates.CoursesToTemplate(sel),
		Languages:  templates.TagsToTemplate(catalog.Languages, sel.HasLanguage),
		Algorithms: templates.TagsToTemplate(catalog.Algorithms, sel.AlgorithmIDs.Contains),
		Subjects:   templates.TagsToTemplate(catalog.Subjects, sel.SubjectIDs.Contains),

		ShowLanguages:  sel.ShowsLanguageTags(),
		ShowAlgorithms: sel.ShowsAlgorithmTags(),
		ShowSubjects:   sel.ShowsSubjectTags(),

		SelectionFields: fields,

		MaxTitleLength:    forms.MaxTitleLength,
		MaxContentLength:  forms.MaxContentLength,
		MaxThumbnailBytes: config.Config.Upload.MaxThumbnailBytes,
		MaxVideoBytes:     config.Config.Upload.MaxVideoBytes,
	}
}

// renderUpload loads the tag catalog and renders the page. notice, if set,
// is shown as a failure.
func renderUpload(c *RequestContext, form forms.UploadForm, notice string) ResponseData {
	catalog, err := loadTagCatalog(c)
	if err != nil {
		if api.IsInvalidCredentials(err) {
			return forceLogout(c, err)
		}
		c.Logger.Warn().Err(err).Msg("failed to load tag catalog")
	}

	data := getUploadData(c, form, catalog)
	if err != nil {
		data.AddImmediateNotice(noticeFailure, "We couldn't load the tags. Please reload the page.")
	}
	if notice != "" {
		data.AddImmediateNotice(noticeFailure, notice)
	}

	var res ResponseData
	res.MustWriteTemplate("upload.html", data, c.Perf)
	return res
}

func UploadPage(c *RequestContext) ResponseData {
	return renderUpload(c, forms.UploadForm{}, "")
}

func UploadSubmit(c *RequestContext) ResponseData {
	maxBody := config.Config.Upload.MaxThumbnailBytes + config.Config.Upload.MaxVideoBytes + uploadMemoryLimit
	c.Req.Body = http.MaxBytesReader(c.Res, c.Req.Body, maxBody)

	var form url.Values
	err := c.Req.ParseMultipartForm(uploadMemoryLimit)
	switch {
	case err == nil:
		defer c.Req.MultipartForm.RemoveAll()
		form = c.Req.PostForm
	case errors.Is(err, http.ErrNotMultipart):
		form, err = c.GetFormValues()
		if err != nil {
			return c.RejectRequest("Invalid form data")
		}
	default:
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return c.RejectRequest(fmt.Sprintf("Uploads can be at most %d bytes.", maxBody))
		}
		return c.RejectRequest("Invalid form data")
	}

	upload := forms.ParseUpload(form)

	action := form.Get("action")
	if action != "" && action != actionSubmit {
		next, err := upload.Apply(action)
		if err != nil {
			c.Logger.Warn().Err(err).Str("action", action).Msg("ignoring bad tag action")
		}
		return renderUpload(c, next, "")
	}

	att, notice := readAttachments(c)
	defer closeAttachments(att)
	if notice != "" {
		return renderUpload(c, upload, notice)
	}

	req, att, err := upload.ComposeUpload(att)
	if err != nil {
		return renderUpload(c, upload, userMessage(err))
	}

	videoID, err := forms.SubmitUpload(c, c.Api, req, att)
	if err != nil {
		if api.IsInvalidCredentials(err) {
			return forceLogout(c, err)
		}

		var uploadErr *forms.UploadError
		if errors.As(err, &uploadErr) && uploadErr.Phase != forms.PhaseMetadata {
			c.Logger.Error().Err(err).Int("video_id", uploadErr.VideoID).Msg("video record created but its files were not")
			return renderUpload(c, upload, fmt.Sprintf("The video was created, but its %s could not be uploaded.", uploadErr.Phase))
		}
		c.Logger.Warn().Err(err).Msg("failed to create video")
		return renderUpload(c, upload, "We couldn't upload your video. Please try again.")
	}

	res := c.Redirect(crurl.BuildWatch(videoID), http.StatusSeeOther)
	res.AddFutureNotice(noticeSuccess, "Your video was uploaded. It can be watched once processing finishes.")
	return res
}

// readAttachments pulls the thumbnail and video out of the multipart form.
// Missing files are left nil for the form to report. A non-empty notice
// means a file was present but unusable. Whatever was opened is returned
// either way; see closeAttachments.
func readAttachments(c *RequestContext) (forms.Attachments, string) {
	var att forms.Attachments

	thumb, thumbHeader, err := openFormFile(c, "thumbnail")
	if err != nil {
		c.Logger.Warn().Err(err).Msg("failed to read thumbnail")
		return att, "We couldn't read the thumbnail."
	}
	if thumb != nil {
		att.Thumbnail = &api.File{
			Filename: thumbHeader.Filename,
			Size:     thumbHeader.Size,
			Body:     thumb,
		}
		if thumbHeader.Size > config.Config.Upload.MaxThumbnailBytes {
			return att, fmt.Sprintf("Thumbnails can be at most %d bytes.", config.Config.Upload.MaxThumbnailBytes)
		}

		end := c.Perf.StartBlock("IMAGE", "Decoding thumbnail")
		info, err := media.InspectImage(thumb)
		end()
		if err != nil {
			return att, "Thumbnails must be PNG, JPEG, GIF, BMP or WebP images."
		}
		if _, err := thumb.Seek(0, io.SeekStart); err != nil {
			c.Logger.Error().Err(err).Msg("failed to rewind thumbnail")
			return att, "We couldn't read the thumbnail."
		}
		att.Thumbnail.ContentType = info.ContentType()
	}

	video, videoHeader, err := openFormFile(c, "video")
	if err != nil {
		c.Logger.Warn().Err(err).Msg("failed to read video")
		return att, "We couldn't read the video."
	}
	if video != nil {
		att.Video = &api.File{
			Filename: videoHeader.Filename,
			Size:     videoHeader.Size,
			Body:     video,
		}
		if videoHeader.Size > config.Config.Upload.MaxVideoBytes {
			return att, fmt.Sprintf("Videos can be at most %d bytes.", config.Config.Upload.MaxVideoBytes)
		}

		ext, err := media.VideoExtension(videoHeader.Header.Get("Content-Type"), videoHeader.Filename)
		if err != nil {
			c.Logger.Info().Err(err).Msg("rejected video file")
		}
		att.VideoExt = ext
		att.Video.ContentType = media.VideoContentType(ext)
	}

	return att, ""
}

func closeAttachments(att forms.Attachments) {
	for _, f := range []*api.File{att.Thumbnail, att.Video} {
		if f == nil {
			continue
		}
		if closer, ok := f.Body.(io.Closer); ok {
			closer.Close()
		}
	}
}

// openFormFile returns nil without an error when the field is absent or the
// user picked no file.
func openFormFile(c *RequestContext, field string) (multipart.File, *multipart.FileHeader, error) {
	if c.Req.MultipartForm == nil {
		return nil, nil, nil
	}
	headers := c.Req.MultipartForm.File[field]
	if len(headers) == 0 || headers[0].Size == 0 {
		return nil, nil, nil
	}
	f, err := headers[0].Open()
	if err != nil {
		return nil, nil, oops.New(err, "failed to open uploaded %s", field)
	}
	return f, headers[0], nil
}
