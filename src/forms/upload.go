package forms

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"git.coderun.dev/coderun/coderun/src/api"
	"git.coderun.dev/coderun/coderun/src/logging"
	"git.coderun.dev/coderun/coderun/src/metrics"
	"git.coderun.dev/coderun/coderun/src/tagselect"
	"git.coderun.dev/coderun/coderun/src/validate"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"
)

const (
	MaxTitleLength   = 50
	MaxContentLength = 1000
)

// Names of the hidden fields that carry the tag selection between requests.
const (
	FieldCourse    = "course"
	FieldLanguage  = "language"
	FieldAlgorithm = "algorithm"
	FieldSubject   = "subject"
)

type UploadForm struct {
	Title     string
	Content   string
	Selection tagselect.Selection
}

type Attachments struct {
	Thumbnail *api.File
	Video     *api.File

	// e.g. "mp4"
	VideoExt string
}

func ParseUpload(form url.Values) UploadForm {
	return UploadForm{
		Title:     field(form, "title"),
		Content:   form.Get("content"),
		Selection: ParseSelection(form),
	}
}

// ParseSelection reads the tag selection back out of the hidden fields.
// Values that don't parse are dropped rather than failing the page.
func ParseSelection(form url.Values) tagselect.Selection {
	course, _ := tagselect.ParseCourse(form.Get(FieldCourse))
	s := tagselect.Selection{
		Course:       course,
		AlgorithmIDs: parseIDs(form[FieldAlgorithm]),
		SubjectIDs:   parseIDs(form[FieldSubject]),
	}
	if lang, err := strconv.Atoi(form.Get(FieldLanguage)); err == nil {
		s.LanguageID = &lang
	}
	return s
}

func parseIDs(values []string) tagselect.Set {
	var ids []int
	for _, v := range values {
		if id, err := strconv.Atoi(v); err == nil {
			ids = append(ids, id)
		}
	}
	return tagselect.NewSet(ids...)
}

// SelectionValues is the inverse of ParseSelection.
func SelectionValues(s tagselect.Selection) url.Values {
	values := url.Values{}
	if s.Course != tagselect.None {
		values.Set(FieldCourse, s.Course.String())
	}
	if lang, ok := s.Language(); ok {
		values.Set(FieldLanguage, strconv.Itoa(lang))
	}
	for _, id := range s.AlgorithmIDs {
		values.Add(FieldAlgorithm, strconv.Itoa(id))
	}
	for _, id := range s.SubjectIDs {
		values.Add(FieldSubject, strconv.Itoa(id))
	}
	return values
}

// Apply runs one tag selector action (see tagselect.Selection.Apply) and
// returns the updated form.
func (f UploadForm) Apply(action string) (UploadForm, error) {
	next, err := f.Selection.Apply(action)
	if err != nil {
		return f, err
	}
	f.Selection = next
	return f, nil
}

func (f UploadForm) ComposeUpload(att Attachments) (api.CreateVideoRequest, Attachments, error) {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Title,
			validate.Required("Please enter a title."),
			validation.RuneLength(0, MaxTitleLength).Error(fmt.Sprintf("Titles can be at most %d characters.", MaxTitleLength)),
		),
		validation.Field(&f.Content,
			validate.Required("Please describe the video."),
			validation.RuneLength(0, MaxContentLength).Error(fmt.Sprintf("Descriptions can be at most %d characters.", MaxContentLength)),
		),
	)
	if err != nil {
		return api.CreateVideoRequest{}, Attachments{}, newError(err, "Title", "Content")
	}

	err = validation.ValidateStruct(&att,
		validation.Field(&att.Video, validation.NotNil.Error("Please choose a video file.")),
		validation.Field(&att.VideoExt, validation.When(att.Video != nil, validate.Required("That file doesn't look like a video."))),
		validation.Field(&att.Thumbnail, validation.NotNil.Error("Please choose a thumbnail image.")),
	)
	if err != nil {
		return api.CreateVideoRequest{}, Attachments{}, newError(err, "Video", "VideoExt", "Thumbnail")
	}

	req := api.CreateVideoRequest{
		Title:           f.Title,
		Content:         f.Content,
		AlgorithmTagIDs: f.Selection.AlgorithmIDs.IDs(),
		SubjectTagIDs:   f.Selection.SubjectIDs.IDs(),
	}
	if lang, ok := f.Selection.Language(); ok {
		req.LanguageTagID = &lang
	}
	return req, att, nil
}

// VideoUploader is the part of the platform API a video upload needs.
type VideoUploader interface {
	CreateVideoContent(ctx context.Context, req api.CreateVideoRequest) (*api.CreatedVideo, error)
	UploadThumbnail(ctx context.Context, videoID int, file api.File) error
	UploadVideo(ctx context.Context, videoID int, ext string, file api.File) error
}

const (
	PhaseMetadata  = "metadata"
	PhaseThumbnail = "thumbnail"
	PhaseVideo     = "video"
)

// UploadError says which phase of an upload failed. When VideoID is
// non-zero the metadata record exists on the platform without its files.
type UploadError struct {
	Phase   string
	VideoID int
	Err     error
}

func (e *UploadError) Error() string {
	if e.VideoID != 0 {
		return fmt.Sprintf("uploading %s for video %d failed: %v", e.Phase, e.VideoID, e.Err)
	}
	return fmt.Sprintf("uploading %s failed: %v", e.Phase, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

/*
SubmitUpload runs the two-phase upload protocol:

 1. Create the content record and receive its id.
 2. Send the thumbnail and the video, tagged with that id, side by side.

Nothing is sent in phase 2 if phase 1 fails. If phase 2 fails the record from
phase 1 is left in place; there is no rollback and no retry.
*/
func SubmitUpload(ctx context.Context, uploader VideoUploader, req api.CreateVideoRequest, att Attachments) (int, error) {
	logger := logging.ExtractLogger(ctx)

	created, err := uploader.CreateVideoContent(ctx, req)
	metrics.ObserveUploadPhase(PhaseMetadata, err)
	if err != nil {
		return 0, &UploadError{Phase: PhaseMetadata, Err: err}
	}
	videoID := created.ID

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := uploader.UploadThumbnail(groupCtx, videoID, *att.Thumbnail)
		metrics.ObserveUploadPhase(PhaseThumbnail, err)
		if err != nil {
			return &UploadError{Phase: PhaseThumbnail, VideoID: videoID, Err: err}
		}
		metrics.UploadBytes.WithLabelValues(PhaseThumbnail).Add(float64(att.Thumbnail.Size))
		return nil
	})
	group.Go(func() error {
		err := uploader.UploadVideo(groupCtx, videoID, att.VideoExt, *att.Video)
		metrics.ObserveUploadPhase(PhaseVideo, err)
		if err != nil {
			return &UploadError{Phase: PhaseVideo, VideoID: videoID, Err: err}
		}
		metrics.UploadBytes.WithLabelValues(PhaseVideo).Add(float64(att.Video.Size))
		return nil
	})
	// Wait reports the first failure, which is the one that canceled the other.
	if err := group.Wait(); err != nil {
		logger.Warn().Err(err).Int("video_id", videoID).Msg("video record left without its files")
		return videoID, err
	}

	logger.Info().Int("video_id", videoID).Msg("video uploaded")
	return videoID, nil
}
