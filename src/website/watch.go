package website

import (
	"errors"
	"net/http"

	"git.coderun.dev/coderun/coderun/src/api"
	"git.coderun.dev/coderun/coderun/src/oops"
	"git.coderun.dev/coderun/coderun/src/templates"
	"git.coderun.dev/coderun/coderun/src/videostream"
	"golang.org/x/sync/errgroup"
)

const msgCommentsFailed = "We couldn't load the comments for this video."

type WatchTemplateData struct {
	templates.BaseData

	Video    templates.Video
	Comments []templates.Comment
}

func Watch(c *RequestContext) ResponseData {
	videoID, ok := c.PathParamInt("videoid")
	if !ok {
		return FourOhFour(c)
	}

	var (
		detail      *api.VideoDetail
		comments    []api.Comment
		commentsErr error
	)
	group, ctx := errgroup.WithContext(c)
	group.Go(func() error {
		end := c.Perf.StartBlock("API", "Fetch video detail")
		defer end()

		var err error
		detail, err = c.Api.GetVideoDetail(ctx, videoID)
		return err
	})
	group.Go(func() error {
		end := c.Perf.StartBlock("API", "Fetch comments")
		defer end()

		comments, commentsErr = c.Api.GetVideoComments(ctx, videoID)
		// The video is still worth showing without its comments.
		if api.IsInvalidCredentials(commentsErr) {
			return commentsErr
		}
		return nil
	})
	if err := group.Wait(); err != nil {
		switch {
		case api.IsInvalidCredentials(err):
			return forceLogout(c, err)
		case errors.Is(err, api.ErrNotFound):
			return FourOhFour(c)
		default:
			return c.ErrorResponse(http.StatusBadGateway, oops.New(err, "failed to load video %d", videoID))
		}
	}

	if commentsErr != nil {
		c.Logger.Warn().Err(commentsErr).Int("video_id", videoID).Msg("failed to load comments")
		comments = nil
	}

	video := templates.VideoToTemplate(detail)

	end := c.Perf.StartBlock("VIDEO", "Resolve playlist")
	playlist, err := c.Deps.Videos.PlaylistURL(c, videoID)
	end()
	switch {
	case err == nil:
		video.PlaylistUrl = playlist
	case errors.Is(err, videostream.ErrNotReady):
		video.Processing = true
	default:
		return c.ErrorResponse(http.StatusInternalServerError, err)
	}

	baseData := getBaseData(c, video.Title)
	if commentsErr != nil {
		baseData.AddImmediateNotice(noticeFailure, msgCommentsFailed)
	}

	var res ResponseData
	res.MustWriteTemplate("watch.html", WatchTemplateData{
		BaseData: baseData,
		Video:    video,
		Comments: templates.CommentsToTemplate(comments),
	}, c.Perf)
	return res
}
