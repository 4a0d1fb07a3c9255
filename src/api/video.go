package api

import (
	"context"
	"fmt"
	"net/http"

	"git.coderun.dev/coderun/coderun/src/oops"
)

func (c *Client) CreateVideoContent(ctx context.Context, req CreateVideoRequest) (*CreatedVideo, error) {
	if req.AlgorithmTagIDs == nil {
		req.AlgorithmTagIDs = []int{}
	}
	if req.SubjectTagIDs == nil {
		req.SubjectTagIDs = []int{}
	}

	var res envelope[CreatedVideo]
	err := c.callJSON(ctx, "Create Video", http.MethodPost, "/api/video", req, &res)
	if err != nil {
		return nil, err
	}
	if res.Data.ID == 0 {
		return nil, oops.New(nil, "API created a video but returned no id")
	}
	return &res.Data, nil
}

func (c *Client) UploadThumbnail(ctx context.Context, videoID int, file File) error {
	return c.uploadFile(ctx, "Upload Thumbnail", fmt.Sprintf("/api/thumbnail/%d", videoID), file)
}

// UploadVideo sends the video file. ext is the bare extension ("mp4"), which
// the platform uses to name the stored file.
func (c *Client) UploadVideo(ctx context.Context, videoID int, ext string, file File) error {
	return c.uploadFile(ctx, "Upload Video", fmt.Sprintf("/api/video/%d/%s", videoID, pathEscape(ext)), file)
}

func (c *Client) GetVideoDetail(ctx context.Context, videoID int) (*VideoDetail, error) {
	var res envelope[VideoDetail]
	err := c.callJSON(ctx, "Get Video", http.MethodGet, fmt.Sprintf("/api/video/%d", videoID), nil, &res)
	if err != nil {
		return nil, err
	}
	if res.Data.ID == 0 {
		res.Data.ID = videoID
	}
	return &res.Data, nil
}

func (c *Client) GetVideoComments(ctx context.Context, videoID int) ([]Comment, error) {
	var res envelope[[]Comment]
	err := c.callJSON(ctx, "Get Comments", http.MethodGet, fmt.Sprintf("/api/video/%d/comments", videoID), nil, &res)
	if err != nil {
		return nil, err
	}
	if res.Data == nil {
		return []Comment{}, nil
	}
	return res.Data, nil
}
