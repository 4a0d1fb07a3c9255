// Package videostream works out where the watch page's player fetches its
// HLS playlist from. The stream itself is served by other infrastructure.
package videostream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"git.coderun.dev/coderun/coderun/src/config"
	"git.coderun.dev/coderun/coderun/src/logging"
	"git.coderun.dev/coderun/coderun/src/oops"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// ErrNotReady means the playlist does not exist yet, usually because the
// platform is still transcoding the upload.
var ErrNotReady = errors.New("video is still processing")

func PlaylistKey(videoID int) string {
	return fmt.Sprintf("video/%d_VIDEO.m3u8", videoID)
}

type Resolver struct {
	streamBaseUrl string

	bucket     string
	presignTTL time.Duration
	client     *s3.Client
	presigner  *s3.PresignClient
}

// New builds a resolver. Without a bucket configured, playlist URLs point at
// the stream server directly and are not checked for existence.
func New(ctx context.Context, cfg config.VideoConfig) (*Resolver, error) {
	r := &Resolver{
		streamBaseUrl: strings.TrimRight(cfg.StreamBaseUrl, "/"),
		bucket:        cfg.S3.Bucket,
		presignTTL:    cfg.S3.PresignTTL,
	}
	if r.bucket == "" {
		return r, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3.Region),
	}
	if cfg.S3.Key != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.Key, cfg.S3.Secret, ""),
		))
	}
	if cfg.S3.Endpoint != "" {
		opts = append(opts, awsconfig.WithEndpointResolver(aws.EndpointResolverFunc(func(service, region string) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:           cfg.S3.Endpoint,
				SigningRegion: cfg.S3.Region,
			}, nil
		})))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, oops.New(err, "failed to load S3 configuration")
	}
	r.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	r.presigner = s3.NewPresignClient(r.client)

	return r, nil
}

// PlaylistURL returns the URL of the video's HLS playlist. With a bucket
// configured the URL is presigned, and ErrNotReady is returned when the
// playlist has not been written yet.
func (r *Resolver) PlaylistURL(ctx context.Context, videoID int) (string, error) {
	key := PlaylistKey(videoID)
	if r.client == nil {
		return fmt.Sprintf("%s/%s", r.streamBaseUrl, key), nil
	}

	_, err := r.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return "", ErrNotReady
		}
		return "", oops.New(err, "failed to look up playlist for video %d", videoID)
	}

	presigned, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.presignTTL))
	if err != nil {
		return "", oops.New(err, "failed to presign playlist for video %d", videoID)
	}

	logging.ExtractLogger(ctx).Debug().
		Int("video_id", videoID).
		Time("expires", time.Now().Add(r.presignTTL)).
		Msg("presigned playlist")
	return presigned.URL, nil
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiError smithy.APIError
	if errors.As(err, &apiError) {
		switch apiError.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	var resErr *smithyhttp.ResponseError
	return errors.As(err, &resErr) && resErr.HTTPStatusCode() == 404
}
