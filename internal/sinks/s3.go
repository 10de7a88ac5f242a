package sinks

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
	"github.com/tanq16/linkrelay/internal/utils"
)

// S3Sink uploads each part to s3://<bucket>/<prefix>/<part name>.
type S3Sink struct {
	bucket   string
	prefix   string
	uploader *manager.Uploader
}

// ParseS3URL splits s3://bucket/prefix; the prefix may be empty.
func ParseS3URL(target string) (string, string, error) {
	if !strings.HasPrefix(target, "s3://") {
		return "", "", fmt.Errorf("invalid S3 URL %q: must start with s3://", target)
	}
	parts := strings.SplitN(strings.TrimPrefix(target, "s3://"), "/", 2)
	if parts[0] == "" {
		return "", "", fmt.Errorf("invalid S3 URL %q: missing bucket", target)
	}
	prefix := ""
	if len(parts) > 1 {
		prefix = strings.Trim(parts[1], "/")
	}
	return parts[0], prefix, nil
}

// NewS3Sink loads AWS credentials from the shared config, optionally for a
// named profile.
func NewS3Sink(ctx context.Context, target, profile string) (*S3Sink, error) {
	bucket, prefix, err := ParseS3URL(target)
	if err != nil {
		return nil, err
	}
	opts := []func(*config.LoadOptions) error{config.WithRetryMode(aws.RetryModeAdaptive)}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %v", err)
	}
	return NewS3SinkWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func NewS3SinkWithClient(client manager.UploadAPIClient, bucket, prefix string) *S3Sink {
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.Concurrency = 4
		u.BufferProvider = manager.NewBufferedReadSeekerWriteToPool(utils.DefaultBufferSize)
	})
	return &S3Sink{bucket: bucket, prefix: prefix, uploader: uploader}
}

func (s *S3Sink) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3Sink) Emit(ctx context.Context, part utils.Part) error {
	key := s.key(part.Name)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(part.Data),
		ContentLength: aws.Int64(int64(len(part.Data))),
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: s3://%s/%s: %v", utils.ErrSinkEmitFailed, s.bucket, key, err)
	}
	log.Debug().Str("op", "sinks/s3").Msgf("uploaded s3://%s/%s (%s)", s.bucket, key, utils.FormatBytes(uint64(len(part.Data))))
	return nil
}
