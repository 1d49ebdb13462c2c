package notifier

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	s3manager "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/semmidev/sqlcourier/internal/config"
	"github.com/semmidev/sqlcourier/internal/domain"
	"github.com/spf13/afero"
)

type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

// S3 delivers the backup as an object; the notification text rides along as
// object metadata.
type S3 struct {
	fs       afero.Fs
	uploader s3Uploader
	bucket   string
	prefix   string
}

func NewS3(ctx context.Context, fs afero.Fs, cfg *config.TransportConfig) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3.Region)}
	if cfg.S3.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKey, cfg.S3.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3{
		fs:       fs,
		uploader: s3manager.NewUploader(s3.NewFromConfig(awsCfg)),
		bucket:   cfg.S3.Bucket,
		prefix:   cfg.S3.Prefix,
	}, nil
}

func (s *S3) Name() string {
	return "s3"
}

func (s *S3) Send(ctx context.Context, payload domain.Payload) error {
	file, err := s.fs.Open(payload.AttachmentPath)
	if err != nil {
		return &domain.TransportError{Transport: s.Name(), Err: fmt.Errorf("failed to open file: %w", err)}
	}
	defer file.Close()

	key := path.Join(s.prefix, filepath.Base(payload.AttachmentPath))

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   file,
		Metadata: map[string]string{
			"title":      payload.Title,
			"database":   payload.DatabaseName,
			"size":       strconv.FormatInt(payload.Size, 10),
			"compressed": strconv.FormatBool(payload.Compressed),
		},
	}
	if payload.Compressed {
		input.ContentType = aws.String("application/gzip")
	} else {
		input.ContentType = aws.String("application/sql")
	}

	if _, err := s.uploader.Upload(ctx, input); err != nil {
		return &domain.TransportError{
			Transport: s.Name(),
			Transient: domain.IsTransient(err),
			Err:       fmt.Errorf("failed to upload to S3: %w", err),
		}
	}

	return nil
}
