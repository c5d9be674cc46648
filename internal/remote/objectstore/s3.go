package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bassista/snapgram/internal/config"
	"github.com/bassista/snapgram/internal/logger"
	"github.com/bassista/snapgram/internal/remote"
)

// S3Store keeps objects in an S3 (or S3-compatible) bucket. Preview URLs are
// presigned GET URLs valid for the configured TTL.
type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	presigner  *s3.PresignClient
	bucket     string
	presignTTL time.Duration
	maxSize    int64
	ids        remote.IDGenerator
	clock      remote.Clock
}

var _ remote.ObjectStore = (*S3Store)(nil)

// NewS3Store builds the S3 client from cfg. A custom endpoint switches to
// path-style addressing, as MinIO and most S3-compatible servers expect.
func NewS3Store(ctx context.Context, cfg config.ObjectStoreConfig, ids remote.IDGenerator, clock remote.Clock) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 object store requires a bucket")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3StoreFromClient(client, cfg.Bucket, cfg.PresignTTL, cfg.MaxSize, ids, clock), nil
}

// NewS3StoreFromClient wraps an existing client.
func NewS3StoreFromClient(client *s3.Client, bucket string, presignTTL time.Duration, maxSize int64, ids remote.IDGenerator, clock remote.Clock) *S3Store {
	if ids == nil {
		ids = remote.UUIDGenerator{}
	}
	if clock == nil {
		clock = remote.RealClock{}
	}
	if presignTTL <= 0 {
		presignTTL = time.Hour
	}
	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		presigner:  s3.NewPresignClient(client),
		bucket:     bucket,
		presignTTL: presignTTL,
		maxSize:    maxSize,
		ids:        ids,
		clock:      clock,
	}
}

func (s *S3Store) UploadObject(ctx context.Context, upload remote.ObjectUpload) (remote.Object, error) {
	if err := checkUpload(upload, s.maxSize); err != nil {
		return remote.Object{}, err
	}

	obj := remote.Object{
		ID:          s.ids.New(),
		Name:        upload.Name,
		ContentType: contentType(upload),
		Size:        int64(len(upload.Data)),
		CreatedAt:   s.clock.Now(),
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(obj.ID),
		Body:        bytes.NewReader(upload.Data),
		ContentType: aws.String(obj.ContentType),
		Metadata:    map[string]string{"name": upload.Name},
	})
	if err != nil {
		return remote.Object{}, fmt.Errorf("%w: put s3://%s/%s: %w", remote.ErrUpload, s.bucket, obj.ID, err)
	}

	logger.WithComponent("s3-objectstore").Debugf("uploaded s3://%s/%s (%d bytes)", s.bucket, obj.ID, obj.Size)
	return obj, nil
}

func (s *S3Store) DeleteObject(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w: %w", s.bucket, id, remote.ErrNetwork, err)
	}
	return nil
}

func (s *S3Store) GetObjectPreviewURL(ctx context.Context, id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(id),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("presign s3://%s/%s: %w", s.bucket, id, err)
	}
	return req.URL, nil
}
