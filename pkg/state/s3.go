package state

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/config"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
)

// S3GetObjectAPI reads objects; *s3.Client implements it
type S3GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3UploadAPI uploads objects; *manager.Uploader implements it
type S3UploadAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Backend keeps the checkpoint in one S3 object
type S3Backend struct {
	bucket   string
	key      string
	client   S3GetObjectAPI
	uploader S3UploadAPI
}

// NewS3Backend creates an S3 backend from the default AWS credential chain
func NewS3Backend(ctx context.Context, cfg config.StateConfig) (*S3Backend, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	uploader := manager.NewUploader(client)

	return NewS3BackendWithClients(cfg.Bucket, cfg.Key, client, uploader), nil
}

// NewS3BackendWithClients creates an S3 backend on the given clients
func NewS3BackendWithClients(bucket, key string, client S3GetObjectAPI, uploader S3UploadAPI) *S3Backend {
	return &S3Backend{bucket: bucket, key: key, client: client, uploader: uploader}
}

// Name implements Backend
func (b *S3Backend) Name() string { return "s3" }

// Load implements Backend
func (b *S3Backend) Load(ctx context.Context) (*State, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if stderrors.As(err, &noKey) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read state object").
			WithDetail("bucket", b.bucket).WithDetail("key", b.key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read state object")
	}
	return ParseState(data)
}

// Save implements Backend
func (b *S3Backend) Save(ctx context.Context, st *State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	_, err = b.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to upload state object").
			WithDetail("bucket", b.bucket).WithDetail("key", b.key)
	}
	return nil
}

// Close implements Backend
func (b *S3Backend) Close() error { return nil }
