package state

import (
	"context"
	stderrors "errors"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/config"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
)

// GCSObjectStore opens readers and writers on bucket objects. A missing
// object is reported as storage.ErrObjectNotExist.
type GCSObjectStore interface {
	NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error)
	NewWriter(ctx context.Context, bucket, object string) io.WriteCloser
	Close() error
}

type gcsClient struct {
	client *storage.Client
}

func (c *gcsClient) NewReader(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return c.client.Bucket(bucket).Object(object).NewReader(ctx)
}

func (c *gcsClient) NewWriter(ctx context.Context, bucket, object string) io.WriteCloser {
	w := c.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/json"
	return w
}

func (c *gcsClient) Close() error {
	return c.client.Close()
}

// GCSBackend keeps the checkpoint in one Cloud Storage object
type GCSBackend struct {
	bucket string
	object string
	store  GCSObjectStore
}

// NewGCSBackend creates a GCS backend using application default
// credentials or cfg.CredentialsFile
func NewGCSBackend(ctx context.Context, cfg config.StateConfig) (*GCSBackend, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create GCS client")
	}
	return NewGCSBackendWithStore(cfg.Bucket, cfg.Key, &gcsClient{client: client}), nil
}

// NewGCSBackendWithStore creates a GCS backend on store
func NewGCSBackendWithStore(bucket, object string, store GCSObjectStore) *GCSBackend {
	return &GCSBackend{bucket: bucket, object: object, store: store}
}

// Name implements Backend
func (b *GCSBackend) Name() string { return "gcs" }

// Load implements Backend
func (b *GCSBackend) Load(ctx context.Context) (*State, error) {
	r, err := b.store.NewReader(ctx, b.bucket, b.object)
	if err != nil {
		if stderrors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to open state object").
			WithDetail("bucket", b.bucket).WithDetail("object", b.object)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to read state object")
	}
	return ParseState(data)
}

// Save implements Backend. The object is replaced when the writer closes.
func (b *GCSBackend) Save(ctx context.Context, st *State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}

	w := b.store.NewWriter(ctx, b.bucket, b.object)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to write state object")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to finalize state object").
			WithDetail("bucket", b.bucket).WithDetail("object", b.object)
	}
	return nil
}

// Close implements Backend
func (b *GCSBackend) Close() error {
	return b.store.Close()
}
