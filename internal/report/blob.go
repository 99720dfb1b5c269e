package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/frahmantamala/meter-fleet/internal"
	"github.com/spf13/afero"
)

const contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var ErrBlobNotFound = errors.New("blob not found")

// BlobStore keeps generated workbooks until they are downloaded or expire.
type BlobStore interface {
	Put(ctx context.Context, name string, data []byte) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// NewBlobStore picks the store named by cfg.Driver.
func NewBlobStore(ctx context.Context, cfg internal.StorageConfig) (BlobStore, error) {
	switch cfg.Driver {
	case internal.StorageDriverS3:
		return NewS3Store(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3Prefix)
	default:
		return NewLocalStore(afero.NewOsFs(), cfg.LocalDir)
	}
}

// LocalStore writes blobs into one directory of an afero filesystem.
type LocalStore struct {
	fs  afero.Fs
	dir string
}

func NewLocalStore(fs afero.Fs, dir string) (*LocalStore, error) {
	if err := fs.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &LocalStore{fs: fs, dir: dir}, nil
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

func (s *LocalStore) Put(_ context.Context, name string, data []byte) error {
	return afero.WriteFile(s.fs, s.path(name), data, 0o640)
}

func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := s.fs.Open(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	return f, err
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := s.fs.Remove(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// S3Store keeps blobs in a bucket under an optional key prefix.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Store(ctx context.Context, region, bucket, prefix string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &S3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (s *S3Store) key(name string) string {
	return path.Join(s.prefix, path.Base(name))
}

func (s *S3Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeXLSX),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

func (s *S3Store) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	return out.Body, nil
}

func (s *S3Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}
