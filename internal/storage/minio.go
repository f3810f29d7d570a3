package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/your-org/eventlens/internal/apperr"
	"github.com/your-org/eventlens/internal/config"
)

// ErrObjectExists is returned when a generated key is already taken.
var ErrObjectExists = errors.New("object already exists")

// StorageError wraps any object store failure. It classifies as upstream.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) ErrorKind() apperr.Kind { return apperr.KindUpstream }

// objectClient is the subset of *minio.Client the store uses.
type objectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	EndpointURL() *url.URL
}

type MinIOStore struct {
	client    objectClient
	bucket    string
	prefix    string
	publicURL string
}

// StoredObject is the location of a stored photo.
type StoredObject struct {
	Key string
	URL string
}

func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return newMinIOStore(client, cfg), nil
}

func newMinIOStore(client objectClient, cfg config.MinIOConfig) *MinIOStore {
	return &MinIOStore{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		publicURL: strings.TrimSuffix(cfg.PublicURL, "/"),
	}
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// Store writes data under a fresh random key inside dir and returns the key
// and its public URL. The original filename only contributes its extension.
func (s *MinIOStore) Store(ctx context.Context, dir string, data []byte, contentType, filename string) (StoredObject, error) {
	key := s.objectKey(dir, filename)

	if err := s.putIfAbsent(ctx, key, data, contentType); err != nil {
		return StoredObject{}, err
	}

	u, err := s.PublicURL(key)
	if err != nil {
		return StoredObject{}, err
	}
	return StoredObject{Key: key, URL: u}, nil
}

func (s *MinIOStore) objectKey(dir, filename string) string {
	name := uuid.New().String() + extension(filename)
	parts := []string{}
	if s.prefix != "" {
		parts = append(parts, s.prefix)
	}
	if d := strings.Trim(dir, "/"); d != "" {
		parts = append(parts, d)
	}
	return path.Join(append(parts, name)...)
}

func (s *MinIOStore) putIfAbsent(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return &StorageError{Op: "put", Key: key, Err: ErrObjectExists}
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return &StorageError{Op: "stat", Key: key, Err: err}
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return &StorageError{Op: "put", Key: key, Err: err}
	}
	return nil
}

// PublicURL returns the durable URL under which key is served.
func (s *MinIOStore) PublicURL(key string) (string, error) {
	if key == "" {
		return "", &StorageError{Op: "url", Err: errors.New("empty object key")}
	}
	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}

	endpoint := s.client.EndpointURL()
	if endpoint == nil || endpoint.Host == "" {
		return "", &StorageError{Op: "url", Key: key, Err: errors.New("no public endpoint configured")}
	}
	u := *endpoint
	u.Path = "/" + path.Join(s.bucket, key)
	return u.String(), nil
}

// DeleteObject removes an object. Used to clean up after a failed insert.
func (s *MinIOStore) DeleteObject(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return &StorageError{Op: "delete", Key: key, Err: err}
	}
	return nil
}

// Ping checks MinIO connectivity.
func (s *MinIOStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

// extension returns the lower-cased extension of filename if it looks like
// a plain file extension, otherwise "".
func extension(filename string) string {
	name := filename
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	ext := strings.ToLower(path.Ext(name))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
