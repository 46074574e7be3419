// Package blob stores uploads in MinIO and fetches content back by URL.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
)

var (
	ErrTooLarge          = errors.New("blob exceeds the size limit")
	ErrNotFound          = errors.New("blob not found")
	ErrUnsupportedScheme = errors.New("unsupported blob url scheme")
	ErrNoObjectStore     = errors.New("object store is not configured")
)

const defaultFetchTimeout = 5 * time.Minute

type Object struct {
	Data        []byte
	ContentType string
	// Name is the last path segment of the object key or URL.
	Name string
}

type Store struct {
	client   *minio.Client
	bucket   string
	maxBytes int64
	http     *http.Client
}

// NewStore wraps client; client may be nil, in which case only plain HTTP
// URLs can be fetched. maxBytes <= 0 disables the size limit.
func NewStore(client *minio.Client, bucket string, maxBytes int64) *Store {
	return &Store{
		client:   client,
		bucket:   bucket,
		maxBytes: maxBytes,
		http:     &http.Client{Timeout: defaultFetchTimeout},
	}
}

func (s *Store) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return ErrNoObjectStore
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

// Put uploads r under key and returns the object's path-style URL.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if s.client == nil {
		return "", ErrNoObjectStore
	}
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return s.ObjectURL(key), nil
}

func (s *Store) ObjectURL(key string) string {
	endpoint := *s.client.EndpointURL()
	endpoint.Path = "/" + path.Join(s.bucket, key)
	return endpoint.String()
}

func (s *Store) Remove(ctx context.Context, key string) error {
	if s.client == nil {
		return ErrNoObjectStore
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// Fetch loads the content behind rawURL. minio://bucket/key and http(s)
// URLs on the MinIO endpoint are read through the MinIO client; any other
// http(s) URL is a plain GET.
func (s *Store) Fetch(ctx context.Context, rawURL string) (*Object, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse blob url: %w", err)
	}

	switch u.Scheme {
	case "minio", "s3":
		return s.getObject(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
	case "http", "https":
		if s.client != nil && strings.EqualFold(u.Host, s.client.EndpointURL().Host) {
			bucket, key, ok := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
			if ok && key != "" {
				return s.getObject(ctx, bucket, key)
			}
		}
		return s.httpGet(ctx, u)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func (s *Store) getObject(ctx context.Context, bucket, key string) (*Object, error) {
	if s.client == nil {
		return nil, ErrNoObjectStore
	}
	if key == "" {
		return nil, fmt.Errorf("%w: empty object key", ErrNotFound)
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, bucket, key)
		}
		return nil, err
	}
	if s.maxBytes > 0 && info.Size > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, info.Size)
	}

	data, err := s.readLimited(obj)
	if err != nil {
		return nil, err
	}
	return &Object{Data: data, ContentType: info.ContentType, Name: path.Base(key)}, nil
}

func (s *Store) httpGet(ctx context.Context, u *url.URL) (*Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u.Redacted())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", u.Redacted(), resp.Status)
	}
	if s.maxBytes > 0 && resp.ContentLength > s.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	data, err := s.readLimited(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Object{Data: data, ContentType: resp.Header.Get("Content-Type"), Name: path.Base(u.Path)}, nil
}

func (s *Store) readLimited(r io.Reader) ([]byte, error) {
	if s.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.maxBytes)
	}
	return data, nil
}
