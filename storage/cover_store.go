package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"crates/logger"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/minio/minio-go/v7"
)

// maxCoverBytes bounds a single thumbnail download.
const maxCoverBytes = 10 << 20

var (
	// ErrCoverNotFound is returned when no archived cover exists for a key.
	ErrCoverNotFound = errors.New("cover not found")
	// ErrCoverURLNotAllowed is returned for thumbnails outside the image hosts.
	ErrCoverURLNotAllowed = errors.New("cover url not allowed")
	// ErrNotAnImage is returned when a downloaded body is not an image.
	ErrNotAnImage = errors.New("cover is not an image")
)

// CoverStore mirrors album thumbnails into a bucket under
// covers/{userID}/{albumID}{ext}.
type CoverStore struct {
	client *minio.Client
	bucket string
	fetch  *downloader
}

// NewCoverStore builds a CoverStore that only downloads https URLs on hosts.
func NewCoverStore(client *minio.Client, bucket string, hosts []string) *CoverStore {
	return &CoverStore{client: client, bucket: bucket, fetch: newDownloader(hostAllowList(hosts))}
}

// CoverKey is the object key of an album's cover.
func CoverKey(userID int64, albumID, contentType string) string {
	return fmt.Sprintf("covers/%d/%s%s", userID, albumID, extensionFor(contentType))
}

// Archive downloads thumbURL and stores it, returning the object key.
func (s *CoverStore) Archive(ctx context.Context, userID int64, albumID, thumbURL string) (string, error) {
	data, contentType, err := s.fetch.get(ctx, thumbURL)
	if err != nil {
		return "", err
	}

	key := CoverKey(userID, albumID, contentType)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload cover %s: %w", key, err)
	}
	logger.Debug("Archived cover", logger.String("key", key), logger.Int("size", len(data)))
	return key, nil
}

// Open returns the stored object. The caller closes it.
func (s *CoverStore) Open(ctx context.Context, key string) (io.ReadCloser, minio.ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, minio.ObjectInfo{}, fmt.Errorf("failed to get cover %s: %w", key, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, minio.ObjectInfo{}, ErrCoverNotFound
		}
		return nil, minio.ObjectInfo{}, fmt.Errorf("failed to stat cover %s: %w", key, err)
	}
	return obj, info, nil
}

// Remove deletes a stored cover.
func (s *CoverStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove cover %s: %w", key, err)
	}
	return nil
}

// CoverStats summarises archived covers under a prefix.
type CoverStats struct {
	Objects   int
	TotalSize int64
	Users     map[string]int
}

// Stats walks every object under prefix.
func (s *CoverStore) Stats(ctx context.Context, prefix string) (*CoverStats, error) {
	stats := &CoverStats{Users: make(map[string]int)}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list covers: %w", obj.Err)
		}
		stats.Objects++
		stats.TotalSize += obj.Size
		if parts := strings.Split(obj.Key, "/"); len(parts) == 3 {
			stats.Users[parts[1]]++
		}
	}
	return stats, nil
}

// downloader fetches thumbnails with retries on transient failures. Every
// URL, redirects included, must pass allow.
type downloader struct {
	client *retryablehttp.Client
	allow  func(*url.URL) error
}

func newDownloader(allow func(*url.URL) error) *downloader {
	d := &downloader{allow: allow}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.HTTPClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 5 {
			return errors.New("too many redirects")
		}
		return d.allow(req.URL)
	}
	rc.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if errors.Is(err, ErrCoverURLNotAllowed) {
			return false, err
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}
	rc.Logger = nil
	d.client = rc
	return d
}

// hostAllowList accepts https URLs whose host is one of hosts.
func hostAllowList(hosts []string) func(*url.URL) error {
	allowed := make(map[string]bool, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed[h] = true
		}
	}
	return func(u *url.URL) error {
		if u.Scheme != "https" || u.User != nil || !allowed[strings.ToLower(u.Hostname())] || (u.Port() != "" && u.Port() != "443") {
			return fmt.Errorf("%w: %s", ErrCoverURLNotAllowed, u.Redacted())
		}
		return nil
	}
}

func (d *downloader) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("parse cover url: %w", err)
	}
	if err := d.allow(u); err != nil {
		return nil, "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build cover request: %w", err)
	}
	req.Header.Set("User-Agent", "CratesApp/1.0")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download cover: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read cover: %w", err)
	}
	if len(data) > maxCoverBytes {
		return nil, "", fmt.Errorf("cover exceeds %d bytes", maxCoverBytes)
	}

	// The declared Content-Type is not trusted.
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("%w: detected %s", ErrNotAnImage, contentType)
	}
	return data, contentType, nil
}

func extensionFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/png"):
		return ".png"
	case strings.HasPrefix(contentType, "image/webp"):
		return ".webp"
	case strings.HasPrefix(contentType, "image/gif"):
		return ".gif"
	default:
		return ".jpg"
	}
}
