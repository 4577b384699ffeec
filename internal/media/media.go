// Package media validates and stores user-uploaded images.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/session"
)

// MaxImageSize is the largest accepted upload in bytes.
const MaxImageSize = 5 << 20

// Kind selects where an upload is stored
type Kind string

const (
	ProfilePicture Kind = "profile-pictures"
	PostImage      Kind = "post-images"
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// BlobStore writes objects to a storage bucket.
type BlobStore interface {
	// Put stores data at path. token becomes the object's download token.
	Put(ctx context.Context, path, contentType string, data []byte, token string) error
	Bucket() string
}

// Uploader stores images for the signed-in user.
type Uploader struct {
	store  BlobStore
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

type Option func(*Uploader)

func WithClock(now func() time.Time) Option {
	return func(u *Uploader) { u.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) { u.logger = logger }
}

// WithTokenGenerator overrides how download tokens are made
func WithTokenGenerator(fn func() string) Option {
	return func(u *Uploader) { u.newID = fn }
}

func NewUploader(store BlobStore, opts ...Option) *Uploader {
	u := &Uploader{store: store, now: time.Now, newID: uuid.NewString, logger: slog.Default()}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Upload validates the image in r and stores it under the caller's folder for kind.
// It returns the public download URL.
func (u *Uploader) Upload(ctx context.Context, kind Kind, filename string, r io.Reader) (string, error) {
	p, err := session.Require(ctx)
	if err != nil {
		return "", err
	}
	if kind != ProfilePicture && kind != PostImage {
		return "", apperrors.Invalid("unknown upload kind %q", kind)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageSize {
		return "", apperrors.Invalid("Image size must be less than 5MB")
	}
	mtype := mimetype.Detect(data)
	if !allowedTypes[mtype.String()] {
		return "", apperrors.Invalid("Please upload a valid image file (JPEG, PNG, GIF, or WebP)")
	}

	path := ObjectPath(kind, p.UserID, filename, u.now())
	token := u.newID()
	if err := u.store.Put(ctx, path, mtype.String(), data, token); err != nil {
		u.logger.ErrorContext(ctx, "uploading image", "path", path, "error", err)
		return "", err
	}
	u.logger.InfoContext(ctx, "image uploaded", "path", path, "bytes", len(data))
	return DownloadURL(u.store.Bucket(), path, token), nil
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9.]`)

// ObjectPath builds "<kind>/<uid>/<unix ms>_<sanitized name>".
func ObjectPath(kind Kind, userID, filename string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%d_%s", kind, userID, at.UnixMilli(), unsafeChars.ReplaceAllString(filename, "_"))
}

// DownloadURL is the tokenised Firebase Storage URL for an object.
func DownloadURL(bucket, path, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.QueryEscape(path), token)
}

// MemoryStore keeps objects in memory; used for local runs and tests.
type MemoryStore struct {
	bucket  string
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, path, _ string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = bytes.Clone(data)
	return nil
}

// Object returns a copy of the object stored at path.
func (s *MemoryStore) Object(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[path]
	return bytes.Clone(data), ok
}

// Len is the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

func (s *MemoryStore) Bucket() string { return s.bucket }
