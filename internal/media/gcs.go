package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/anonto42/minglr/backend/internal/apperrors"
)

// GCSStore writes to the Firebase Storage bucket through the Cloud Storage client.
type GCSStore struct {
	bucket *storage.BucketHandle
	name   string
}

func NewGCSStore(bucket *storage.BucketHandle, name string) *GCSStore {
	return &GCSStore{bucket: bucket, name: name}
}

func (s *GCSStore) Bucket() string { return s.name }

func (s *GCSStore) Put(ctx context.Context, path, contentType string, data []byte, token string) error {
	w := s.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{"firebaseStorageDownloadTokens": token}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return translateStorageErr(err)
	}
	if err := w.Close(); err != nil {
		return translateStorageErr(err)
	}
	return nil
}

func translateStorageErr(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && (gerr.Code == http.StatusForbidden || gerr.Code == http.StatusUnauthorized) {
		return fmt.Errorf("%w: Permission denied. Please check your storage rules.", apperrors.ErrPermissionDenied)
	}
	return fmt.Errorf("store object: %w", err)
}
