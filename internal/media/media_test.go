package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/googleapi"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/session"
)

// smallest valid PNG header followed by an IHDR chunk
var pngBytes = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1F, 0x15, 0xC4, 0x89,
}

func signedIn() context.Context {
	return session.WithPrincipal(context.Background(), session.Principal{UserID: "u1", Name: "Ann"})
}

func newTestUploader(store BlobStore) *Uploader {
	at := time.UnixMilli(1700000000000)
	return NewUploader(store,
		WithClock(func() time.Time { return at }),
		WithTokenGenerator(func() string { return "tok" }))
}

func TestUploadStoresImage(t *testing.T) {
	store := NewMemoryStore("minglr.appspot.com")
	u := newTestUploader(store)

	got, err := u.Upload(signedIn(), ProfilePicture, "my photo (1).png", bytes.NewReader(pngBytes))
	require.NoError(t, err)

	path := "profile-pictures/u1/1700000000000_my_photo__1_.png"
	stored, ok := store.Object(path)
	require.True(t, ok)
	assert.Equal(t, pngBytes, stored)
	assert.Equal(t,
		"https://firebasestorage.googleapis.com/v0/b/minglr.appspot.com/o/profile-pictures%2Fu1%2F1700000000000_my_photo__1_.png?alt=media&token=tok",
		got)
}

func TestUploadRejections(t *testing.T) {
	store := NewMemoryStore("b")
	u := newTestUploader(store)

	_, err := u.Upload(context.Background(), PostImage, "a.png", bytes.NewReader(pngBytes))
	assert.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = u.Upload(signedIn(), PostImage, "a.txt", bytes.NewReader([]byte("plain text")))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, "Please upload a valid image file (JPEG, PNG, GIF, or WebP)", apperrors.Message(err))

	big := append(append([]byte{}, pngBytes...), make([]byte, MaxImageSize)...)
	_, err = u.Upload(signedIn(), PostImage, "big.png", bytes.NewReader(big))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, "Image size must be less than 5MB", apperrors.Message(err))

	_, err = u.Upload(signedIn(), Kind("videos"), "a.png", bytes.NewReader(pngBytes))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	assert.Zero(t, store.Len())
}

func TestConcurrentUploads(t *testing.T) {
	store := NewMemoryStore("b")
	u := newTestUploader(store)

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			_, err := u.Upload(signedIn(), PostImage, fmt.Sprintf("img-%d.png", i), bytes.NewReader(pngBytes))
			return err
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, 50, store.Len())

	_, ok := store.Object("post-images/u1/1700000000000_img-7.png")
	assert.False(t, ok, "sanitized names replace the dash")
	_, ok = store.Object("post-images/u1/1700000000000_img_7.png")
	assert.True(t, ok)
}

type failingStore struct{ err error }

func (s failingStore) Put(context.Context, string, string, []byte, string) error { return s.err }
func (s failingStore) Bucket() string                                            { return "b" }

func TestUploadPropagatesStoreErrors(t *testing.T) {
	denied := translateStorageErr(fmt.Errorf("writer: %w", &googleapi.Error{Code: http.StatusForbidden}))
	_, err := newTestUploader(failingStore{err: denied}).Upload(signedIn(), PostImage, "a.png", bytes.NewReader(pngBytes))
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	assert.Contains(t, err.Error(), "Please check your storage rules")

	other := translateStorageErr(errors.New("network down"))
	assert.NotErrorIs(t, other, apperrors.ErrPermissionDenied)
}
