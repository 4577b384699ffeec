package firebase

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCreator struct {
	record *auth.UserRecord
	err    error
	calls  int
}

func (s *stubCreator) CreateUser(context.Context, *auth.UserToCreate) (*auth.UserRecord, error) {
	s.calls++
	return s.record, s.err
}

func TestCreateUserReturnsUID(t *testing.T) {
	creator := &stubCreator{record: &auth.UserRecord{UserInfo: &auth.UserInfo{UID: "uid-1"}}}
	p := NewIdentityProvider(creator)

	uid, err := p.CreateUser(context.Background(), "a@minglr.app", "secret1", "")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", uid)
	assert.Equal(t, 1, creator.calls)
}

func TestCreateUserWrapsUnknownErrors(t *testing.T) {
	p := NewIdentityProvider(&stubCreator{err: errors.New("backend unavailable")})

	_, err := p.CreateUser(context.Background(), "a@minglr.app", "secret1", "A")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrConflict)
	assert.Contains(t, err.Error(), "backend unavailable")
}
