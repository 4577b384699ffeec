package firebase

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/minglr/backend/internal/apperrors"
)

// UserCreator is the part of *auth.Client used for sign-up.
type UserCreator interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
}

// IdentityProvider creates Firebase Authentication accounts.
type IdentityProvider struct {
	client UserCreator
}

func NewIdentityProvider(client UserCreator) *IdentityProvider {
	return &IdentityProvider{client: client}
}

// CreateUser registers the account and returns its uid.
func (p *IdentityProvider) CreateUser(ctx context.Context, email, password, displayName string) (string, error) {
	params := (&auth.UserToCreate{}).Email(email).Password(password)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}

	record, err := p.client.CreateUser(ctx, params)
	switch {
	case err == nil:
		return record.UID, nil
	case auth.IsEmailAlreadyExists(err):
		return "", fmt.Errorf("create user %s: %w", email, apperrors.ErrConflict)
	default:
		return "", fmt.Errorf("create user: %w", err)
	}
}
