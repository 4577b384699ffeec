package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// UserProfile is a Minglr member. Following and Followers are derived from the follow relation.
type UserProfile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Avatar      string    `json:"avatar"`
	Email       string    `json:"email,omitempty"`
	Preferences []string  `json:"preferences"`
	Wishlist    []string  `json:"wishlist"`
	Following   []string  `json:"following"`
	Followers   []string  `json:"followers"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UserCompact is the subset of a profile embedded in other payloads
type UserCompact struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// ToCompact converts a profile to its compact form
func (u *UserProfile) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

// DefaultUserName is used when the identity provider has no display name.
const DefaultUserName = "New User"

// DefaultAvatarURL returns the generated avatar for users without a photo
func DefaultAvatarURL(userID string) string {
	return "https://i.pravatar.cc/150?u=" + userID
}

// NewProfile builds the profile created on first sign-in.
func NewProfile(id, name, avatar, email string) *UserProfile {
	if name == "" {
		name = DefaultUserName
	}
	if avatar == "" {
		avatar = DefaultAvatarURL(id)
	}
	return &UserProfile{
		ID:          id,
		Name:        name,
		Avatar:      avatar,
		Email:       email,
		Preferences: []string{},
		Wishlist:    []string{},
		Following:   []string{},
		Followers:   []string{},
	}
}

// ProfileUpdate lists the fields a profile update may change. Nil fields are left untouched.
type ProfileUpdate struct {
	Name        *string
	Avatar      *string
	Preferences []string
}

// UpdateProfileRequest defines the request body for updating the caller's profile
type UpdateProfileRequest struct {
	Name        *string  `json:"name,omitempty" validate:"omitempty,min=1,max=60"`
	Avatar      *string  `json:"avatar,omitempty" validate:"omitempty,url"`
	Preferences []string `json:"preferences,omitempty" validate:"omitempty,max=20,dive,min=1,max=40"`
}

// SignupRequest defines the request body for creating an account
type SignupRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"displayName" validate:"omitempty,max=60"`
}

// JwtCustomClaims are the claims of a Minglr session token
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
