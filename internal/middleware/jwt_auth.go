package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/session"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
)

// ProfileResolver loads the profile behind a session token.
type ProfileResolver interface {
	GetProfile(ctx context.Context, id string) (*models.UserProfile, error)
}

// IssueToken signs a session token for profile.
func IssueToken(secret string, ttl time.Duration, profile *models.UserProfile, now time.Time) (string, error) {
	claims := &models.JwtCustomClaims{
		UserID: profile.ID,
		Email:  profile.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken validates a session token and returns its claims.
func ParseToken(secret, tokenString string) (*models.JwtCustomClaims, error) {
	claims := &models.JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// JWTAuthMiddleware checks for a valid session JWT and puts the caller's principal on the request context.
// Websocket clients may pass the token as the "token" query parameter.
func JWTAuthMiddleware(secret string, resolver ProfileResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString := c.QueryParam("token")
			if tokenString == "" {
				var err error
				if tokenString, err = bearerToken(c.Request().Header.Get("Authorization")); err != nil {
					return err
				}
			}

			claims, err := ParseToken(secret, tokenString)
			if err != nil {
				if errors.Is(err, jwt.ErrSignatureInvalid) {
					return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token signature")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
			}

			ctx := c.Request().Context()
			principal := session.Principal{UserID: claims.UserID, Email: claims.Email}
			profile, err := resolver.GetProfile(ctx, claims.UserID)
			switch {
			case err == nil:
				principal.Name = profile.Name
				principal.Avatar = profile.Avatar
			case errors.Is(err, apperrors.ErrNotFound):
				return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
			default:
				return echo.NewHTTPError(http.StatusInternalServerError, "Something went wrong, please try again")
			}

			c.Set("user", claims)
			c.SetRequest(c.Request().WithContext(session.WithPrincipal(ctx, principal)))

			return next(c)
		}
	}
}
