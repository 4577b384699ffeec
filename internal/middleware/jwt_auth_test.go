package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/session"
)

type profiles map[string]*models.UserProfile

func (p profiles) GetProfile(_ context.Context, id string) (*models.UserProfile, error) {
	if u, ok := p[id]; ok {
		return u, nil
	}
	return nil, apperrors.ErrNotFound
}

func serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, session.Principal) {
	t.Helper()
	var got session.Principal
	e := echo.New()
	e.GET("/", func(c echo.Context) error {
		got, _ = session.FromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	}, JWTAuthMiddleware("secret", profiles{"u1": {ID: "u1", Name: "Ann", Avatar: "a.png"}}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, got
}

func TestJWTAuthMiddlewareSetsPrincipal(t *testing.T) {
	tok, err := IssueToken("secret", time.Hour, &models.UserProfile{ID: "u1", Email: "ann@minglr.app"}, time.Now())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	rec, p := serve(t, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.Principal{UserID: "u1", Name: "Ann", Avatar: "a.png", Email: "ann@minglr.app"}, p)
}

func TestJWTAuthMiddlewareAcceptsQueryToken(t *testing.T) {
	tok, err := IssueToken("secret", time.Hour, &models.UserProfile{ID: "u1"}, time.Now())
	require.NoError(t, err)

	rec, p := serve(t, httptest.NewRequest(http.MethodGet, "/?token="+tok, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", p.UserID)
}

func TestJWTAuthMiddlewareRejects(t *testing.T) {
	expired, err := IssueToken("secret", time.Hour, &models.UserProfile{ID: "u1"}, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	otherKey, err := IssueToken("other", time.Hour, &models.UserProfile{ID: "u1"}, time.Now())
	require.NoError(t, err)
	unknown, err := IssueToken("secret", time.Hour, &models.UserProfile{ID: "ghost"}, time.Now())
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":    "",
		"not bearer": "Basic abc",
		"expired":    "Bearer " + expired,
		"wrong key":  "Bearer " + otherKey,
		"no profile": "Bearer " + unknown,
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set(echo.HeaderAuthorization, header)
			}
			rec, p := serve(t, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Empty(t, p.UserID)
		})
	}
}
