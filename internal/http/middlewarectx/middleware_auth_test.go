package middlewarectx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holidayheroes/holiday-heroes/internal/lib/jwt"
	"github.com/holidayheroes/holiday-heroes/internal/models"
)

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestJWTMiddleware(t *testing.T) {
	maker := jwt.NewMaker("test-secret", time.Hour)
	token, err := maker.GenerateToken("a@b.c", models.RoleUser, "uid-1")
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		wantStatusCode int
		wantNextCalled bool
	}{
		{"valid token", "Bearer " + token, http.StatusOK, true},
		{"missing header", "", http.StatusUnauthorized, false},
		{"not a bearer token", "Basic abc", http.StatusUnauthorized, false},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
				assert.Equal(t, "a@b.c", r.Context().Value(User))
				assert.Equal(t, models.RoleUser, r.Context().Value(Role))
				assert.Equal(t, "uid-1", r.Context().Value(UserUID))
			})

			handler := JWTMiddleware(maker, newNoopLogger())(next)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantNextCalled, nextCalled)
		})
	}
}

func TestJWTMiddleware_WrongSecret(t *testing.T) {
	otherMaker := jwt.NewMaker("other-secret", time.Hour)
	token, err := otherMaker.GenerateToken("a@b.c", models.RoleUser, "uid-1")
	require.NoError(t, err)

	maker := jwt.NewMaker("test-secret", time.Hour)
	handler := JWTMiddleware(maker, newNoopLogger())(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next must not be called")
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminOnlyMiddleware(t *testing.T) {
	maker := jwt.NewMaker("test-secret", time.Hour)

	tests := []struct {
		name           string
		role           string
		wantStatusCode int
		wantNextCalled bool
	}{
		{"admin passes", models.RoleAdmin, http.StatusOK, true},
		{"user is rejected", models.RoleUser, http.StatusForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken("a@b.c", tt.role, "uid-1")
			require.NoError(t, err)

			nextCalled := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				nextCalled = true
			})

			// Админский фильтр работает поверх JWT middleware.
			handler := JWTMiddleware(maker, newNoopLogger())(
				AdminOnlyMiddleware(newNoopLogger())(next))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, tt.wantNextCalled, nextCalled)
		})
	}
}

func TestAdminOnlyMiddleware_MissingRole(t *testing.T) {
	handler := AdminOnlyMiddleware(newNoopLogger())(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next must not be called")
		}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
