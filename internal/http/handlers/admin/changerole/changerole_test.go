package changerole

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/holidayheroes/holiday-heroes/internal/services/user"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) ChangeRole(ctx context.Context, targetUID, newRole string) error {
	args := m.Called(ctx, targetUID, newRole)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestChangeRoleHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		mockErr        error
		expectCall     bool
		wantStatusCode int
		wantError      string
	}{
		{
			name:           "role changed",
			body:           `{"role":"admin"}`,
			expectCall:     true,
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "invalid json body",
			body:           "not a json",
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid request body",
		},
		{
			name:           "unknown role is rejected by validation",
			body:           `{"role":"root"}`,
			wantStatusCode: http.StatusUnprocessableEntity,
			wantError:      "field Role must be one of: user admin",
		},
		{
			name:           "last admin cannot be demoted",
			body:           `{"role":"user"}`,
			mockErr:        user.ErrLastAdmin,
			expectCall:     true,
			wantStatusCode: http.StatusConflict,
			wantError:      "cannot demote the last administrator",
		},
		{
			name:           "user not found",
			body:           `{"role":"user"}`,
			mockErr:        user.ErrUserNotFound,
			expectCall:     true,
			wantStatusCode: http.StatusNotFound,
			wantError:      "user not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			if tt.expectCall {
				svc.On("ChangeRole", mock.Anything, "uid-2", mock.Anything).
					Return(tt.mockErr).Once()
			}

			handler := New(newNoopLogger(), svc)

			req := httptest.NewRequest(http.MethodPatch, "/admin/users/uid-2/role",
				bytes.NewReader([]byte(tt.body)))

			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("uid", "uid-2")
			ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
			ctx = context.WithValue(ctx, middleware.RequestIDKey, "reqid123")
			req = req.WithContext(ctx)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var got map[string]any
			assert.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			}

			svc.AssertExpectations(t)
		})
	}
}
