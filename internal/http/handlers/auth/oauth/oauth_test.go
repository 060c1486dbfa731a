package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) OAuthURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockService) OAuthLogin(ctx context.Context, code string) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandler_Redirect(t *testing.T) {
	service := new(MockService)
	service.On("OAuthURL", mock.AnythingOfType("string")).
		Return("https://accounts.google.com/o/oauth2/auth?state=x")

	handler := New(discardLogger(), service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/google", nil)
	rr := httptest.NewRecorder()
	handler.Redirect(rr, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rr.Code)

	var stateCookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == stateCookieName {
			stateCookie = c
		}
	}
	require.NotNil(t, stateCookie, "state cookie must be set")
	assert.NotEmpty(t, stateCookie.Value)
	assert.True(t, stateCookie.HttpOnly)
	service.AssertExpectations(t)
}

func TestHandler_Callback(t *testing.T) {
	tests := []struct {
		name           string
		cookieState    string
		queryState     string
		code           string
		mockSetup      func(m *MockService)
		expectedStatus int
		expectedError  string
	}{
		{
			name:        "успешный вход",
			cookieState: "state-1",
			queryState:  "state-1",
			code:        "code-1",
			mockSetup: func(m *MockService) {
				m.On("OAuthLogin", mock.Anything, "code-1").Return("jwt-token", nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "state не совпадает",
			cookieState:    "state-1",
			queryState:     "state-2",
			code:           "code-1",
			mockSetup:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid oauth state",
		},
		{
			name:           "отсутствует код авторизации",
			cookieState:    "state-1",
			queryState:     "state-1",
			code:           "",
			mockSetup:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "authorization code missing",
		},
		{
			name:        "ошибка обмена кода",
			cookieState: "state-1",
			queryState:  "state-1",
			code:        "bad-code",
			mockSetup: func(m *MockService) {
				m.On("OAuthLogin", mock.Anything, "bad-code").
					Return("", errors.New("exchange failed"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "failed to complete oauth login",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockService)
			tt.mockSetup(service)
			handler := New(discardLogger(), service)

			req := httptest.NewRequest(http.MethodGet,
				"/api/v1/auth/google/callback?state="+tt.queryState+"&code="+tt.code, nil)
			req.AddCookie(&http.Cookie{Name: stateCookieName, Value: tt.cookieState})
			rr := httptest.NewRecorder()
			handler.Callback(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			if tt.expectedError != "" {
				assert.Equal(t, tt.expectedError, body["error"])
			} else {
				data, ok := body["data"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "jwt-token", data["token"])
			}
			service.AssertExpectations(t)
		})
	}
}
