package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/holidayheroes/holiday-heroes/internal/paymentgateway"
)

type GatewayMock struct {
	mock.Mock
}

func (m *GatewayMock) ConstructWebhookEvent(rawBody []byte, signature string) (*paymentgateway.Event, error) {
	args := m.Called(rawBody, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentgateway.Event), args.Error(1)
}

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) ProcessWebhookEvent(ctx context.Context, ev *paymentgateway.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestWebhookHandler_ServeHTTP(t *testing.T) {
	event := &paymentgateway.Event{ID: "evt_1", Kind: paymentgateway.EventPaymentSucceeded}

	tests := []struct {
		name           string
		setupMocks     func(gw *GatewayMock, svc *ServiceMock)
		wantStatusCode int
		wantError      string
	}{
		{
			name: "valid event is acknowledged",
			setupMocks: func(gw *GatewayMock, svc *ServiceMock) {
				gw.On("ConstructWebhookEvent", mock.Anything, "sig").Return(event, nil).Once()
				svc.On("ProcessWebhookEvent", mock.Anything, event).Return(nil).Once()
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "invalid signature is rejected before processing",
			setupMocks: func(gw *GatewayMock, svc *ServiceMock) {
				gw.On("ConstructWebhookEvent", mock.Anything, "sig").
					Return(nil, paymentgateway.ErrSignatureVerification).Once()
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid signature",
		},
		{
			name: "malformed payload",
			setupMocks: func(gw *GatewayMock, svc *ServiceMock) {
				gw.On("ConstructWebhookEvent", mock.Anything, "sig").
					Return(nil, errors.New("unexpected end of JSON input")).Once()
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "invalid webhook payload",
		},
		{
			name: "storage failure returns 500 for redelivery",
			setupMocks: func(gw *GatewayMock, svc *ServiceMock) {
				gw.On("ConstructWebhookEvent", mock.Anything, "sig").Return(event, nil).Once()
				svc.On("ProcessWebhookEvent", mock.Anything, event).
					Return(errors.New("database is down")).Once()
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      "failed to process event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := new(GatewayMock)
			svc := new(ServiceMock)
			tt.setupMocks(gw, svc)

			handler := New(newNoopLogger(), gw, svc)

			req := httptest.NewRequest(http.MethodPost, "/billing/webhook",
				bytes.NewReader([]byte(`{"id":"evt_1"}`)))
			req.Header.Set("Stripe-Signature", "sig")
			req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "reqid123"))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)

			var got map[string]any
			assert.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, got["error"])
			}

			gw.AssertExpectations(t)
			svc.AssertExpectations(t)

			// Подпись не сошлась или тело не разобралось — до сервиса
			// событие не доходит.
			if tt.wantStatusCode == http.StatusBadRequest {
				svc.AssertNotCalled(t, "ProcessWebhookEvent", mock.Anything, mock.Anything)
			}
		})
	}
}
