package ready

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/holidayheroes/holiday-heroes/internal/services/health"
)

type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) Readiness(ctx context.Context) health.Report {
	args := m.Called(ctx)
	return args.Get(0).(health.Report)
}

func TestReadyHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name           string
		report         health.Report
		wantStatusCode int
	}{
		{
			name: "all dependencies ready",
			report: health.Report{
				Ready: true,
				Checks: []health.Status{
					{Name: "postgres", Ready: true},
					{Name: "redis", Ready: true},
				},
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "dependency down",
			report: health.Report{
				Ready: false,
				Checks: []health.Status{
					{Name: "postgres", Ready: true},
					{Name: "redis", Ready: false, Error: "timed out"},
				},
			},
			wantStatusCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(ServiceMock)
			svc.On("Readiness", mock.Anything).Return(tt.report).Once()

			handler := New(svc)

			req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatusCode, rec.Code)
			assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

			var got health.Report
			assert.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.report.Ready, got.Ready)
			assert.Len(t, got.Checks, len(tt.report.Checks))

			svc.AssertExpectations(t)
		})
	}
}
