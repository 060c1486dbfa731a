package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(checks []Check) *Service {
	return New(checks, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestService_Uptime(t *testing.T) {
	svc := newTestService(nil)
	time.Sleep(10 * time.Millisecond)
	assert.Greater(t, svc.Uptime(), time.Duration(0))
}

func TestService_Readiness_AllHealthy(t *testing.T) {
	svc := newTestService([]Check{
		{Name: "postgres", Probe: func(ctx context.Context) error { return nil }},
		{Name: "redis", Probe: func(ctx context.Context) error { return nil }},
	})

	report := svc.Readiness(context.Background())

	assert.True(t, report.Ready)
	require.Len(t, report.Checks, 2)
	assert.Equal(t, "postgres", report.Checks[0].Name)
	assert.True(t, report.Checks[0].Ready)
	assert.True(t, report.Checks[1].Ready)
}

func TestService_Readiness_OneFailing(t *testing.T) {
	svc := newTestService([]Check{
		{Name: "postgres", Probe: func(ctx context.Context) error { return nil }},
		{Name: "redis", Probe: func(ctx context.Context) error {
			return errors.New("connection refused")
		}},
	})

	report := svc.Readiness(context.Background())

	// Одна неготовая зависимость делает неготовым весь сервис.
	assert.False(t, report.Ready)
	assert.True(t, report.Checks[0].Ready)
	assert.False(t, report.Checks[1].Ready)
	assert.Equal(t, "connection refused", report.Checks[1].Error)
}

func TestService_Readiness_HangingCheckTimesOut(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	svc := newTestService([]Check{
		// Проверка игнорирует контекст и висит до закрытия канала.
		{Name: "stuck", Probe: func(ctx context.Context) error {
			<-block
			return nil
		}},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	report := svc.Readiness(ctx)

	assert.False(t, report.Ready)
	assert.Equal(t, ErrCheckTimedOut.Error(), report.Checks[0].Error)
	// Проба отвечает по таймауту внешнего контекста, не ждёт зависимость.
	assert.Less(t, time.Since(start), time.Second)
}
