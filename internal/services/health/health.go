// Package health реализует пробы живости и готовности сервиса.
// Живость отвечает всегда, пока процесс принимает запросы. Готовность
// опрашивает зависимости и агрегирует результат: сервис готов, только
// когда готова каждая из них.
package health

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/holidayheroes/holiday-heroes/internal/lib/sl"
)

// ErrCheckTimedOut подставляется вместо ответа зависшей зависимости.
var ErrCheckTimedOut = errors.New("timed out")

// checkTimeout — потолок ожидания одной зависимости. Зависшая проверка
// не должна удерживать ответ пробы дольше этого времени.
const checkTimeout = 5 * time.Second

// Check — одна проверка готовности зависимости.
type Check struct {
	Name string
	// Probe возвращает nil, когда зависимость готова принимать работу.
	Probe func(ctx context.Context) error
}

// Status — результат одной проверки в отчёте готовности.
type Status struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// Report — агрегированный отчёт пробы готовности.
type Report struct {
	Ready  bool     `json:"ready"`
	Checks []Status `json:"checks"`
}

// Service реализует пробы живости и готовности.
type Service struct {
	checks    []Check
	startedAt time.Time
	log       *slog.Logger
}

// New создает сервис проб. Порядок checks сохраняется в отчёте.
func New(checks []Check, log *slog.Logger) *Service {
	return &Service{
		checks:    checks,
		startedAt: time.Now().UTC(),
		log:       log,
	}
}

// Uptime возвращает время с момента старта процесса.
func (s *Service) Uptime() time.Duration {
	return time.Since(s.startedAt)
}

// Readiness опрашивает все зависимости и агрегирует результат.
// Каждая проверка ограничена checkTimeout: ответ зависшей зависимости
// заменяется ошибкой "timed out", остальные проверки не блокируются.
func (s *Service) Readiness(ctx context.Context) Report {
	report := Report{Ready: true, Checks: make([]Status, len(s.checks))}

	for i, check := range s.checks {
		status := Status{Name: check.Name, Ready: true}
		if err := s.runProbe(ctx, check); err != nil {
			status.Ready = false
			status.Error = err.Error()
			report.Ready = false
			s.log.Warn("readiness check failed",
				slog.String("check", check.Name), sl.Err(err))
		}
		report.Checks[i] = status
	}
	return report
}

// runProbe выполняет проверку в отдельной горутине, чтобы проба
// отвечала и тогда, когда зависимость не уважает контекст.
func (s *Service) runProbe(ctx context.Context, check Check) error {
	probeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- check.Probe(probeCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-probeCtx.Done():
		return ErrCheckTimedOut
	}
}
