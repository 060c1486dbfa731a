// Package ready реализует HTTP-обработчик пробы готовности.
// Отвечает 200, когда готовы все зависимости, и 503, когда хотя бы
// одна не готова. В обоих случаях тело содержит отчёт по проверкам.
package ready

import (
	"context"
	"net/http"

	"github.com/go-chi/render"

	"github.com/holidayheroes/holiday-heroes/internal/services/health"
)

// Handler управляет HTTP-запросами пробы готовности.
type Handler struct {
	service Service
}

// Service опрашивает зависимости и агрегирует результат.
type Service interface {
	Readiness(ctx context.Context) health.Report
}

// New создает новый Handler с переданным сервисом.
func New(service Service) *Handler {
	return &Handler{service: service}
}

// ServeHTTP godoc
// @Summary Проба готовности
// @Description Опрашивает зависимости и возвращает агрегированный отчёт.
// @Tags Health
// @Produce  json
// @Success 200 {object} health.Report "Все зависимости готовы"
// @Failure 503 {object} health.Report "Хотя бы одна зависимость не готова"
// @Router /health/ready [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.service.Readiness(r.Context())

	w.Header().Set("Cache-Control", "no-store")
	if !report.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	render.JSON(w, r, report)
}
