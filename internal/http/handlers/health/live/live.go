// Package live реализует HTTP-обработчик пробы живости.
// Отвечает 200 всегда, пока процесс принимает запросы: зависимости
// здесь не опрашиваются.
package live

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/holidayheroes/holiday-heroes/internal/http/response"
)

// Handler управляет HTTP-запросами пробы живости.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service отдаёт время работы процесса.
type Service interface {
	Uptime() time.Duration
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Проба живости
// @Description Возвращает 200 и время работы процесса.
// @Tags Health
// @Produce  json
// @Success 200 {object} map[string]any "Процесс жив"
// @Router /health/live [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"alive":  true,
		"uptime": h.service.Uptime().String(),
	}))
}
