// Package read реализует HTTP-обработчик чтения одного организатора.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/holidayheroes/holiday-heroes/internal/http/response"
	"github.com/holidayheroes/holiday-heroes/internal/lib/sl"
	"github.com/holidayheroes/holiday-heroes/internal/models"
	"github.com/holidayheroes/holiday-heroes/internal/services/provider"
)

// Handler управляет HTTP-запросами чтения организатора.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики чтения организатора.
type Service interface {
	Read(ctx context.Context, id int) (*models.Provider, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить организатора
// @Description Возвращает одного организатора каталога по ID.
// @Tags Providers
// @Produce  json
// @Param id path int true "ID организатора"
// @Success 200 {object} map[string]any "Организатор"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Организатор не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /providers/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.provider.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		log.Error("invalid provider id")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid provider id"))
		return
	}

	p, err := h.service.Read(r.Context(), id)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotFound) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("provider not found"))
			return
		}
		log.Error("failed to read provider", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to read provider"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(p))
}
