// Package current реализует HTTP-обработчик чтения текущей подписки.
package current

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/holidayheroes/holiday-heroes/internal/http/middlewarectx"
	"github.com/holidayheroes/holiday-heroes/internal/http/response"
	"github.com/holidayheroes/holiday-heroes/internal/lib/sl"
	"github.com/holidayheroes/holiday-heroes/internal/models"
	"github.com/holidayheroes/holiday-heroes/internal/services/billing"
)

// Handler управляет HTTP-запросами чтения подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики чтения подписки.
type Service interface {
	GetCurrent(ctx context.Context, userUID string) (*models.SubscriptionView, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Получить текущую подписку
// @Description Возвращает статус и границы периода текущей подписки пользователя.
// @Tags Billing
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Текущая подписка"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 404 {object} response.ErrorResponse "Подписки нет"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /billing/subscription [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.current"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	view, err := h.service.GetCurrent(r.Context(), userUID)
	if err != nil {
		if errors.Is(err, billing.ErrNoSubscription) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("no subscription found"))
			return
		}
		log.Error("failed to get subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to get subscription"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(view))
}
