// Package checkout реализует HTTP-обработчик начала оформления подписки.
// Возвращает адрес hosted-страницы оплаты платёжного провайдера.
package checkout

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
	"github.com/holidayheroes/holiday-heroes/internal/paymentgateway"
	"github.com/holidayheroes/holiday-heroes/internal/services/billing"
)

// Handler управляет HTTP-запросами начала чекаута.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики начала чекаута.
type Service interface {
	StartCheckout(ctx context.Context, userUID string) (string, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Начать оформление подписки
// @Description Создает чекаут-сессию у платёжного провайдера и возвращает адрес страницы оплаты.
// @Tags Billing
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} map[string]any "Адрес страницы оплаты"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Подписка уже действует"
// @Failure 502 {object} response.ErrorResponse "Платёжный провайдер недоступен"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /billing/checkout [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.checkout"
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

	url, err := h.service.StartCheckout(r.Context(), userUID)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrAlreadySubscribed):
			log.Warn("user already subscribed", slog.String("user_uid", userUID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("subscription already active"))
		case errors.Is(err, paymentgateway.ErrGatewayUnconfigured),
			errors.Is(err, paymentgateway.ErrConfiguration):
			log.Error("payment gateway is not configured", sl.Err(err))
			w.WriteHeader(http.StatusBadGateway)
			render.JSON(w, r, response.Error("payments are temporarily unavailable"))
		default:
			log.Error("failed to start checkout", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to start checkout"))
		}
		return
	}

	log.Info("checkout started", slog.String("user_uid", userUID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"checkout_url": url,
	}))
}
