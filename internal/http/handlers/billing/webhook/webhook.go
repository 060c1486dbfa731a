// Package webhook реализует HTTP-обработчик вебхуков платёжного провайдера.
//
// Тело запроса читается сырым: подпись из заголовка Stripe-Signature
// проверяется до любого разбора. Событие подтверждается (200) только
// после того, как его эффект надёжно записан в хранилище; повторные
// и устаревшие события подтверждаются без изменения состояния.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/holidayheroes/holiday-heroes/internal/http/response"
	"github.com/holidayheroes/holiday-heroes/internal/lib/sl"
	"github.com/holidayheroes/holiday-heroes/internal/paymentgateway"
)

// maxBodySize ограничивает тело вебхука. Stripe документирует
// максимальный размер события существенно меньше этого значения.
const maxBodySize = 1 << 20

// Handler управляет HTTP-запросами вебхуков.
type Handler struct {
	log     *slog.Logger
	gateway Gateway
	service Service
}

// Gateway проверяет подпись и разбирает событие провайдера.
type Gateway interface {
	ConstructWebhookEvent(rawBody []byte, signature string) (*paymentgateway.Event, error)
}

// Service применяет событие к локальному состоянию подписки.
type Service interface {
	ProcessWebhookEvent(ctx context.Context, ev *paymentgateway.Event) error
}

// New создает новый Handler с переданными логгером, адаптером и сервисом.
func New(log *slog.Logger, gateway Gateway, service Service) *Handler {
	return &Handler{log: log, gateway: gateway, service: service}
}

// ServeHTTP godoc
// @Summary Принять вебхук платёжного провайдера
// @Description Проверяет подпись Stripe-Signature и применяет событие к подписке.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Success 200 {object} map[string]any "Событие обработано"
// @Failure 400 {object} response.ErrorResponse "Неверная подпись или тело"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера, событие будет доставлено повторно"
// @Router /billing/webhook [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	rawBody, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		log.Error("failed to read webhook body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("failed to read request body"))
		return
	}

	event, err := h.gateway.ConstructWebhookEvent(rawBody, r.Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, paymentgateway.ErrSignatureVerification) {
			log.Warn("webhook signature verification failed")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid signature"))
			return
		}
		log.Error("failed to construct webhook event", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid webhook payload"))
		return
	}

	if err := h.service.ProcessWebhookEvent(r.Context(), event); err != nil {
		// Сбой хранилища: отвечаем 500, провайдер повторит доставку.
		log.Error("failed to process webhook event",
			slog.String("event_id", event.ID), sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to process event"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"received": true,
	}))
}
