// Package changerole реализует HTTP-обработчик смены роли пользователя.
//
// Понижение последнего администратора отклоняется с 409: система
// никогда не остается без администраторов.
package changerole

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/holidayheroes/holiday-heroes/internal/http/response"
	"github.com/holidayheroes/holiday-heroes/internal/lib/sl"
	"github.com/holidayheroes/holiday-heroes/internal/models"
	"github.com/holidayheroes/holiday-heroes/internal/services/user"
)

// Handler управляет HTTP-запросами смены роли.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает интерфейс бизнес-логики смены роли.
type Service interface {
	ChangeRole(ctx context.Context, targetUID, newRole string) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Сменить роль пользователя
// @Description Назначает пользователю роль user или admin (только для администраторов).
// @Tags Admin
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param uid path string true "UID пользователя"
// @Param request body models.DummyChangeRole true "Новая роль"
// @Success 200 {object} map[string]any "Роль изменена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 409 {object} response.ErrorResponse "Последний администратор"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/users/{uid}/role [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.changerole"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	targetUID := chi.URLParam(r, "uid")
	if targetUID == "" {
		log.Error("target uid missing in url")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("user uid is required"))
		return
	}

	var req models.DummyChangeRole
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.service.ChangeRole(r.Context(), targetUID, req.Role); err != nil {
		switch {
		case errors.Is(err, user.ErrLastAdmin):
			log.Warn("attempt to demote the last admin", slog.String("target_uid", targetUID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("cannot demote the last administrator"))
		case errors.Is(err, user.ErrUserNotFound):
			log.Warn("user not found", slog.String("target_uid", targetUID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		default:
			log.Error("failed to change role", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to change role"))
		}
		return
	}

	log.Info("role changed", slog.String("target_uid", targetUID), slog.String("role", req.Role))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "role changed successfully",
	}))
}
