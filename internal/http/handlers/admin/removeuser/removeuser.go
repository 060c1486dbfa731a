// Package removeuser реализует HTTP-обработчик удаления учётной записи.
//
// Администратор не может удалить сам себя (403), последний администратор
// не удаляется никем (409).
package removeuser

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/holidayheroes/holiday-heroes/internal/http/middlewarectx"
	"github.com/holidayheroes/holiday-heroes/internal/http/response"
	"github.com/holidayheroes/holiday-heroes/internal/lib/sl"
	"github.com/holidayheroes/holiday-heroes/internal/services/user"
)

// Handler управляет HTTP-запросами удаления пользователя.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики удаления пользователя.
type Service interface {
	DeleteUser(ctx context.Context, actorUID, targetUID string) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Удалить пользователя
// @Description Удаляет учётную запись (только для администраторов).
// @Tags Admin
// @Produce  json
// @Security BearerAuth
// @Param uid path string true "UID пользователя"
// @Success 200 {object} map[string]any "Пользователь удалён"
// @Failure 403 {object} response.ErrorResponse "Самоудаление запрещено"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 409 {object} response.ErrorResponse "Последний администратор"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /admin/users/{uid} [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.removeuser"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	actorUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || actorUID == "" {
		log.Error("actor uid not found in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	targetUID := chi.URLParam(r, "uid")
	if targetUID == "" {
		log.Error("target uid missing in url")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("user uid is required"))
		return
	}

	if err := h.service.DeleteUser(r.Context(), actorUID, targetUID); err != nil {
		switch {
		case errors.Is(err, user.ErrSelfDeletion):
			log.Warn("admin attempted self-deletion", slog.String("actor_uid", actorUID))
			w.WriteHeader(http.StatusForbidden)
			render.JSON(w, r, response.Error("administrators cannot delete their own account"))
		case errors.Is(err, user.ErrLastAdmin):
			log.Warn("attempt to delete the last admin", slog.String("target_uid", targetUID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("cannot delete the last administrator"))
		case errors.Is(err, user.ErrUserNotFound):
			log.Warn("user not found", slog.String("target_uid", targetUID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
		default:
			log.Error("failed to delete user", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("failed to delete user"))
		}
		return
	}

	log.Info("user deleted", slog.String("target_uid", targetUID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"message": "user deleted successfully",
	}))
}
