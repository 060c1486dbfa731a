// Package oauth реализует HTTP-обработчики входа через Google:
// редирект на страницу согласия и колбэк с кодом авторизации.
// Параметр state хранится в коротко живущей cookie и сверяется
// в колбэке для защиты от CSRF.
package oauth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/holidayheroes/holiday-heroes/internal/http/response"
	"github.com/holidayheroes/holiday-heroes/internal/lib/sl"
)

const stateCookieName = "oauth_state"

// Handler управляет входом через Google.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс бизнес-логики входа через Google.
type Service interface {
	OAuthURL(state string) string
	OAuthLogin(ctx context.Context, code string) (string, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// Redirect godoc
// @Summary Начать вход через Google
// @Description Перенаправляет на страницу согласия Google.
// @Tags Auth
// @Success 307 "Редирект на Google"
// @Router /auth/google [get]
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.oauth.redirect"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
	_ = log

	state := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.OAuthURL(state), http.StatusTemporaryRedirect)
}

// Callback godoc
// @Summary Завершить вход через Google
// @Description Обменивает код авторизации на JWT сервиса.
// @Tags Auth
// @Produce  json
// @Param state query string true "CSRF state"
// @Param code query string true "Код авторизации"
// @Success 200 {object} map[string]any "Токен выпущен"
// @Failure 400 {object} response.ErrorResponse "Неверный state или код"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /auth/google/callback [get]
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.oauth.callback"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		log.Error("oauth state mismatch")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid oauth state"))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		log.Error("oauth code missing")
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("authorization code missing"))
		return
	}

	token, err := h.service.OAuthLogin(r.Context(), code)
	if err != nil {
		log.Error("failed to complete oauth login", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("failed to complete oauth login"))
		return
	}

	log.Info("oauth login completed")
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"token": token,
	}))
}
