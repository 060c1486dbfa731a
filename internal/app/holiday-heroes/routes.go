// Package holidayheroes предоставляет маршруты для основного приложения.
package holidayheroes

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/holidayheroes/holiday-heroes/internal/http/handlers/admin/changerole"
	"github.com/holidayheroes/holiday-heroes/internal/http/handlers/admin/removeuser"
	"github.com/holidayheroes/holiday-heroes/internal/http/handlers/admin/userlist"
	"github.com/holidayheroes/holiday-heroes/internal/http/handlers/auth/login"
	"github.com/holidayheroes/holiday-heroes/internal/http/handlers/auth/oauth"
	"github.com/holidayheroes/holiday-heroes/internal/http/handlers/auth/register"
	"github.com/holidayheroes/holiday-heroes/internal/http/handlers/billing/cancel"
	"github.com/holidayheroes/holiday-heroes/internal/http/handlers/billing/checkout"
	"github.com/holidayheroes/holiday-heroes/internal/http/handlers/billing/current"
	"github.com/holidayheroes/holiday-heroes/internal/http/handlers/billing/webhook"
	"github.com/holidayheroes/holiday-heroes/internal/http/handlers/health/live"
	"github.com/holidayheroes/holiday-heroes/internal/http/handlers/health/ready"
	"github.com/holidayheroes/holiday-heroes/internal/http/handlers/profile/me"
	profileupdate "github.com/holidayheroes/holiday-heroes/internal/http/handlers/profile/update"
	providercreate "github.com/holidayheroes/holiday-heroes/internal/http/handlers/provider/create"
	providerlist "github.com/holidayheroes/holiday-heroes/internal/http/handlers/provider/list"
	providerread "github.com/holidayheroes/holiday-heroes/internal/http/handlers/provider/read"
	"github.com/holidayheroes/holiday-heroes/internal/http/middlewarectx"
	"github.com/holidayheroes/holiday-heroes/internal/lib/jwt"
	"github.com/holidayheroes/holiday-heroes/internal/paymentgateway"
	authservice "github.com/holidayheroes/holiday-heroes/internal/services/auth"
	billingservice "github.com/holidayheroes/holiday-heroes/internal/services/billing"
	healthservice "github.com/holidayheroes/holiday-heroes/internal/services/health"
	providerservice "github.com/holidayheroes/holiday-heroes/internal/services/provider"
	userservice "github.com/holidayheroes/holiday-heroes/internal/services/user"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, jwtMaker jwt.Maker,
	authService *authservice.Service, userService *userservice.Service,
	providerService *providerservice.Service, billingService *billingservice.Service,
	gateway *paymentgateway.Client, healthService *healthservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, authService).ServeHTTP)
		r.Post("/login", login.New(logger, authService).ServeHTTP)

		oauthHandler := oauth.New(logger, authService)
		r.Get("/auth/google", oauthHandler.Redirect)
		r.Get("/auth/google/callback", oauthHandler.Callback)

		// Каталог организаторов открыт без аутентификации
		r.Get("/providers", providerlist.New(logger, providerService).ServeHTTP)
		r.Get("/providers/{id}", providerread.New(logger, providerService).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Get("/profile", me.New(logger, userService).ServeHTTP)
			r.Put("/profile", profileupdate.New(logger, userService).ServeHTTP)
			r.Post("/billing/checkout", checkout.New(logger, billingService).ServeHTTP)
			r.Get("/billing/subscription", current.New(logger, billingService).ServeHTTP)
			r.Post("/billing/cancel", cancel.New(logger, billingService).ServeHTTP)
		})

		// Административная группа
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.AdminOnlyMiddleware(logger))
			r.Get("/admin/users", userlist.New(logger, userService).ServeHTTP)
			r.Patch("/admin/users/{uid}/role", changerole.New(logger, userService).ServeHTTP)
			r.Delete("/admin/users/{uid}", removeuser.New(logger, userService).ServeHTTP)
			r.Post("/admin/providers", providercreate.New(logger, providerService).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации)
		r.Post("/payments/webhook", webhook.New(logger, gateway, billingService).ServeHTTP)
	})

	r.Get("/healthz", live.New(logger, healthService).ServeHTTP)
	r.Get("/readyz", ready.New(healthService).ServeHTTP)

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
