// Package holidayheroes собирает основное HTTP-приложение: хранилище,
// кеш, брокер уведомлений, платёжный шлюз и все сервисы.
package holidayheroes

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/holidayheroes/holiday-heroes/internal/cache"
	"github.com/holidayheroes/holiday-heroes/internal/config"
	"github.com/holidayheroes/holiday-heroes/internal/lib/jwt"
	"github.com/holidayheroes/holiday-heroes/internal/lib/oauth"
	"github.com/holidayheroes/holiday-heroes/internal/lib/pii"
	"github.com/holidayheroes/holiday-heroes/internal/lib/sl"
	"github.com/holidayheroes/holiday-heroes/internal/migrations"
	"github.com/holidayheroes/holiday-heroes/internal/paymentgateway"
	"github.com/holidayheroes/holiday-heroes/internal/rabbitmq"
	authservice "github.com/holidayheroes/holiday-heroes/internal/services/auth"
	billingservice "github.com/holidayheroes/holiday-heroes/internal/services/billing"
	healthservice "github.com/holidayheroes/holiday-heroes/internal/services/health"
	"github.com/holidayheroes/holiday-heroes/internal/services/notifier"
	providerservice "github.com/holidayheroes/holiday-heroes/internal/services/provider"
	userservice "github.com/holidayheroes/holiday-heroes/internal/services/user"
	"github.com/holidayheroes/holiday-heroes/internal/storage/repository"
)

// expirySweepInterval — период фоновой проверки истёкших подписок.
const expirySweepInterval = time.Hour

// App представляет основное приложение HolidayHeroes.
type App struct {
	server  *http.Server
	logger  *slog.Logger
	db      *repository.Storage
	cache   *cache.Cache
	billing *billingservice.Service
	conn    *amqp.Connection
	ch      *amqp.Channel
}

// New собирает приложение: подключает зависимости, прогоняет миграции
// и регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		closeBroker(nil, conn, logger)
		return nil, err
	}

	piiKey, err := cfg.PIIKey()
	if err != nil {
		closeBroker(ch, conn, logger)
		return nil, err
	}
	codec, err := pii.New(piiKey)
	if err != nil {
		closeBroker(ch, conn, logger)
		return nil, err
	}

	jwtMaker := jwt.NewMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	oauthProvider := oauth.NewProvider(cfg.GoogleOAuth)
	gateway := paymentgateway.New(cfg.Stripe, logger)
	notif := notifier.New(ch, logger)

	authService := authservice.New(db, jwtMaker, oauthProvider, logger)
	userService := userservice.New(db, codec, logger)
	providerService := providerservice.New(db, cacheRedis, logger)
	billingService := billingservice.New(db, db, gateway, notif, cfg.Stripe, logger)
	healthService := healthservice.New([]healthservice.Check{
		{Name: "postgres", Probe: db.CheckReady},
		{Name: "redis", Probe: func(ctx context.Context) error {
			return cacheRedis.Db.Ping(ctx).Err()
		}},
	}, logger)

	router := chi.NewRouter()

	RegisterRoutes(router, logger, jwtMaker,
		authService, userService, providerService, billingService,
		gateway, healthService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:  srv,
		logger:  logger,
		db:      db,
		cache:   cacheRedis,
		billing: billingService,
		conn:    conn,
		ch:      ch,
	}, nil
}

// Run запускает HTTP-сервер и фоновую проверку истёкших подписок,
// останавливает всё по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	go a.runExpirySweep(ctx)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		closeBroker(a.ch, a.conn, a.logger)
		if cerr := a.db.DB.Close(); cerr != nil {
			a.logger.Error("failed to close database", sl.Err(cerr))
		}
		return err
	}
}

// runExpirySweep периодически переводит подписки с истёкшим периодом
// в статус expired.
func (a *App) runExpirySweep(ctx context.Context) {
	ticker := time.NewTicker(expirySweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.billing.ExpireLapsed(ctx)
			if err != nil {
				a.logger.Error("expiry sweep failed", sl.Err(err))
				continue
			}
			if n > 0 {
				a.logger.Info("expired lapsed subscriptions", slog.Int("count", n))
			}
		}
	}
}

func closeBroker(ch *amqp.Channel, conn *amqp.Connection, logger *slog.Logger) {
	if ch != nil {
		if err := ch.Close(); err != nil {
			logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			logger.Error("failed to close connection", sl.Err(err))
		}
	}
}
