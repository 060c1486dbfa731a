package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/holidayheroes/holiday-heroes/internal/config"
	"github.com/holidayheroes/holiday-heroes/internal/lib/sl"
	"github.com/holidayheroes/holiday-heroes/internal/models"
	"github.com/holidayheroes/holiday-heroes/internal/paymentgateway"
	"github.com/holidayheroes/holiday-heroes/internal/storage/repository"
)

var (
	// ErrAlreadySubscribed возвращается при попытке начать чекаут,
	// когда у пользователя уже есть действующая подписка.
	ErrAlreadySubscribed = errors.New("user already has an active subscription")
	// ErrNoSubscription возвращается, когда действующей подписки нет.
	ErrNoSubscription = errors.New("no active subscription")
)

// SubscriptionStorage описывает операции хранилища подписок.
type SubscriptionStorage interface {
	CreateSubscription(ctx context.Context, sub models.Subscription) (int, error)
	GetSubscriptionBySessionID(ctx context.Context, sessionID string) (*models.Subscription, error)
	SetExternalID(ctx context.Context, sessionID, externalID string) error
	GetSubscriptionByExternalID(ctx context.Context, externalID string) (*models.Subscription, error)
	GetCurrentSubscription(ctx context.Context, userUID string) (*models.Subscription, error)
	ApplyStatusTransition(ctx context.Context, p repository.TransitionParams) (bool, error)
	MarkCancelRequested(ctx context.Context, externalID string) error
	ExpireLapsedSubscriptions(ctx context.Context, now time.Time) (int, error)
}

// UserStorage описывает операции хранилища пользователей, нужные биллингу.
type UserStorage interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, userUID, customerID string) error
}

// Gateway описывает адаптер платёжного провайдера.
type Gateway interface {
	CreateCustomer(email, userUID, name string) (*paymentgateway.CustomerRef, error)
	CreateCheckoutSession(customer paymentgateway.CustomerRef, userUID, priceID, successURL, cancelURL string) (*paymentgateway.SessionRef, error)
	CancelSubscription(externalID string) (*paymentgateway.SubscriptionSnapshot, error)
	ConstructWebhookEvent(rawBody []byte, signature string) (*paymentgateway.Event, error)
}

// Notifier отправляет уведомление об изменении статуса подписки.
// Ошибки доставки не откатывают переход, поэтому интерфейс без error.
type Notifier interface {
	NotifySubscriptionChange(email, status string)
}

// Service реализует жизненный цикл платной подписки.
type Service struct {
	subscriptions SubscriptionStorage
	users         UserStorage
	gateway       Gateway
	notifier      Notifier
	cfg           config.Stripe
	log           *slog.Logger
}

// New создает сервис биллинга.
func New(subscriptions SubscriptionStorage, users UserStorage, gateway Gateway,
	notifier Notifier, cfg config.Stripe, log *slog.Logger) *Service {
	return &Service{
		subscriptions: subscriptions,
		users:         users,
		gateway:       gateway,
		notifier:      notifier,
		cfg:           cfg,
		log:           log,
	}
}

// StartCheckout начинает оформление подписки: находит или создает клиента
// у провайдера, открывает чекаут-сессию и регистрирует подписку в статусе
// pending. Возвращает адрес hosted-страницы оплаты.
func (s *Service) StartCheckout(ctx context.Context, userUID string) (string, error) {
	const op = "services.billing.StartCheckout"

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	current, err := s.subscriptions.GetCurrentSubscription(ctx, userUID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if current != nil && !models.IsTerminalSubscriptionStatus(current.Status) &&
		current.Status != models.SubscriptionPending {
		return "", fmt.Errorf("%s: %w", op, ErrAlreadySubscribed)
	}

	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	session, err := s.gateway.CreateCheckoutSession(
		paymentgateway.CustomerRef{ID: customerID},
		userUID, s.cfg.PriceID, s.cfg.SuccessURL, s.cfg.CancelURL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.subscriptions.CreateSubscription(ctx, models.Subscription{
		UserUID:           userUID,
		CheckoutSessionID: session.ID,
		Status:            models.SubscriptionPending,
		LastEventAt:       time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("checkout session started", slog.String("user_uid", userUID))
	return session.URL, nil
}

// ensureCustomer возвращает ID клиента у провайдера, создавая его при
// первом обращении. Запись в хранилище идемпотентна: повторная гонка
// создания оставляет первый сохранённый ID.
func (s *Service) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}
	ref, err := s.gateway.CreateCustomer(user.Email, user.UUID, user.Name)
	if err != nil {
		return "", err
	}
	if err := s.users.SetStripeCustomerID(ctx, user.UUID, ref.ID); err != nil {
		return "", err
	}
	return ref.ID, nil
}

// GetCurrent возвращает проекцию текущей подписки пользователя.
func (s *Service) GetCurrent(ctx context.Context, userUID string) (*models.SubscriptionView, error) {
	const op = "services.billing.GetCurrent"

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	sub, err := s.subscriptions.GetCurrentSubscription(ctx, userUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrNoSubscription)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	view := models.NewSubscriptionView(sub)
	return &view, nil
}

// Cancel запрашивает отмену подписки в конце оплаченного периода.
// Доступ к сервису сохраняется до истечения периода, немедленного
// разрыва не происходит.
func (s *Service) Cancel(ctx context.Context, userUID string) error {
	const op = "services.billing.Cancel"

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	sub, err := s.subscriptions.GetCurrentSubscription(ctx, userUID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNoSubscription)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if sub.ExternalID == "" || models.IsTerminalSubscriptionStatus(sub.Status) ||
		sub.Status == models.SubscriptionPending {
		return fmt.Errorf("%s: %w", op, ErrNoSubscription)
	}

	if _, err := s.gateway.CancelSubscription(sub.ExternalID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.subscriptions.MarkCancelRequested(ctx, sub.ExternalID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("subscription cancel requested",
		slog.String("user_uid", userUID), slog.String("external_id", sub.ExternalID))
	return nil
}

// ProcessWebhookEvent применяет событие провайдера к локальному состоянию
// подписки. Повторные и устаревшие события тихо пропускаются: обработка
// завершается успешно, состояние не меняется. Ошибкой считается только
// сбой хранилища, чтобы провайдер повторил доставку.
func (s *Service) ProcessWebhookEvent(ctx context.Context, ev *paymentgateway.Event) error {
	const op = "services.billing.ProcessWebhookEvent"

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if ev.Kind == paymentgateway.EventIgnored {
		s.log.Debug("webhook event ignored", slog.String("event_id", ev.ID))
		return nil
	}

	sub, err := s.resolveSubscription(ctx, ev)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Событие о неизвестной подписке: чекаут мог стартовать
			// в другом окружении. Логируем и подтверждаем доставку.
			s.log.Warn("webhook event for unknown subscription",
				slog.String("event_id", ev.ID), slog.String("external_id", ev.SubscriptionID))
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	toStatus, ok := nextStatus(sub.Status, ev.Kind, ev.Snapshot)
	if !ok {
		s.log.Debug("webhook event does not change status",
			slog.String("event_id", ev.ID), slog.String("status", sub.Status))
		return nil
	}

	params := repository.TransitionParams{
		EventID:    ev.ID,
		ExternalID: sub.ExternalID,
		FromStatus: sub.Status,
		ToStatus:   toStatus,
		EventAt:    ev.CreatedAt,
	}
	if ev.Snapshot != nil {
		if !ev.Snapshot.PeriodStart.IsZero() {
			start := ev.Snapshot.PeriodStart
			params.PeriodStart = &start
		}
		if !ev.Snapshot.PeriodEnd.IsZero() {
			end := ev.Snapshot.PeriodEnd
			params.PeriodEnd = &end
		}
		cancel := ev.Snapshot.CancelAtPeriodEnd
		params.CancelRequested = &cancel
	}

	applied, err := s.subscriptions.ApplyStatusTransition(ctx, params)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !applied {
		s.log.Debug("webhook event skipped as duplicate or stale",
			slog.String("event_id", ev.ID))
		return nil
	}

	s.log.Info("subscription status changed",
		slog.String("external_id", sub.ExternalID),
		slog.String("from", sub.Status), slog.String("to", toStatus))

	if s.notifier != nil {
		if user, uerr := s.users.GetUser(ctx, sub.UserUID); uerr == nil {
			s.notifier.NotifySubscriptionChange(user.Email, toStatus)
		} else {
			s.log.Error("failed to load user for notification", sl.Err(uerr))
		}
	}
	return nil
}

// resolveSubscription находит локальную подписку для события. Завершение
// чекаута коррелируется по ID сессии, остальные события — по внешнему ID
// подписки. При завершении чекаута внешний ID записывается ровно один раз.
func (s *Service) resolveSubscription(ctx context.Context, ev *paymentgateway.Event) (*models.Subscription, error) {
	if ev.Kind == paymentgateway.EventCheckoutCompleted {
		sub, err := s.subscriptions.GetSubscriptionBySessionID(ctx, ev.SessionID)
		if err != nil {
			return nil, err
		}
		if sub.ExternalID == "" && ev.SubscriptionID != "" {
			if err := s.subscriptions.SetExternalID(ctx, ev.SessionID, ev.SubscriptionID); err != nil {
				return nil, err
			}
			sub.ExternalID = ev.SubscriptionID
		}
		return sub, nil
	}
	return s.subscriptions.GetSubscriptionByExternalID(ctx, ev.SubscriptionID)
}

// ExpireLapsed переводит в expired подписки, у которых оплаченный период
// истёк без продления и без запрошенной отмены. Вызывается фоновым
// планировщиком.
func (s *Service) ExpireLapsed(ctx context.Context) (int, error) {
	const op = "services.billing.ExpireLapsed"

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	n, err := s.subscriptions.ExpireLapsedSubscriptions(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if n > 0 {
		s.log.Info("expired lapsed subscriptions", slog.Int("count", n))
	}
	return n, nil
}
