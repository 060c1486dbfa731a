// Package paymentgateway — единственная граница между системой и Stripe.
//
// Адаптер оборачивает операции с покупателями, чекаут-сессиями и подписками,
// а также проверку подписи вебхуков. Ключ API передаётся при создании клиента,
// глобальное состояние stripe-go не используется. Остальная система работает
// только с типами этого пакета и не видит сырых структур Stripe.
package paymentgateway

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	stripeclient "github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/holidayheroes/holiday-heroes/internal/config"
	"github.com/holidayheroes/holiday-heroes/internal/models"
)

var (
	// ErrGatewayUnconfigured возвращается всеми операциями, если учётные
	// данные провайдера не заданы. Ошибка конфигурации, не скрывается.
	ErrGatewayUnconfigured = errors.New("payment gateway is not configured")
	// ErrConfiguration возвращается при пустом или placeholder price id.
	ErrConfiguration = errors.New("payment gateway configuration error")
	// ErrSignatureVerification возвращается при неверной подписи вебхука.
	ErrSignatureVerification = errors.New("webhook signature verification failed")
)

// CustomerRef — ссылка на покупателя у платёжного провайдера.
type CustomerRef struct {
	ID string
}

// SessionRef — ссылка на созданную чекаут-сессию.
type SessionRef struct {
	ID  string
	URL string // Адрес hosted-страницы оплаты, отдаётся клиенту для редиректа
}

// SubscriptionSnapshot — снимок состояния подписки у провайдера,
// переведённый в доменные статусы.
type SubscriptionSnapshot struct {
	ExternalID        string
	Status            string // Один из models.Subscription* статусов
	PeriodStart       time.Time
	PeriodEnd         time.Time
	CancelAtPeriodEnd bool
}

// Client реализует адаптер платёжного провайдера поверх stripe-go.
type Client struct {
	api           *stripeclient.API
	webhookSecret string
	log           *slog.Logger
}

// New создает клиент Stripe. Пустой секретный ключ не является ошибкой
// на этапе создания: сервис поднимается, но каждая операция будет
// возвращать ErrGatewayUnconfigured.
func New(cfg config.Stripe, log *slog.Logger) *Client {
	var api *stripeclient.API
	if cfg.SecretKey != "" {
		api = stripeclient.New(cfg.SecretKey, nil)
	}
	return &Client{
		api:           api,
		webhookSecret: cfg.WebhookSecret,
		log:           log,
	}
}

// CreateCustomer создает покупателя у провайдера. Идемпотентность на стороне
// вызывающего: сервис биллинга хранит customer id и не создает дубликаты.
func (c *Client) CreateCustomer(email, userUID, name string) (*CustomerRef, error) {
	const op = "paymentgateway.CreateCustomer"
	if c.api == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrGatewayUnconfigured)
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	if name != "" {
		params.Name = stripe.String(name)
	}
	params.AddMetadata("user_uid", userUID)

	cust, err := c.api.Customers.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &CustomerRef{ID: cust.ID}, nil
}

// CreateCheckoutSession создает чекаут-сессию в режиме подписки.
//
// Возвращает ErrConfiguration, если price id пуст или является заглушкой.
func (c *Client) CreateCheckoutSession(customer CustomerRef, userUID, priceID, successURL, cancelURL string) (*SessionRef, error) {
	const op = "paymentgateway.CreateCheckoutSession"
	if c.api == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrGatewayUnconfigured)
	}
	if priceID == "" || !strings.HasPrefix(priceID, "price_") {
		return nil, fmt.Errorf("%s: empty or placeholder price id: %w", op, ErrConfiguration)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(customer.ID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_uid": userUID},
		},
	}
	params.AddMetadata("user_uid", userUID)

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &SessionRef{ID: sess.ID, URL: sess.URL}, nil
}

// RetrieveSubscription возвращает снимок подписки у провайдера.
func (c *Client) RetrieveSubscription(externalID string) (*SubscriptionSnapshot, error) {
	const op = "paymentgateway.RetrieveSubscription"
	if c.api == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrGatewayUnconfigured)
	}

	sub, err := c.api.Subscriptions.Get(externalID, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return snapshotFromSubscription(sub), nil
}

// CancelSubscription запрашивает отмену подписки в конце текущего периода.
// Доступ сохраняется до конца оплаченного периода, немедленного разрыва нет.
func (c *Client) CancelSubscription(externalID string) (*SubscriptionSnapshot, error) {
	const op = "paymentgateway.CancelSubscription"
	if c.api == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrGatewayUnconfigured)
	}

	sub, err := c.api.Subscriptions.Update(externalID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return snapshotFromSubscription(sub), nil
}

// ConstructWebhookEvent проверяет подпись вебхука по сырому телу запроса
// и переводит событие Stripe в доменное событие.
//
// rawBody обязан быть байтами в том виде, в котором они пришли по сети:
// любая пересериализация до проверки ломает подпись.
func (c *Client) ConstructWebhookEvent(rawBody []byte, signature string) (*Event, error) {
	const op = "paymentgateway.ConstructWebhookEvent"
	if c.webhookSecret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrGatewayUnconfigured)
	}

	stripeEvent, err := webhook.ConstructEvent(rawBody, signature, c.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrSignatureVerification)
	}
	return eventFromStripe(stripeEvent)
}

// snapshotFromSubscription переводит подписку Stripe в доменный снимок.
func snapshotFromSubscription(sub *stripe.Subscription) *SubscriptionSnapshot {
	return &SubscriptionSnapshot{
		ExternalID:        sub.ID,
		Status:            statusFromStripe(sub.Status),
		PeriodStart:       time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		PeriodEnd:         time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
}

// statusFromStripe переводит статус провайдера в доменный.
// Перечисление закрытое: неизвестные статусы схлопываются в pending,
// чтобы не изобретать новых состояний машины.
func statusFromStripe(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive:
		return models.SubscriptionActive
	case stripe.SubscriptionStatusTrialing:
		return models.SubscriptionTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return models.SubscriptionPastDue
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return models.SubscriptionCanceled
	case stripe.SubscriptionStatusIncomplete, stripe.SubscriptionStatusPaused:
		return models.SubscriptionPending
	default:
		return models.SubscriptionPending
	}
}
