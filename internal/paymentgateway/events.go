package paymentgateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v81"
)

// EventKind — вид доменного события от платёжного провайдера.
// Перечисление закрытое: менеджер жизненного цикла обязан обрабатывать
// каждый вид явно.
type EventKind string

const (
	// EventCheckoutCompleted — чекаут завершён, подписка создана у провайдера.
	EventCheckoutCompleted EventKind = "checkout_completed"
	// EventPaymentSucceeded — успешная оплата счёта (первичная или продление).
	EventPaymentSucceeded EventKind = "payment_succeeded"
	// EventPaymentFailed — неуспешное списание при продлении.
	EventPaymentFailed EventKind = "payment_failed"
	// EventSubscriptionUpdated — провайдер изменил состояние подписки.
	EventSubscriptionUpdated EventKind = "subscription_updated"
	// EventSubscriptionDeleted — отмена вступила в силу, период закончился.
	EventSubscriptionDeleted EventKind = "subscription_deleted"
	// EventIgnored — событие, не влияющее на жизненный цикл подписки.
	EventIgnored EventKind = "ignored"
)

// Event — доменное событие вебхука, разобранное и проверенное на границе
// адаптера. Дальнейшая логика не заглядывает в нетипизированные payload'ы.
type Event struct {
	ID             string    // ID события у провайдера, ключ дедупликации
	Kind           EventKind //
	CreatedAt      time.Time // Время события у провайдера, база для отсечения устаревших
	SubscriptionID string    // Внешний ID подписки, пустой для EventIgnored
	SessionID      string    // ID чекаут-сессии, только для EventCheckoutCompleted
	CustomerID     string    //
	Snapshot       *SubscriptionSnapshot // Снимок подписки, если событие его несёт
}

// eventFromStripe переводит событие Stripe в доменное.
// Неизвестные типы событий не ошибка: они помечаются EventIgnored.
func eventFromStripe(ev stripe.Event) (*Event, error) {
	const op = "paymentgateway.eventFromStripe"

	out := &Event{
		ID:        ev.ID,
		CreatedAt: time.Unix(ev.Created, 0).UTC(),
		Kind:      EventIgnored,
	}

	switch ev.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out.Kind = EventCheckoutCompleted
		out.SessionID = sess.ID
		if sess.Subscription != nil {
			out.SubscriptionID = sess.Subscription.ID
		}
		if sess.Customer != nil {
			out.CustomerID = sess.Customer.ID
		}

	case "invoice.payment_succeeded":
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out.Kind = EventPaymentSucceeded
		if inv.Subscription != nil {
			out.SubscriptionID = inv.Subscription.ID
		}
		if inv.Customer != nil {
			out.CustomerID = inv.Customer.ID
		}

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out.Kind = EventPaymentFailed
		if inv.Subscription != nil {
			out.SubscriptionID = inv.Subscription.ID
		}
		if inv.Customer != nil {
			out.CustomerID = inv.Customer.ID
		}

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if ev.Type == "customer.subscription.deleted" {
			out.Kind = EventSubscriptionDeleted
		} else {
			out.Kind = EventSubscriptionUpdated
		}
		out.SubscriptionID = sub.ID
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		out.Snapshot = snapshotFromSubscription(&sub)
	}

	return out, nil
}
