// Package notifier публикует уведомления об изменениях подписки
// в очередь. Доставкой писем занимается отдельный воркер, поэтому
// публикация не блокирует обработку вебхука и не откатывает переход
// статуса при недоступном брокере.
package notifier

import (
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	publisher "github.com/holidayheroes/holiday-heroes/internal/lib/rabbitmq"
	"github.com/holidayheroes/holiday-heroes/internal/lib/sl"
	"github.com/holidayheroes/holiday-heroes/internal/rabbitmq"
)

// SubscriptionChangeMessage — сообщение о смене статуса подписки,
// формат обмена между сервисом и воркером уведомлений.
type SubscriptionChangeMessage struct {
	Email      string    `json:"email"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier публикует уведомления в обменник брокера.
type Notifier struct {
	ch  *amqp.Channel
	log *slog.Logger
}

// New создает публикатор уведомлений.
func New(ch *amqp.Channel, log *slog.Logger) *Notifier {
	return &Notifier{ch: ch, log: log}
}

// NotifySubscriptionChange публикует уведомление о смене статуса.
// Ошибка публикации логируется и не возвращается: уведомление
// вторично по отношению к самому переходу статуса.
func (n *Notifier) NotifySubscriptionChange(email, status string) {
	msg := SubscriptionChangeMessage{
		Email:      email,
		Status:     status,
		OccurredAt: time.Now().UTC(),
	}
	err := publisher.PublishMessage(n.ch, rabbitmq.NotificationsExchange,
		rabbitmq.SubscriptionRoutingKey, msg)
	if err != nil {
		n.log.Error("failed to publish subscription notification", sl.Err(err))
		return
	}
	n.log.Debug("subscription notification published",
		slog.String("status", status))
}
