package rabbitmq

// QueueConfig описывает очередь и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// SubscriptionRoutingKey — ключ маршрутизации событий жизненного цикла подписок.
const SubscriptionRoutingKey = "subscription"

// GetNotificationQueues возвращает очереди, которые слушает воркер уведомлений.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.subscription", RoutingKey: SubscriptionRoutingKey},
	}
}
