package rabbitmq

// QueueConfig связывает очередь с ключом маршрутизации в обменнике notifications.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// ExchangeName — обменник уведомлений.
const ExchangeName = "notifications"

// Ключи маршрутизации уведомлений об абонементах.
const (
	RoutingKeyExpiring = "access.expiring"
	RoutingKeyExpired  = "access.expired"
)

// GetNotificationQueues возвращает очереди уведомлений об окончании
// действия абонементов.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notification.access.expiring", RoutingKey: RoutingKeyExpiring},
		{QueueName: "notification.access.expired", RoutingKey: RoutingKeyExpired},
	}
}
