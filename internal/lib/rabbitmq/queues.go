package rabbitmq

// NotificationsExchange имя обменника уведомлений.
const NotificationsExchange = "notifications"

// Роутинг-ключи уведомлений, которые потребляет слой бота.
const (
	RoutingKeyReportReady  = "report.ready"
	RoutingKeySubscription = "subscription"
	RoutingKeyForecast     = "forecast"
)

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди уведомлений бота.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.report", RoutingKey: RoutingKeyReportReady},
		{QueueName: "notifications.subscription", RoutingKey: RoutingKeySubscription},
		{QueueName: "notifications.forecast", RoutingKey: RoutingKeyForecast},
	}
}
