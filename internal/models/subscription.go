package models

import "time"

// Статусы подписки. canceled терминальный: после него автосписания
// не выполняются.
const (
	SubscriptionStatusTrial    = "trial"
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
)

// Subscription представляет регулярные отношения с пользователем.
// У пользователя может быть не более одной незавершённой подписки,
// инвариант закреплён частичным уникальным индексом в хранилище.
type Subscription struct {
	ID             int64
	UserID         int64
	Status         string
	TrialEnd       *time.Time // Дата окончания пробного периода
	NextCharge     *time.Time // Дата следующего списания
	ProviderID     *string    // Идентификатор сохранённого способа оплаты у провайдера
	ChargeAttempts int        // Неудачные попытки продления подряд
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsCharged сообщает, открыт ли у подписки платный или пробный доступ.
func (s *Subscription) IsCharged() bool {
	return s.Status == SubscriptionStatusTrial || s.Status == SubscriptionStatusActive
}
