package models

import (
	"encoding/json"
	"time"
)

// Продукты, доступные для покупки.
const (
	ProductFullReport        = "full_report"
	ProductCompatibility     = "compatibility"
	ProductSubscriptionMonth = "subscription_month"
)

// Статусы заказа. Заказ создаётся в pending и ровно один раз переходит
// в paid или failed, оба статуса терминальные.
const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
	OrderStatusFailed  = "failed"
)

// Order представляет одну попытку покупки. Идентификаторы платежа
// уникальны во всём хранилище: на их уникальности построена дедупликация
// повторных вебхуков провайдера.
type Order struct {
	ID               int64
	UserID           int64
	Product          string // Один из Product*-констант
	Price            int    // Цена в рублях
	Currency         string
	Status           string
	PaidAt           *time.Time      // Заполняется при переходе в paid
	ChargeIDClient   *string         // Идемпотентный ключ, сгенерированный нами
	ChargeIDProvider *string         // Идентификатор платежа на стороне провайдера
	Payload          json.RawMessage // Параметры продукта, непрозрачный JSON
	FailReason       *string
	CreatedAt        time.Time
}

// KnownProduct сообщает, входит ли продукт в список продаваемых.
func KnownProduct(product string) bool {
	switch product {
	case ProductFullReport, ProductCompatibility, ProductSubscriptionMonth:
		return true
	}
	return false
}

// IsTerminal сообщает, завершён ли жизненный цикл заказа.
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusPaid || o.Status == OrderStatusFailed
}
