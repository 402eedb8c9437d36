package paymentprovider

import "time"

// Amount представляет денежную сумму.
type Amount struct {
	Value    string `json:"value"`    // сумма, например "299.00"
	Currency string `json:"currency"` // валюта, например "RUB"
}

// CreatePaymentRequest представляет запрос на создание платежа.
// Для автосписаний по подписке заполняется PaymentMethodID —
// сохранённый способ оплаты пользователя.
type CreatePaymentRequest struct {
	Amount            Amount            `json:"amount"`
	Capture           bool              `json:"capture"`
	Description       string            `json:"description,omitempty"`
	PaymentMethodID   string            `json:"payment_method_id,omitempty"`
	SavePaymentMethod bool              `json:"save_payment_method,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"` // order_id, charge_id_client
}

// CreatePaymentResponse представляет ответ на создание платежа.
type CreatePaymentResponse struct {
	ID            string `json:"id"`     // ID платежа в ЮKassa
	Status        string `json:"status"` // статус платежа, например "succeeded"
	Amount        Amount `json:"amount"`
	PaymentMethod struct {
		ID    string `json:"id"`
		Saved bool   `json:"saved"`
	} `json:"payment_method"`
	Confirmation struct {
		Type            string `json:"type"`
		ConfirmationURL string `json:"confirmation_url"`
	} `json:"confirmation"`
	CreatedAt time.Time `json:"created_at"`
}
