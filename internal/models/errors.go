package models

import "errors"

// Ошибки доменного уровня. Сервисы возвращают их обёрнутыми через
// fmt.Errorf("%s: %w", op, err), проверять следует errors.Is.
var (
	// ErrValidation — некорректные входные данные операции:
	// неизвестный продукт, неположительная цена.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition — попытка перехода из терминального или
	// несовместимого состояния.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateCharge — идентификатор платежа уже закреплён за другим
	// заказом. На границе вебхука это штатный повтор доставки,
	// в остальных местах — конфликт.
	ErrDuplicateCharge = errors.New("duplicate charge identifier")

	// ErrSubscriptionExists — у пользователя уже есть незавершённая подписка.
	ErrSubscriptionExists = errors.New("active subscription already exists")

	ErrOrderNotFound        = errors.New("order not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrReportNotFound       = errors.New("report not found")
)
