// Package models содержит доменные структуры движка жизненного цикла:
// пользователей, заказы, отчёты и подписки. Структуры используются
// в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// User представляет пользователя бота. Движок жизненного цикла читает
// только идентификаторы, данные для расчётов и флаг уведомлений;
// остальные поля принадлежат диалоговому слою.
type User struct {
	ID          int64      // Внутренний идентификатор
	TgID        int64      // Идентификатор чата в Telegram (уникальный)
	FIO         string     // Полное имя для нумерологических расчётов
	Birthdate   *time.Time // Дата рождения
	Lang        string     // Язык интерфейса, по умолчанию "ru"
	PushEnabled bool       // Разрешены ли push-уведомления
	State       string     // Состояние диалога, принадлежит слою бота
	CreatedAt   time.Time
}
