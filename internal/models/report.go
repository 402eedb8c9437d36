package models

import (
	"encoding/json"
	"time"
)

// Типы генерируемых отчётов.
const (
	ReportTypeMini          = "mini"
	ReportTypeFull          = "full"
	ReportTypeCompatibility = "compatibility"
)

// Report представляет сгенерированный отчёт. Создаётся только после
// оплаты соответствующего заказа и после создания не изменяется,
// кроме отложенной записи ссылки на PDF.
type Report struct {
	ID         int64
	UserID     int64
	ReportType string
	CoreJSON   json.RawMessage // Структурированный нумерологический профиль
	PDFURL     *string         // Ссылка на отрендеренный документ
	CreatedAt  time.Time
}
