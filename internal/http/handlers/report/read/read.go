// Package read обрабатывает чтение готовых отчётов.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/numerology-bot/internal/http/response"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/sl"
	"github.com/magabrotheeeer/numerology-bot/internal/models"
)

// ReportResponse представляет готовый отчёт для слоя бота.
type ReportResponse struct {
	ReportID   int64     `json:"report_id"`
	ReportType string    `json:"report_type"`
	PDFURL     string    `json:"pdf_url"`
	CreatedAt  time.Time `json:"created_at"`
	Total      int       `json:"total"` // Всего отчётов этого типа у пользователя
}

// Service определяет интерфейс для чтения отчётов.
type Service interface {
	LatestReport(ctx context.Context, tgID int64, reportType string) (*models.Report, int, error)
}

// Handler обрабатывает запросы на чтение отчёта.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить последний отчёт
// @Description Возвращает последний готовый отчёт пользователя указанного типа
// @Tags Reports
// @Produce  json
// @Param tg_id path int true "Telegram ID пользователя"
// @Param type query string true "Тип отчёта" Enums(mini, full, compatibility)
// @Success 200 {object} response.Response{data=ReportResponse} "Готовый отчёт"
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры запроса"
// @Failure 404 {object} response.ErrorResponse "Отчёт не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /reports/{tg_id} [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.report.read"
	log := h.log.With(slog.String("op", op))

	tgID, err := strconv.ParseInt(chi.URLParam(r, "tg_id"), 10, 64)
	if err != nil {
		log.Error("invalid tg_id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid tg_id"))
		return
	}

	reportType := r.URL.Query().Get("type")
	switch reportType {
	case models.ReportTypeMini, models.ReportTypeFull, models.ReportTypeCompatibility:
	default:
		log.Error("invalid report type", slog.String("type", reportType))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid report type"))
		return
	}

	report, total, err := h.service.LatestReport(r.Context(), tgID, reportType)
	if err != nil {
		if errors.Is(err, models.ErrReportNotFound) ||
			errors.Is(err, models.ErrUserNotFound) {
			log.Info("report not found",
				slog.Int64("tg_id", tgID),
				slog.String("type", reportType))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("report not found"))
			return
		}
		log.Error("failed to read report", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	resp := ReportResponse{
		ReportID:   report.ID,
		ReportType: report.ReportType,
		CreatedAt:  report.CreatedAt,
		Total:      total,
	}
	if report.PDFURL != nil {
		resp.PDFURL = *report.PDFURL
	}
	render.JSON(w, r, response.StatusOKWithData(resp))
}
