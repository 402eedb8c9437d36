// Package read обрабатывает чтение статуса подписки.
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

// SubscriptionResponse представляет статус подписки для слоя бота.
type SubscriptionResponse struct {
	Status     string     `json:"status"`
	TrialEnd   *time.Time `json:"trial_end,omitempty"`
	NextCharge *time.Time `json:"next_charge,omitempty"`
}

// Service определяет интерфейс для чтения подписки.
type Service interface {
	Current(ctx context.Context, tgID int64) (*models.Subscription, error)
}

// Handler обрабатывает запросы на чтение подписки.
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
// @Summary Получить подписку
// @Description Возвращает незавершённую подписку пользователя Telegram
// @Tags Subscriptions
// @Produce  json
// @Param tg_id path int true "Telegram ID пользователя"
// @Success 200 {object} response.Response{data=SubscriptionResponse} "Статус подписки"
// @Failure 400 {object} response.ErrorResponse "Некорректный Telegram ID"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions/{tg_id} [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.read"
	log := h.log.With(slog.String("op", op))

	tgID, err := strconv.ParseInt(chi.URLParam(r, "tg_id"), 10, 64)
	if err != nil {
		log.Error("invalid tg_id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid tg_id"))
		return
	}

	sub, err := h.service.Current(r.Context(), tgID)
	if err != nil {
		if errors.Is(err, models.ErrSubscriptionNotFound) ||
			errors.Is(err, models.ErrUserNotFound) {
			log.Info("subscription not found", slog.Int64("tg_id", tgID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("subscription not found"))
			return
		}
		log.Error("failed to read subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(SubscriptionResponse{
		Status:     sub.Status,
		TrialEnd:   sub.TrialEnd,
		NextCharge: sub.NextCharge,
	}))
}
