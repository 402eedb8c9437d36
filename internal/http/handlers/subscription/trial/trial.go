// Package trial обрабатывает запуск пробного периода подписки.
package trial

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/numerology-bot/internal/http/response"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/sl"
	"github.com/magabrotheeeer/numerology-bot/internal/models"
)

// StartTrialRequest представляет запрос на запуск пробного периода.
type StartTrialRequest struct {
	TgID int64 `json:"tg_id" validate:"required,gt=0"`
}

// StartTrialResponse представляет данные созданной подписки.
type StartTrialResponse struct {
	Status   string     `json:"status"`
	TrialEnd *time.Time `json:"trial_end,omitempty"`
}

// Service определяет интерфейс для запуска пробного периода.
type Service interface {
	StartTrial(ctx context.Context, tgID int64) (*models.Subscription, error)
}

// Handler обрабатывает запросы на запуск пробного периода.
type Handler struct {
	log      *slog.Logger // Логгер для записи информации и ошибок
	service  Service
	validate *validator.Validate // Валидатор структуры входящих данных
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Запустить пробный период
// @Description Создает пробную подписку для пользователя Telegram
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body StartTrialRequest true "Пользователь Telegram"
// @Success 200 {object} response.Response{data=StartTrialResponse} "Подписка создана"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "У пользователя уже есть подписка"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions/trial [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.trial"
	log := h.log.With(slog.String("op", op))

	var req StartTrialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	sub, err := h.service.StartTrial(r.Context(), req.TgID)
	if err != nil {
		if errors.Is(err, models.ErrSubscriptionExists) {
			log.Error("subscription already exists", slog.Int64("tg_id", req.TgID))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("subscription already exists"))
			return
		}
		log.Error("failed to start trial", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("trial started", slog.Int64("tg_id", req.TgID))
	render.JSON(w, r, response.StatusOKWithData(StartTrialResponse{
		Status:   sub.Status,
		TrialEnd: sub.TrialEnd,
	}))
}
