// Package cancel обрабатывает отмену подписки.
package cancel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/numerology-bot/internal/http/response"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/sl"
	"github.com/magabrotheeeer/numerology-bot/internal/models"
)

// CancelRequest представляет запрос на отмену подписки.
type CancelRequest struct {
	TgID int64 `json:"tg_id" validate:"required,gt=0"`
}

// CancelResponse сообщает, была ли отменена подписка этим запросом.
// Повторная отмена возвращает canceled=false и статус 200.
type CancelResponse struct {
	Canceled bool `json:"canceled"`
}

// Service определяет интерфейс для отмены подписки.
type Service interface {
	Cancel(ctx context.Context, tgID int64) (bool, error)
}

// Handler обрабатывает запросы на отмену подписки.
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
// @Summary Отменить подписку
// @Description Отменяет подписку пользователя Telegram. Операция идемпотентна.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body CancelRequest true "Пользователь Telegram"
// @Success 200 {object} response.Response{data=CancelResponse} "Результат отмены"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /subscriptions/cancel [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.cancel"
	log := h.log.With(slog.String("op", op))

	var req CancelRequest
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

	canceled, err := h.service.Cancel(r.Context(), req.TgID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			log.Error("user not found", slog.Int64("tg_id", req.TgID))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to cancel subscription", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("cancel processed",
		slog.Int64("tg_id", req.TgID),
		slog.Bool("canceled", canceled))
	render.JSON(w, r, response.StatusOKWithData(CancelResponse{Canceled: canceled}))
}
