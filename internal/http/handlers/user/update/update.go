// Package update обрабатывает обновление профиля пользователя:
// ФИО и дату рождения, без которых невозможен расчёт отчётов.
package update

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/numerology-bot/internal/http/response"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/sl"
)

// UpdateProfileRequest представляет запрос на обновление профиля.
type UpdateProfileRequest struct {
	TgID      int64  `json:"tg_id" validate:"required,gt=0"`
	FIO       string `json:"fio" validate:"required"`
	Birthdate string `json:"birthdate" validate:"required,datetime=2006-01-02"`
}

// Service определяет интерфейс хранилища пользователей.
type Service interface {
	EnsureUser(ctx context.Context, tgID int64) (int64, error)
	UpdateUserProfile(ctx context.Context, tgID int64, fio string, birthdate time.Time) error
}

// Handler обрабатывает запросы на обновление профиля.
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
// @Summary Обновить профиль пользователя
// @Description Сохраняет ФИО и дату рождения пользователя Telegram
// @Tags Users
// @Accept  json
// @Produce  json
// @Param request body UpdateProfileRequest true "Данные профиля"
// @Success 200 {object} response.Response "Профиль обновлён"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /users/profile [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.update"
	log := h.log.With(slog.String("op", op))

	var req UpdateProfileRequest
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

	birthdate, err := time.Parse("2006-01-02", req.Birthdate)
	if err != nil {
		log.Error("invalid birthdate", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.Error("invalid birthdate"))
		return
	}

	if _, err := h.service.EnsureUser(r.Context(), req.TgID); err != nil {
		log.Error("failed to ensure user", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}
	if err := h.service.UpdateUserProfile(r.Context(), req.TgID, req.FIO, birthdate); err != nil {
		log.Error("failed to update profile", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("profile updated", slog.Int64("tg_id", req.TgID))
	render.JSON(w, r, response.StatusOKWithData(nil))
}
