// Package create обрабатывает создание заказов на покупку продуктов.
package create

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
	"github.com/magabrotheeeer/numerology-bot/internal/services/payment"
)

// CreateOrderRequest представляет запрос на создание заказа.
type CreateOrderRequest struct {
	TgID    int64           `json:"tg_id" validate:"required,gt=0"`
	Product string          `json:"product" validate:"required,oneof=full_report compatibility subscription_month"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CreateOrderResponse представляет данные созданного заказа.
type CreateOrderResponse struct {
	OrderID         int64  `json:"order_id"`
	ConfirmationURL string `json:"confirmation_url"`
}

// Service определяет интерфейс для создания покупок.
type Service interface {
	CreatePurchase(ctx context.Context, tgID int64, product string, payload json.RawMessage) (*payment.PurchaseResult, error)
}

// Handler обрабатывает запросы на создание заказов.
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
// @Summary Создать заказ
// @Description Создает заказ на продукт и платёж у провайдера, возвращает ссылку на оплату
// @Tags Orders
// @Accept  json
// @Produce  json
// @Param request body CreateOrderRequest true "Данные заказа"
// @Success 200 {object} response.Response{data=CreateOrderResponse} "Заказ создан"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера или провайдера"
// @Router /orders [post]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.order.create"
	log := h.log.With(slog.String("op", op))

	var req CreateOrderRequest
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

	result, err := h.service.CreatePurchase(r.Context(), req.TgID, req.Product, req.Payload)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			log.Error("invalid purchase parameters", sl.Err(err))
			w.WriteHeader(http.StatusUnprocessableEntity)
			render.JSON(w, r, response.Error("invalid purchase parameters"))
			return
		}
		log.Error("failed to create purchase", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("order created",
		slog.Int64("order_id", result.OrderID),
		slog.Int64("tg_id", req.TgID))
	render.JSON(w, r, response.StatusOKWithData(CreateOrderResponse{
		OrderID:         result.OrderID,
		ConfirmationURL: result.ConfirmationURL,
	}))
}
