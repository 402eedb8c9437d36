// Package read обрабатывает чтение статуса заказа.
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

// OrderResponse представляет данные заказа для слоя бота.
type OrderResponse struct {
	OrderID    int64      `json:"order_id"`
	Product    string     `json:"product"`
	Price      int        `json:"price"`
	Currency   string     `json:"currency"`
	Status     string     `json:"status"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	FailReason *string    `json:"fail_reason,omitempty"`
}

// Service определяет интерфейс для чтения заказов.
type Service interface {
	Get(ctx context.Context, id int64) (*models.Order, error)
}

// Handler обрабатывает запросы на чтение заказа.
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
// @Summary Получить заказ
// @Description Возвращает статус заказа по его ID
// @Tags Orders
// @Produce  json
// @Param id path int true "ID заказа"
// @Success 200 {object} response.Response{data=OrderResponse} "Данные заказа"
// @Failure 400 {object} response.ErrorResponse "Некорректный ID"
// @Failure 404 {object} response.ErrorResponse "Заказ не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Router /orders/{id} [get]
// @Security BearerAuth
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.order.read"
	log := h.log.With(slog.String("op", op))

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		log.Error("invalid order id", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid order id"))
		return
	}

	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			log.Error("order not found", slog.Int64("order_id", id))
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("order not found"))
			return
		}
		log.Error("failed to read order", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(OrderResponse{
		OrderID:    order.ID,
		Product:    order.Product,
		Price:      order.Price,
		Currency:   order.Currency,
		Status:     order.Status,
		PaidAt:     order.PaidAt,
		FailReason: order.FailReason,
	}))
}
