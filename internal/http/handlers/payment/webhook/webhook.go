// Package webhook обрабатывает уведомления платёжного провайдера.
// Это единственный путь, по которому заказы переходят в paid или failed.
// Подпись проверяется до разбора тела: уведомление без валидной подписи
// отклоняется с 401 и никогда не меняет состояние.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/numerology-bot/internal/http/response"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/sl"
	"github.com/magabrotheeeer/numerology-bot/internal/models"
	"github.com/magabrotheeeer/numerology-bot/internal/services/payment"
)

// SignatureHeader заголовок с подписью тела уведомления.
const SignatureHeader = "X-Api-Signature"

// Notification представляет уведомление провайдера.
type Notification struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	Object struct {
		ID            string `json:"id"`
		Status        string `json:"status"`
		PaymentMethod struct {
			ID    string `json:"id"`
			Saved bool   `json:"saved"`
		} `json:"payment_method"`
		Metadata map[string]string `json:"metadata"`
	} `json:"object"`
}

// Service определяет интерфейс обработки платёжных событий.
type Service interface {
	ProcessWebhookEvent(ctx context.Context, ev payment.WebhookEvent) error
}

// Handler обрабатывает вебхуки платёжного провайдера.
type Handler struct {
	log     *slog.Logger // Логгер для записи информации и ошибок
	service Service
	secret  string // Секрет подписи вебхуков
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service, secret string) *Handler {
	return &Handler{
		log:     log,
		service: service,
		secret:  secret,
	}
}

// ServeHTTP godoc
// @Summary Вебхук платёжного провайдера
// @Description Принимает уведомления ЮKassa о результатах платежей. Повторные доставки подтверждаются без побочных эффектов.
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param X-Api-Signature header string true "Подпись HMAC-SHA256 тела запроса"
// @Param request body Notification true "Уведомление провайдера"
// @Success 200 {object} response.Response "Уведомление обработано"
// @Failure 400 {object} response.ErrorResponse "Некорректное тело уведомления"
// @Failure 401 {object} response.ErrorResponse "Невалидная подпись"
// @Failure 500 {object} response.ErrorResponse "Ошибка обработки, провайдер повторит доставку"
// @Router /webhook/payment [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error("failed to read request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if !h.verifySignature(body, r.Header.Get(SignatureHeader)) {
		log.Error("webhook signature verification failed")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	var notification Notification
	if err := json.Unmarshal(body, &notification); err != nil {
		log.Error("failed to decode notification", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	ev := payment.WebhookEvent{
		Event:           notification.Event,
		PaymentID:       notification.Object.ID,
		PaymentMethodID: notification.Object.PaymentMethod.ID,
		PaymentSaved:    notification.Object.PaymentMethod.Saved,
		ChargeIDClient:  notification.Object.Metadata["charge_id_client"],
	}
	if err := h.service.ProcessWebhookEvent(r.Context(), ev); err != nil {
		// Неизвестный charge_id_client неисправим повтором доставки:
		// заказ фиксируется до обращения к провайдеру.
		if errors.Is(err, models.ErrValidation) ||
			errors.Is(err, models.ErrOrderNotFound) {
			log.Error("malformed notification", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid notification"))
			return
		}
		log.Error("failed to process webhook event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("webhook event processed",
		slog.String("event", notification.Event),
		slog.String("payment_id", notification.Object.ID))
	render.JSON(w, r, response.StatusOKWithData(nil))
}

func (h *Handler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
