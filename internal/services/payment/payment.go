// Package payment связывает вебхуки провайдера с машинами состояний
// заказа и подписки. Повторные доставки вебхуков поглощаются как успех,
// выдача продукта запускается ровно один раз на свежий переход в paid.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/numerology-bot/internal/config"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/sl"
	"github.com/magabrotheeeer/numerology-bot/internal/models"
	"github.com/magabrotheeeer/numerology-bot/internal/paymentprovider"
	"github.com/magabrotheeeer/numerology-bot/internal/services/delivery"
	"github.com/magabrotheeeer/numerology-bot/internal/services/subscription"
)

// События провайдера, которые обрабатывает движок.
const (
	EventPaymentSucceeded = "payment.succeeded"
	EventPaymentCanceled  = "payment.canceled"
)

// WebhookEvent нормализованное событие вебхука провайдера.
type WebhookEvent struct {
	Event           string
	PaymentID       string // идентификатор платежа у провайдера
	PaymentMethodID string // сохранённый способ оплаты, если есть
	PaymentSaved    bool
	ChargeIDClient  string // наш идемпотентный ключ из metadata
}

// PurchaseResult результат создания покупки.
type PurchaseResult struct {
	OrderID         int64
	ConfirmationURL string
}

// renewalPayload отличает заказы автопродления от покупок пользователя.
type renewalPayload struct {
	Renewal bool `json:"renewal"`
}

// Orders определяет операции над заказами.
type Orders interface {
	Create(ctx context.Context, userID int64, product string, price int, currency, chargeIDClient string, payload json.RawMessage) (int64, error)
	FindByChargeClientID(ctx context.Context, chargeID string) (*models.Order, error)
	MarkPaid(ctx context.Context, id int64, chargeIDClient, chargeIDProvider string, paidAt time.Time) (*models.Order, error)
	MarkFailed(ctx context.Context, id int64, reason string) error
}

// Subscriptions определяет операции над подписками.
type Subscriptions interface {
	OnRenewalPaid(ctx context.Context, userID int64, paidAt time.Time) (string, error)
	OnRenewalFailed(ctx context.Context, userID int64, reason string) (bool, int, error)
	SaveProviderID(ctx context.Context, userID int64, providerID string) error
}

// Delivery определяет выдачу продукта и уведомления бота.
type Delivery interface {
	Deliver(ctx context.Context, order *models.Order) error
	NotifySubscription(tgID int64, event string) error
}

// Provider определяет клиент платёжного провайдера.
type Provider interface {
	CreatePayment(idempotenceKey string, reqParams paymentprovider.CreatePaymentRequest) (*paymentprovider.CreatePaymentResponse, error)
}

// UserRepository определяет методы хранилища для работы с пользователями.
type UserRepository interface {
	EnsureUser(ctx context.Context, tgID int64) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Service оркестрирует обработку платежей.
type Service struct {
	orders        Orders
	subscriptions Subscriptions
	delivery      Delivery
	provider      Provider
	users         UserRepository
	billing       config.Billing
	log           *slog.Logger
}

// New создает новый экземпляр Service.
func New(orders Orders, subscriptions Subscriptions, deliverySvc Delivery,
	provider Provider, users UserRepository, billing config.Billing, log *slog.Logger) *Service {
	return &Service{
		orders:        orders,
		subscriptions: subscriptions,
		delivery:      deliverySvc,
		provider:      provider,
		users:         users,
		billing:       billing,
		log:           log,
	}
}

// CreatePurchase создает заказ и платёж у провайдера, возвращает ссылку
// на страницу подтверждения. Клиентский идентификатор платежа генерируется
// здесь и уходит провайдеру как Idempotence-Key и в metadata: по нему
// вебхук найдёт заказ.
func (s *Service) CreatePurchase(ctx context.Context, tgID int64, product string, payload json.RawMessage) (*PurchaseResult, error) {
	const op = "services.payment.CreatePurchase"

	userID, err := s.users.EnsureUser(ctx, tgID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	price, err := s.productPrice(product)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	chargeID := uuid.NewString()
	orderID, err := s.orders.Create(ctx, userID, product, price, s.billing.Currency, chargeID, payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := s.provider.CreatePayment(chargeID, paymentprovider.CreatePaymentRequest{
		Amount: paymentprovider.Amount{
			Value:    fmt.Sprintf("%d.00", price),
			Currency: s.billing.Currency,
		},
		Capture:           true,
		Description:       fmt.Sprintf("order %d: %s", orderID, product),
		SavePaymentMethod: product == models.ProductSubscriptionMonth,
		Metadata: map[string]string{
			"order_id":         fmt.Sprintf("%d", orderID),
			"charge_id_client": chargeID,
		},
	})
	if err != nil {
		if ferr := s.orders.MarkFailed(ctx, orderID, "provider request failed"); ferr != nil {
			s.log.Error("failed to close order after provider error", sl.Err(ferr))
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("purchase created",
		slog.Int64("order_id", orderID),
		slog.Int64("user_id", userID),
		slog.String("product", product))
	return &PurchaseResult{
		OrderID:         orderID,
		ConfirmationURL: resp.Confirmation.ConfirmationURL,
	}, nil
}

func (s *Service) productPrice(product string) (int, error) {
	switch product {
	case models.ProductFullReport:
		return s.billing.FullReportPrice, nil
	case models.ProductCompatibility:
		return s.billing.CompatibilityPrice, nil
	case models.ProductSubscriptionMonth:
		return s.billing.SubscriptionPrice, nil
	}
	return 0, fmt.Errorf("unknown product %q: %w", product, models.ErrValidation)
}

// ProcessWebhookEvent применяет событие провайдера к заказу и подписке.
// Повторные доставки возвращают nil без побочных эффектов.
// models.ErrValidation и models.ErrOrderNotFound означают неисправимое
// уведомление, любая другая ошибка — событие не обработано и провайдер
// должен его повторить.
func (s *Service) ProcessWebhookEvent(ctx context.Context, ev WebhookEvent) error {
	const op = "services.payment.ProcessWebhookEvent"

	if ev.ChargeIDClient == "" {
		return fmt.Errorf("%s: charge_id_client is missing in metadata: %w",
			op, models.ErrValidation)
	}

	order, err := s.orders.FindByChargeClientID(ctx, ev.ChargeIDClient)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch ev.Event {
	case EventPaymentSucceeded:
		return s.handleSucceeded(ctx, order, ev)
	case EventPaymentCanceled:
		return s.handleCanceled(ctx, order)
	default:
		s.log.Info("ignoring unknown provider event",
			slog.String("event", ev.Event),
			slog.Int64("order_id", order.ID))
		return nil
	}
}

func (s *Service) handleSucceeded(ctx context.Context, order *models.Order, ev WebhookEvent) error {
	const op = "services.payment.handleSucceeded"

	paid, err := s.orders.MarkPaid(ctx, order.ID, ev.ChargeIDClient, ev.PaymentID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, models.ErrDuplicateCharge) {
			s.log.Info("duplicate payment notification absorbed",
				slog.Int64("order_id", order.ID),
				slog.String("charge_id_provider", ev.PaymentID))
			return nil
		}
		if errors.Is(err, models.ErrInvalidTransition) {
			// Успешный платёж по заказу, который уже закрыт как failed.
			// Деньги списаны, состояние не трогаем, нужен ручной разбор.
			s.log.Error("payment succeeded for terminal order",
				slog.Int64("order_id", order.ID),
				slog.String("charge_id_provider", ev.PaymentID))
			s.notifyByUser(ctx, order.UserID, delivery.EventPaymentOrphaned)
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if paid.Product == models.ProductSubscriptionMonth {
		return s.applySubscriptionPayment(ctx, paid, ev)
	}

	if err := s.delivery.Deliver(ctx, paid); err != nil {
		// Заказ уже оплачен, повтор вебхука выдачу не перезапустит.
		// Логируем и подтверждаем событие, разбор по логам.
		s.log.Error("failed to deliver paid order",
			slog.Int64("order_id", paid.ID), sl.Err(err))
	}
	return nil
}

func (s *Service) applySubscriptionPayment(ctx context.Context, paid *models.Order, ev WebhookEvent) error {
	const op = "services.payment.applySubscriptionPayment"

	paidAt := time.Now().UTC()
	if paid.PaidAt != nil {
		paidAt = *paid.PaidAt
	}
	result, err := s.subscriptions.OnRenewalPaid(ctx, paid.UserID, paidAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if result == subscription.RenewalOrphaned {
		s.notifyByUser(ctx, paid.UserID, delivery.EventPaymentOrphaned)
		return nil
	}

	if ev.PaymentSaved && ev.PaymentMethodID != "" {
		if err := s.subscriptions.SaveProviderID(ctx, paid.UserID, ev.PaymentMethodID); err != nil {
			s.log.Error("failed to save provider payment method",
				slog.Int64("user_id", paid.UserID), sl.Err(err))
		}
	}

	event := delivery.EventSubscriptionActivated
	var payload renewalPayload
	if len(paid.Payload) > 0 && json.Unmarshal(paid.Payload, &payload) == nil && payload.Renewal {
		event = delivery.EventSubscriptionRenewed
	}
	s.notifyByUser(ctx, paid.UserID, event)
	return nil
}

func (s *Service) handleCanceled(ctx context.Context, order *models.Order) error {
	const op = "services.payment.handleCanceled"

	if err := s.orders.MarkFailed(ctx, order.ID, "canceled by provider"); err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			s.log.Info("duplicate cancel notification absorbed",
				slog.Int64("order_id", order.ID))
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if order.Product == models.ProductSubscriptionMonth {
		canceled, attempts, err := s.subscriptions.OnRenewalFailed(ctx, order.UserID, "provider canceled payment")
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if canceled {
			s.notifyByUser(ctx, order.UserID, delivery.EventSubscriptionCanceled)
		}
		s.log.Info("subscription charge attempt failed",
			slog.Int64("user_id", order.UserID),
			slog.Int("attempts", attempts))
	}
	return nil
}

func (s *Service) notifyByUser(ctx context.Context, userID int64, event string) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		s.log.Error("failed to load user for notification",
			slog.Int64("user_id", userID), sl.Err(err))
		return
	}
	if err := s.delivery.NotifySubscription(user.TgID, event); err != nil {
		s.log.Error("failed to publish subscription notification",
			slog.Int64("user_id", userID), sl.Err(err))
	}
}
