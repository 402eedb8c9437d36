// Package scheduler реализует ежедневный свип продления подписок:
// закрывает зависшие заказы продления, списывает оплату с подписок
// с подошедшей датой и отменяет подписки с исчерпанными попытками.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/numerology-bot/internal/config"
	"github.com/magabrotheeeer/numerology-bot/internal/lib/sl"
	"github.com/magabrotheeeer/numerology-bot/internal/models"
	"github.com/magabrotheeeer/numerology-bot/internal/paymentprovider"
	"github.com/magabrotheeeer/numerology-bot/internal/services/delivery"
)

// SchedulerRepository определяет методы хранилища для свипа продлений.
type SchedulerRepository interface {
	ListDueSubscriptions(ctx context.Context, today time.Time) ([]*models.Subscription, error)
	FindStalePendingOrders(ctx context.Context, product string, olderThan time.Time) ([]*models.Order, error)
	HasPendingRenewalOrder(ctx context.Context, userID int64) (bool, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Orders определяет операции над заказами продления.
type Orders interface {
	Create(ctx context.Context, userID int64, product string, price int, currency, chargeIDClient string, payload json.RawMessage) (int64, error)
	MarkFailed(ctx context.Context, id int64, reason string) error
}

// Subscriptions определяет операции над подписками при неудачных списаниях.
type Subscriptions interface {
	OnRenewalFailed(ctx context.Context, userID int64, reason string) (bool, int, error)
}

// Provider определяет клиент платёжного провайдера.
type Provider interface {
	CreatePayment(idempotenceKey string, reqParams paymentprovider.CreatePaymentRequest) (*paymentprovider.CreatePaymentResponse, error)
}

// Notifier определяет публикацию уведомлений о событиях подписки.
type Notifier interface {
	NotifySubscription(tgID int64, event string) error
}

// Service реализует свип продления подписок.
type Service struct {
	repo          SchedulerRepository
	orders        Orders
	subscriptions Subscriptions
	provider      Provider
	notifier      Notifier
	billing       config.Billing
	log           *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo SchedulerRepository, orders Orders, subscriptions Subscriptions,
	provider Provider, notifier Notifier, billing config.Billing, log *slog.Logger) *Service {
	return &Service{
		repo:          repo,
		orders:        orders,
		subscriptions: subscriptions,
		provider:      provider,
		notifier:      notifier,
		billing:       billing,
		log:           log,
	}
}

// Run запускает периодический свип до отмены контекста.
// Первый свип выполняется сразу при старте.
func (s *Service) Run(ctx context.Context) {
	s.Sweep(ctx)

	ticker := time.NewTicker(s.billing.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("renewal scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep выполняет один проход: сперва закрывает зависшие заказы продления,
// затем обрабатывает подписки с подошедшей датой списания. Ошибка по одной
// подписке не прерывает обработку остальных.
func (s *Service) Sweep(ctx context.Context) {
	now := time.Now().UTC()

	s.closeStaleOrders(ctx, now)
	s.chargeDueSubscriptions(ctx, now)
}

// closeStaleOrders закрывает заказы продления, по которым провайдер
// так и не ответил. Каждый такой заказ считается неудачной попыткой
// списания.
func (s *Service) closeStaleOrders(ctx context.Context, now time.Time) {
	stale, err := s.repo.FindStalePendingOrders(ctx,
		models.ProductSubscriptionMonth, now.Add(-s.billing.PendingOrderTTL))
	if err != nil {
		s.log.Error("failed to list stale renewal orders", sl.Err(err))
		return
	}

	for _, order := range stale {
		if err := s.orders.MarkFailed(ctx, order.ID, "provider response timeout"); err != nil {
			s.log.Error("failed to close stale renewal order",
				slog.Int64("order_id", order.ID), sl.Err(err))
			continue
		}
		s.registerFailedCharge(ctx, order.UserID, "provider response timeout")
		s.log.Info("stale renewal order closed",
			slog.Int64("order_id", order.ID),
			slog.Int64("user_id", order.UserID))
	}
}

func (s *Service) chargeDueSubscriptions(ctx context.Context, now time.Time) {
	due, err := s.repo.ListDueSubscriptions(ctx, now)
	if err != nil {
		s.log.Error("failed to list due subscriptions", sl.Err(err))
		return
	}
	s.log.Info("renewal sweep started", slog.Int("due_count", len(due)))

	for _, sub := range due {
		if err := s.chargeOne(ctx, sub); err != nil {
			s.log.Error("failed to charge subscription",
				slog.Int64("user_id", sub.UserID), sl.Err(err))
		}
	}
}

// chargeOne создает заказ продления и платёж у провайдера по сохранённому
// способу оплаты. Результат списания придёт вебхуком; пока заказ продления
// не закрыт, повторный свип пользователя пропускает.
func (s *Service) chargeOne(ctx context.Context, sub *models.Subscription) error {
	const op = "services.scheduler.chargeOne"

	pending, err := s.repo.HasPendingRenewalOrder(ctx, sub.UserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if pending {
		s.log.Info("renewal order already pending, skipping",
			slog.Int64("user_id", sub.UserID))
		return nil
	}

	if sub.ProviderID == nil {
		s.registerFailedCharge(ctx, sub.UserID, "no saved payment method")
		return nil
	}

	chargeID := uuid.NewString()
	orderID, err := s.orders.Create(ctx, sub.UserID, models.ProductSubscriptionMonth,
		s.billing.SubscriptionPrice, s.billing.Currency, chargeID,
		json.RawMessage(`{"renewal":true}`))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.provider.CreatePayment(chargeID, paymentprovider.CreatePaymentRequest{
		Amount: paymentprovider.Amount{
			Value:    fmt.Sprintf("%d.00", s.billing.SubscriptionPrice),
			Currency: s.billing.Currency,
		},
		Capture:         true,
		Description:     fmt.Sprintf("subscription renewal, order %d", orderID),
		PaymentMethodID: *sub.ProviderID,
		Metadata: map[string]string{
			"order_id":         fmt.Sprintf("%d", orderID),
			"charge_id_client": chargeID,
		},
	})
	if err != nil {
		if ferr := s.orders.MarkFailed(ctx, orderID, "provider request failed"); ferr != nil {
			s.log.Error("failed to close order after provider error", sl.Err(ferr))
		}
		s.registerFailedCharge(ctx, sub.UserID, "provider request failed")
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("renewal charge requested",
		slog.Int64("user_id", sub.UserID),
		slog.Int64("order_id", orderID))
	return nil
}

// registerFailedCharge регистрирует неудачную попытку списания
// и уведомляет пользователя, если подписка отменена.
func (s *Service) registerFailedCharge(ctx context.Context, userID int64, reason string) {
	canceled, attempts, err := s.subscriptions.OnRenewalFailed(ctx, userID, reason)
	if err != nil {
		s.log.Error("failed to register charge failure",
			slog.Int64("user_id", userID), sl.Err(err))
		return
	}
	if !canceled {
		s.log.Info("charge attempt registered",
			slog.Int64("user_id", userID),
			slog.Int("attempts", attempts))
		return
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		s.log.Error("failed to load user for cancel notification",
			slog.Int64("user_id", userID), sl.Err(err))
		return
	}
	if err := s.notifier.NotifySubscription(user.TgID, delivery.EventSubscriptionCanceled); err != nil {
		s.log.Error("failed to publish cancel notification",
			slog.Int64("user_id", userID), sl.Err(err))
	}
}
