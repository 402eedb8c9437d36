// Package order реализует машину состояний заказа:
// pending -> paid | failed, оба конечных статуса терминальные.
// Повторные переходы отклоняются, дедупликация платежей держится
// на уникальности идентификаторов платежа в хранилище.
package order

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/numerology-bot/internal/models"
)

// OrderRepository определяет методы хранилища для работы с заказами.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order models.Order) (int64, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	FindOrderByChargeClientID(ctx context.Context, chargeID string) (*models.Order, error)
	MarkOrderPaid(ctx context.Context, id int64, chargeIDClient, chargeIDProvider string, paidAt time.Time) error
	MarkOrderFailed(ctx context.Context, id int64, reason string) error
}

// Service реализует операции над заказами.
type Service struct {
	repo OrderRepository
	log  *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo OrderRepository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// Create создает новый заказ в статусе pending и возвращает его ID.
// Возвращает models.ErrValidation при неизвестном продукте или
// неположительной цене.
func (s *Service) Create(ctx context.Context, userID int64, product string, price int, currency, chargeIDClient string, payload json.RawMessage) (int64, error) {
	const op = "services.order.Create"

	if !models.KnownProduct(product) {
		return 0, fmt.Errorf("%s: unknown product %q: %w", op, product, models.ErrValidation)
	}
	if price <= 0 {
		return 0, fmt.Errorf("%s: price must be positive: %w", op, models.ErrValidation)
	}
	if currency == "" {
		return 0, fmt.Errorf("%s: currency is empty: %w", op, models.ErrValidation)
	}

	entry := models.Order{
		UserID:         userID,
		Product:        product,
		Price:          price,
		Currency:       currency,
		ChargeIDClient: &chargeIDClient,
		Payload:        payload,
	}
	id, err := s.repo.CreateOrder(ctx, entry)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("created new order",
		slog.Int64("order_id", id),
		slog.Int64("user_id", userID),
		slog.String("product", product))
	return id, nil
}

// Get возвращает заказ по ID.
func (s *Service) Get(ctx context.Context, id int64) (*models.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// FindByChargeClientID возвращает заказ по клиентскому идентификатору платежа.
func (s *Service) FindByChargeClientID(ctx context.Context, chargeID string) (*models.Order, error) {
	return s.repo.FindOrderByChargeClientID(ctx, chargeID)
}

// MarkPaid переводит заказ в paid и возвращает его актуальное состояние.
// Возможные ошибки: models.ErrDuplicateCharge при повторной доставке
// вебхука, models.ErrInvalidTransition при попытке оплатить заказ
// из терминального статуса.
func (s *Service) MarkPaid(ctx context.Context, id int64, chargeIDClient, chargeIDProvider string, paidAt time.Time) (*models.Order, error) {
	const op = "services.order.MarkPaid"

	if chargeIDClient == "" || chargeIDProvider == "" {
		return nil, fmt.Errorf("%s: charge identifiers are required: %w", op, models.ErrValidation)
	}

	if err := s.repo.MarkOrderPaid(ctx, id, chargeIDClient, chargeIDProvider, paidAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	paid, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("order marked paid",
		slog.Int64("order_id", id),
		slog.String("charge_id_provider", chargeIDProvider))
	return paid, nil
}

// MarkFailed переводит заказ в failed с указанием причины.
func (s *Service) MarkFailed(ctx context.Context, id int64, reason string) error {
	const op = "services.order.MarkFailed"

	if err := s.repo.MarkOrderFailed(ctx, id, reason); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("order marked failed",
		slog.Int64("order_id", id),
		slog.String("reason", reason))
	return nil
}
