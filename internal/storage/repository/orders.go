package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/numerology-bot/internal/models"
)

// CreateOrder вставляет новый заказ в статусе pending и возвращает его ID.
func (s *Storage) CreateOrder(ctx context.Context, order models.Order) (int64, error) {
	const op = "storage.CreateOrder"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO orders (user_id, product, price, currency, status,
			      charge_id_client, payload)
			  VALUES ($1, $2, $3, $4, 'pending', $5, $6)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		order.UserID, order.Product, order.Price, order.Currency,
		order.ChargeIDClient, order.Payload).Scan(&newID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%s: %w", op, models.ErrDuplicateCharge)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetOrder возвращает заказ по его ID.
func (s *Storage) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	const op = "storage.GetOrder"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, product, price, currency, status, paid_at,
			      charge_id_client, charge_id_provider, payload, fail_reason, created_at
			  FROM orders WHERE id = $1`
	return s.scanOrder(s.DB.QueryRowContext(ctx, query, id), op)
}

// FindOrderByChargeClientID находит заказ по клиентскому идентификатору
// платежа, который был передан провайдеру при создании платежа.
func (s *Storage) FindOrderByChargeClientID(ctx context.Context, chargeID string) (*models.Order, error) {
	const op = "storage.FindOrderByChargeClientID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, product, price, currency, status, paid_at,
			      charge_id_client, charge_id_provider, payload, fail_reason, created_at
			  FROM orders WHERE charge_id_client = $1`
	return s.scanOrder(s.DB.QueryRowContext(ctx, query, chargeID), op)
}

func (s *Storage) scanOrder(row *sql.Row, op string) (*models.Order, error) {
	var o models.Order
	var paidAt sql.NullTime
	var chargeClient, chargeProvider, failReason sql.NullString
	err := row.Scan(&o.ID, &o.UserID, &o.Product, &o.Price, &o.Currency, &o.Status,
		&paidAt, &chargeClient, &chargeProvider, &o.Payload, &failReason, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if paidAt.Valid {
		o.PaidAt = &paidAt.Time
	}
	if chargeClient.Valid {
		o.ChargeIDClient = &chargeClient.String
	}
	if chargeProvider.Valid {
		o.ChargeIDProvider = &chargeProvider.String
	}
	if failReason.Valid {
		o.FailReason = &failReason.String
	}
	return &o, nil
}

// MarkOrderPaid переводит заказ из pending в paid и закрепляет за ним
// идентификаторы платежа. Переход выполняется одним UPDATE с проверкой
// статуса, поэтому конкурентные обработчики не могут оплатить заказ дважды.
// Возвращает models.ErrDuplicateCharge, если идентификатор платежа уже
// закреплён за другим заказом, и models.ErrInvalidTransition при попытке
// перевести заказ из терминального статуса.
func (s *Storage) MarkOrderPaid(ctx context.Context, id int64, chargeIDClient, chargeIDProvider string, paidAt time.Time) error {
	const op = "storage.MarkOrderPaid"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE orders
			  SET status = 'paid', paid_at = $2, charge_id_client = $3, charge_id_provider = $4
			  WHERE id = $1 AND status = 'pending'`
	result, err := s.DB.ExecContext(ctx, query, id, paidAt, chargeIDClient, chargeIDProvider)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, models.ErrDuplicateCharge)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		current, err := s.GetOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if current.Status == models.OrderStatusPaid && current.ChargeIDProvider != nil &&
			*current.ChargeIDProvider == chargeIDProvider {
			return fmt.Errorf("%s: %w", op, models.ErrDuplicateCharge)
		}
		return fmt.Errorf("%s: %w", op, models.ErrInvalidTransition)
	}
	return nil
}

// MarkOrderFailed переводит заказ из pending в failed с указанием причины.
func (s *Storage) MarkOrderFailed(ctx context.Context, id int64, reason string) error {
	const op = "storage.MarkOrderFailed"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE orders
			  SET status = 'failed', fail_reason = $2
			  WHERE id = $1 AND status = 'pending'`
	result, err := s.DB.ExecContext(ctx, query, id, reason)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		if _, err := s.GetOrder(ctx, id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return fmt.Errorf("%s: %w", op, models.ErrInvalidTransition)
	}
	return nil
}

// FindStalePendingOrders возвращает pending-заказы продукта, созданные
// раньше указанного момента. Планировщик закрывает такие заказы как
// failed, чтобы продление не зависало в ожидании ответа провайдера.
func (s *Storage) FindStalePendingOrders(ctx context.Context, product string, olderThan time.Time) ([]*models.Order, error) {
	const op = "storage.FindStalePendingOrders"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, product, price, currency, status, paid_at,
			      charge_id_client, charge_id_provider, payload, fail_reason, created_at
			  FROM orders
			  WHERE product = $1 AND status = 'pending' AND created_at < $2
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, product, olderThan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Order
	for rows.Next() {
		var o models.Order
		var paidAt sql.NullTime
		var chargeClient, chargeProvider, failReason sql.NullString
		if err := rows.Scan(&o.ID, &o.UserID, &o.Product, &o.Price, &o.Currency, &o.Status,
			&paidAt, &chargeClient, &chargeProvider, &o.Payload, &failReason, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if paidAt.Valid {
			o.PaidAt = &paidAt.Time
		}
		if chargeClient.Valid {
			o.ChargeIDClient = &chargeClient.String
		}
		if chargeProvider.Valid {
			o.ChargeIDProvider = &chargeProvider.String
		}
		if failReason.Valid {
			o.FailReason = &failReason.String
		}
		result = append(result, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// HasPendingRenewalOrder сообщает, есть ли у пользователя незакрытый
// заказ продления. Защищает планировщик от создания дублей между свипами.
func (s *Storage) HasPendingRenewalOrder(ctx context.Context, userID int64) (bool, error) {
	const op = "storage.HasPendingRenewalOrder"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT EXISTS (
			      SELECT 1 FROM orders
			      WHERE user_id = $1 AND product = $2 AND status = 'pending')`
	var exists bool
	err := s.DB.QueryRowContext(ctx, query, userID, models.ProductSubscriptionMonth).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}
