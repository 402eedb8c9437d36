package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/numerology-bot/internal/models"
)

// CreateSubscription вставляет новую подписку и возвращает её ID.
// Частичный уникальный индекс не допускает второй незавершённой подписки
// у пользователя, нарушение транслируется в models.ErrSubscriptionExists.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_id, status, trial_end, next_charge, provider_id)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING id`
	var newID int64
	err := s.DB.QueryRowContext(ctx, query,
		sub.UserID, sub.Status, sub.TrialEnd, sub.NextCharge, sub.ProviderID).Scan(&newID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%s: %w", op, models.ErrSubscriptionExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// FindCurrentSubscription возвращает незавершённую подписку пользователя.
func (s *Storage) FindCurrentSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "storage.FindCurrentSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, status, trial_end, next_charge, provider_id,
			      charge_attempts, created_at, updated_at
			  FROM subscriptions
			  WHERE user_id = $1 AND status <> 'canceled'`
	return scanSubscription(s.DB.QueryRowContext(ctx, query, userID), op)
}

// FindLatestSubscription возвращает последнюю подписку пользователя
// независимо от статуса. Нужна, чтобы отличить пользователя без подписки
// от пользователя с отменённой подпиской.
func (s *Storage) FindLatestSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "storage.FindLatestSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, status, trial_end, next_charge, provider_id,
			      charge_attempts, created_at, updated_at
			  FROM subscriptions
			  WHERE user_id = $1
			  ORDER BY created_at DESC
			  LIMIT 1`
	return scanSubscription(s.DB.QueryRowContext(ctx, query, userID), op)
}

func scanSubscription(row *sql.Row, op string) (*models.Subscription, error) {
	var sub models.Subscription
	var trialEnd, nextCharge sql.NullTime
	var providerID sql.NullString
	err := row.Scan(&sub.ID, &sub.UserID, &sub.Status, &trialEnd, &nextCharge,
		&providerID, &sub.ChargeAttempts, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrSubscriptionNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if trialEnd.Valid {
		sub.TrialEnd = &trialEnd.Time
	}
	if nextCharge.Valid {
		sub.NextCharge = &nextCharge.Time
	}
	if providerID.Valid {
		sub.ProviderID = &providerID.String
	}
	return &sub, nil
}

// ActivateSubscription переводит незавершённую подписку пользователя
// в active, устанавливает дату следующего списания и сбрасывает счётчик
// неудачных попыток.
func (s *Storage) ActivateSubscription(ctx context.Context, userID int64, nextCharge time.Time) error {
	const op = "storage.ActivateSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = 'active', next_charge = $2, charge_attempts = 0, updated_at = now()
			  WHERE user_id = $1 AND status <> 'canceled'`
	result, err := s.DB.ExecContext(ctx, query, userID, nextCharge)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrSubscriptionNotFound)
	}
	return nil
}

// UpdateProviderID сохраняет идентификатор способа оплаты у провайдера
// для последующих автосписаний.
func (s *Storage) UpdateProviderID(ctx context.Context, userID int64, providerID string) error {
	const op = "storage.UpdateProviderID"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET provider_id = $2, updated_at = now()
			  WHERE user_id = $1 AND status <> 'canceled'`
	if _, err := s.DB.ExecContext(ctx, query, userID, providerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// IncrementChargeAttempts увеличивает счётчик неудачных попыток продления
// и возвращает новое значение.
func (s *Storage) IncrementChargeAttempts(ctx context.Context, userID int64) (int, error) {
	const op = "storage.IncrementChargeAttempts"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET charge_attempts = charge_attempts + 1, updated_at = now()
			  WHERE user_id = $1 AND status <> 'canceled'
			  RETURNING charge_attempts`
	var attempts int
	err := s.DB.QueryRowContext(ctx, query, userID).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, models.ErrSubscriptionNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return attempts, nil
}

// CancelSubscription переводит незавершённую подписку пользователя
// в canceled. Возвращает false, если незавершённой подписки не было:
// повторная отмена не считается ошибкой.
func (s *Storage) CancelSubscription(ctx context.Context, userID int64) (bool, error) {
	const op = "storage.CancelSubscription"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = 'canceled', updated_at = now()
			  WHERE user_id = $1 AND status <> 'canceled'`
	result, err := s.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// ListDueSubscriptions возвращает подписки, ожидающие списания:
// trial с истёкшим пробным периодом и active с подошедшей датой списания.
func (s *Storage) ListDueSubscriptions(ctx context.Context, today time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListDueSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_id, status, trial_end, next_charge, provider_id,
			      charge_attempts, created_at, updated_at
			  FROM subscriptions
			  WHERE (status = 'trial' AND trial_end <= $1)
			     OR (status = 'active' AND next_charge <= $1)
			  ORDER BY id`
	rows, err := s.DB.QueryContext(ctx, query, today)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		var sub models.Subscription
		var trialEnd, nextCharge sql.NullTime
		var providerID sql.NullString
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Status, &trialEnd, &nextCharge,
			&providerID, &sub.ChargeAttempts, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if trialEnd.Valid {
			sub.TrialEnd = &trialEnd.Time
		}
		if nextCharge.Valid {
			sub.NextCharge = &nextCharge.Time
		}
		if providerID.Valid {
			sub.ProviderID = &providerID.String
		}
		result = append(result, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListActiveSubscribers возвращает пользователей с действующей подпиской
// и включёнными уведомлениями для еженедельной рассылки прогнозов.
func (s *Storage) ListActiveSubscribers(ctx context.Context, today time.Time) ([]*models.User, error) {
	const op = "storage.ListActiveSubscribers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT u.id, u.tg_id, u.fio, u.birthdate, u.lang, u.push_enabled,
			      u.state, u.created_at
			  FROM users u
			  JOIN subscriptions s ON u.id = s.user_id
			  WHERE s.status IN ('active', 'trial')
			    AND (s.trial_end IS NULL OR s.trial_end >= $1)
			    AND u.push_enabled = true
			  ORDER BY u.id`
	rows, err := s.DB.QueryContext(ctx, query, today)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		var u models.User
		var fio, state sql.NullString
		var birthdate sql.NullTime
		if err := rows.Scan(&u.ID, &u.TgID, &fio, &birthdate, &u.Lang,
			&u.PushEnabled, &state, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if fio.Valid {
			u.FIO = fio.String
		}
		if birthdate.Valid {
			u.Birthdate = &birthdate.Time
		}
		if state.Valid {
			u.State = state.String
		}
		result = append(result, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
