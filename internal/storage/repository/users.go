package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/numerology-bot/internal/models"
)

// EnsureUser возвращает ID пользователя по идентификатору Telegram,
// создавая запись при первом обращении.
func (s *Storage) EnsureUser(ctx context.Context, tgID int64) (int64, error) {
	const op = "storage.EnsureUser"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (tg_id) VALUES ($1)
			  ON CONFLICT (tg_id) DO UPDATE SET tg_id = EXCLUDED.tg_id
			  RETURNING id`
	var id int64
	if err := s.DB.QueryRowContext(ctx, query, tgID).Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// GetUserByID возвращает пользователя по внутреннему ID.
func (s *Storage) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.GetUserByID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, tg_id, fio, birthdate, lang, push_enabled, state, created_at
			  FROM users WHERE id = $1`
	return scanUser(s.DB.QueryRowContext(ctx, query, id), op)
}

// GetUserByTgID возвращает пользователя по идентификатору Telegram.
func (s *Storage) GetUserByTgID(ctx context.Context, tgID int64) (*models.User, error) {
	const op = "storage.GetUserByTgID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, tg_id, fio, birthdate, lang, push_enabled, state, created_at
			  FROM users WHERE tg_id = $1`
	return scanUser(s.DB.QueryRowContext(ctx, query, tgID), op)
}

// UpdateUserProfile обновляет ФИО и дату рождения пользователя.
func (s *Storage) UpdateUserProfile(ctx context.Context, tgID int64, fio string, birthdate time.Time) error {
	const op = "storage.UpdateUserProfile"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET fio = $2, birthdate = $3 WHERE tg_id = $1`
	result, err := s.DB.ExecContext(ctx, query, tgID, fio, birthdate)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	}
	return nil
}

func scanUser(row *sql.Row, op string) (*models.User, error) {
	var u models.User
	var fio, state sql.NullString
	var birthdate sql.NullTime
	err := row.Scan(&u.ID, &u.TgID, &fio, &birthdate, &u.Lang,
		&u.PushEnabled, &state, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
		}
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
	return &u, nil
}
