// Package subscription реализует машину состояний подписки:
// trial -> active -> canceled, из canceled возврата нет.
// Даты списаний движутся только вперёд, после исчерпания попыток
// продления подписка отменяется.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/numerology-bot/internal/lib/sl"
	"github.com/magabrotheeeer/numerology-bot/internal/models"
)

// Итог обработки успешного продления.
const (
	// RenewalApplied продление применено, подписка активна.
	RenewalApplied = "applied"
	// RenewalOrphaned платёж пришёл по уже отменённой подписке.
	// Состояние подписки не меняется, деньги требуют ручного разбора.
	RenewalOrphaned = "orphaned"
)

const cacheTTL = 5 * time.Minute

// SubscriptionRepository определяет методы хранилища для работы с подписками.
type SubscriptionRepository interface {
	CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error)
	FindCurrentSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
	FindLatestSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
	ActivateSubscription(ctx context.Context, userID int64, nextCharge time.Time) error
	UpdateProviderID(ctx context.Context, userID int64, providerID string) error
	IncrementChargeAttempts(ctx context.Context, userID int64) (int, error)
	CancelSubscription(ctx context.Context, userID int64) (bool, error)
	EnsureUser(ctx context.Context, tgID int64) (int64, error)
	GetUserByTgID(ctx context.Context, tgID int64) (*models.User, error)
}

// Cache определяет методы кеша статусов подписки.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service реализует операции над подписками.
type Service struct {
	repo              SubscriptionRepository
	cache             Cache
	log               *slog.Logger
	trialDays         int
	billingPeriodDays int
	maxChargeAttempts int
}

// New создает новый экземпляр Service.
func New(repo SubscriptionRepository, cache Cache, log *slog.Logger,
	trialDays, billingPeriodDays, maxChargeAttempts int) *Service {
	return &Service{
		repo:              repo,
		cache:             cache,
		log:               log,
		trialDays:         trialDays,
		billingPeriodDays: billingPeriodDays,
		maxChargeAttempts: maxChargeAttempts,
	}
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("subscription:user:%d", userID)
}

// StartTrial создает пробную подписку для пользователя Telegram.
// Возвращает models.ErrSubscriptionExists, если у пользователя уже есть
// незавершённая подписка.
func (s *Service) StartTrial(ctx context.Context, tgID int64) (*models.Subscription, error) {
	const op = "services.subscription.StartTrial"

	userID, err := s.repo.EnsureUser(ctx, tgID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	trialEnd := time.Now().UTC().AddDate(0, 0, s.trialDays)
	sub := models.Subscription{
		UserID:   userID,
		Status:   models.SubscriptionStatusTrial,
		TrialEnd: &trialEnd,
	}
	if _, err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateCache(userID)

	created, err := s.repo.FindCurrentSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("started trial subscription",
		slog.Int64("user_id", userID),
		slog.Time("trial_end", trialEnd))
	return created, nil
}

// Current возвращает незавершённую подписку пользователя Telegram,
// сперва проверяя кеш. Возвращает models.ErrSubscriptionNotFound,
// если подписки нет или она отменена.
func (s *Service) Current(ctx context.Context, tgID int64) (*models.Subscription, error) {
	const op = "services.subscription.Current"

	user, err := s.repo.GetUserByTgID(ctx, tgID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	key := cacheKey(user.ID)
	var cached models.Subscription
	found, err := s.cache.Get(key, &cached)
	if err != nil {
		s.log.Warn("failed to read subscription from cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	sub, err := s.repo.FindCurrentSubscription(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(key, sub, cacheTTL); err != nil {
		s.log.Warn("failed to cache subscription", sl.Err(err))
	}
	return sub, nil
}

// Cancel отменяет подписку пользователя Telegram. Возвращает false,
// если незавершённой подписки не было: повторная отмена не ошибка.
func (s *Service) Cancel(ctx context.Context, tgID int64) (bool, error) {
	const op = "services.subscription.Cancel"

	user, err := s.repo.GetUserByTgID(ctx, tgID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	canceled, err := s.repo.CancelSubscription(ctx, user.ID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateCache(user.ID)

	if canceled {
		s.log.Info("subscription canceled", slog.Int64("user_id", user.ID))
	}
	return canceled, nil
}

// SaveProviderID сохраняет идентификатор способа оплаты для автосписаний.
func (s *Service) SaveProviderID(ctx context.Context, userID int64, providerID string) error {
	const op = "services.subscription.SaveProviderID"

	if err := s.repo.UpdateProviderID(ctx, userID, providerID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateCache(userID)
	return nil
}

// OnRenewalPaid применяет успешную оплату подписки. Подписка переходит
// в active, дата следующего списания сдвигается строго вперёд:
// от максимума из даты оплаты и прежней даты списания.
// Если подписки не было вовсе, она создается сразу в active.
// Если последняя подписка пользователя отменена, платёж считается
// осиротевшим и состояние не меняется.
func (s *Service) OnRenewalPaid(ctx context.Context, userID int64, paidAt time.Time) (string, error) {
	const op = "services.subscription.OnRenewalPaid"

	current, err := s.repo.FindCurrentSubscription(ctx, userID)
	switch {
	case err == nil:
		next := paidAt
		if current.NextCharge != nil && current.NextCharge.After(next) {
			next = *current.NextCharge
		}
		next = next.AddDate(0, 0, s.billingPeriodDays)
		if err := s.repo.ActivateSubscription(ctx, userID, next); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		s.invalidateCache(userID)
		s.log.Info("subscription renewed",
			slog.Int64("user_id", userID),
			slog.Time("next_charge", next))
		return RenewalApplied, nil
	case errors.Is(err, models.ErrSubscriptionNotFound):
		latest, lerr := s.repo.FindLatestSubscription(ctx, userID)
		if lerr == nil && latest.Status == models.SubscriptionStatusCanceled {
			s.log.Warn("payment received for canceled subscription",
				slog.Int64("user_id", userID))
			return RenewalOrphaned, nil
		}
		if lerr != nil && !errors.Is(lerr, models.ErrSubscriptionNotFound) {
			return "", fmt.Errorf("%s: %w", op, lerr)
		}
		next := paidAt.AddDate(0, 0, s.billingPeriodDays)
		sub := models.Subscription{
			UserID:     userID,
			Status:     models.SubscriptionStatusActive,
			NextCharge: &next,
		}
		if _, cerr := s.repo.CreateSubscription(ctx, sub); cerr != nil {
			return "", fmt.Errorf("%s: %w", op, cerr)
		}
		s.invalidateCache(userID)
		s.log.Info("subscription created from payment",
			slog.Int64("user_id", userID),
			slog.Time("next_charge", next))
		return RenewalApplied, nil
	default:
		return "", fmt.Errorf("%s: %w", op, err)
	}
}

// OnRenewalFailed регистрирует неудачную попытку продления.
// После maxChargeAttempts неудач подряд подписка отменяется.
// Возвращает признак отмены и текущее число попыток.
func (s *Service) OnRenewalFailed(ctx context.Context, userID int64, reason string) (bool, int, error) {
	const op = "services.subscription.OnRenewalFailed"

	attempts, err := s.repo.IncrementChargeAttempts(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrSubscriptionNotFound) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateCache(userID)

	s.log.Info("subscription charge failed",
		slog.Int64("user_id", userID),
		slog.Int("attempts", attempts),
		slog.String("reason", reason))

	if attempts < s.maxChargeAttempts {
		return false, attempts, nil
	}

	canceled, err := s.repo.CancelSubscription(ctx, userID)
	if err != nil {
		return false, attempts, fmt.Errorf("%s: %w", op, err)
	}
	s.invalidateCache(userID)
	if canceled {
		s.log.Warn("subscription canceled after exhausted charge attempts",
			slog.Int64("user_id", userID),
			slog.Int("attempts", attempts))
	}
	return canceled, attempts, nil
}

func (s *Service) invalidateCache(userID int64) {
	if err := s.cache.Invalidate(cacheKey(userID)); err != nil {
		s.log.Warn("failed to invalidate subscription cache", sl.Err(err))
	}
}
