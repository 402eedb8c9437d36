package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/numerology-bot/internal/models"
)

func TestStorage_CreateSubscription_OneActivePerUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	userID := factory.CreateUser(t, 100)
	trialEnd := time.Now().UTC().AddDate(0, 0, 3)

	_, err := storage.CreateSubscription(ctx, models.Subscription{
		UserID:   userID,
		Status:   models.SubscriptionStatusTrial,
		TrialEnd: &trialEnd,
	})
	require.NoError(t, err)

	// Вторая незавершённая подписка запрещена индексом
	_, err = storage.CreateSubscription(ctx, models.Subscription{
		UserID:   userID,
		Status:   models.SubscriptionStatusTrial,
		TrialEnd: &trialEnd,
	})
	require.ErrorIs(t, err, models.ErrSubscriptionExists)

	// После отмены новая подписка создается
	canceled, err := storage.CancelSubscription(ctx, userID)
	require.NoError(t, err)
	assert.True(t, canceled)

	nextCharge := time.Now().UTC().AddDate(0, 0, 30)
	_, err = storage.CreateSubscription(ctx, models.Subscription{
		UserID:     userID,
		Status:     models.SubscriptionStatusActive,
		NextCharge: &nextCharge,
	})
	require.NoError(t, err)
}

func TestStorage_FindCurrentSubscription(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	userID := factory.CreateUser(t, 100)

	_, err := storage.FindCurrentSubscription(ctx, userID)
	require.ErrorIs(t, err, models.ErrSubscriptionNotFound)

	trialEnd := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	subID := factory.CreateSubscription(t, userID, models.SubscriptionStatusTrial, &trialEnd, nil)

	got, err := storage.FindCurrentSubscription(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, subID, got.ID)
	assert.Equal(t, models.SubscriptionStatusTrial, got.Status)
	require.NotNil(t, got.TrialEnd)
	assert.True(t, trialEnd.Equal(*got.TrialEnd))

	canceled, err := storage.CancelSubscription(ctx, userID)
	require.NoError(t, err)
	assert.True(t, canceled)

	// Отмененная подписка текущей не считается, но остается последней
	_, err = storage.FindCurrentSubscription(ctx, userID)
	require.ErrorIs(t, err, models.ErrSubscriptionNotFound)

	latest, err := storage.FindLatestSubscription(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, subID, latest.ID)
	assert.Equal(t, models.SubscriptionStatusCanceled, latest.Status)
}

func TestStorage_ActivateSubscription(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	userID := factory.CreateUser(t, 100)
	trialEnd := time.Now().UTC().AddDate(0, 0, 3)
	factory.CreateSubscription(t, userID, models.SubscriptionStatusTrial, &trialEnd, nil)

	_, err := storage.IncrementChargeAttempts(ctx, userID)
	require.NoError(t, err)

	nextCharge := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	err = storage.ActivateSubscription(ctx, userID, nextCharge)
	require.NoError(t, err)

	got, err := storage.FindCurrentSubscription(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, got.Status)
	require.NotNil(t, got.NextCharge)
	assert.True(t, nextCharge.Equal(*got.NextCharge))
	assert.Equal(t, 0, got.ChargeAttempts)
}

func TestStorage_IncrementChargeAttempts(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	userID := factory.CreateUser(t, 100)
	nextCharge := time.Now().UTC()
	factory.CreateSubscription(t, userID, models.SubscriptionStatusActive, nil, &nextCharge)

	attempts, err := storage.IncrementChargeAttempts(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)

	attempts, err = storage.IncrementChargeAttempts(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)

	_, err = storage.IncrementChargeAttempts(ctx, 9999)
	require.ErrorIs(t, err, models.ErrSubscriptionNotFound)
}

func TestStorage_CancelSubscription_Idempotence(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	userID := factory.CreateUser(t, 100)
	trialEnd := time.Now().UTC().AddDate(0, 0, 3)
	factory.CreateSubscription(t, userID, models.SubscriptionStatusTrial, &trialEnd, nil)

	canceled, err := storage.CancelSubscription(ctx, userID)
	require.NoError(t, err)
	assert.True(t, canceled)

	canceled, err = storage.CancelSubscription(ctx, userID)
	require.NoError(t, err)
	assert.False(t, canceled)
}

func TestStorage_ListDueSubscriptions(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	today := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	// Истекший триал и подошедшее списание попадают в выборку
	expiredTrialUser := factory.CreateUser(t, 100)
	expiredTrial := today.AddDate(0, 0, -1)
	expiredTrialID := factory.CreateSubscription(t, expiredTrialUser,
		models.SubscriptionStatusTrial, &expiredTrial, nil)

	dueActiveUser := factory.CreateUser(t, 200)
	dueCharge := today
	dueActiveID := factory.CreateSubscription(t, dueActiveUser,
		models.SubscriptionStatusActive, nil, &dueCharge)

	// Будущие даты и отмененные подписки в выборку не попадают
	futureUser := factory.CreateUser(t, 300)
	futureCharge := today.AddDate(0, 0, 10)
	factory.CreateSubscription(t, futureUser, models.SubscriptionStatusActive, nil, &futureCharge)

	canceledUser := factory.CreateUser(t, 400)
	factory.CreateSubscription(t, canceledUser, models.SubscriptionStatusCanceled, nil, &dueCharge)

	got, err := storage.ListDueSubscriptions(ctx, today)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, expiredTrialID, got[0].ID)
	assert.Equal(t, dueActiveID, got[1].ID)
}

func TestStorage_ListActiveSubscribers(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	today := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)

	activeUser := factory.CreateUser(t, 100)
	nextCharge := today.AddDate(0, 0, 10)
	factory.CreateSubscription(t, activeUser, models.SubscriptionStatusActive, nil, &nextCharge)

	// Пользователь с выключенными уведомлениями в рассылку не попадает
	mutedUser := factory.CreateUser(t, 200)
	_, err := storage.DB.Exec(`UPDATE users SET push_enabled = false WHERE id = $1`, mutedUser)
	require.NoError(t, err)
	factory.CreateSubscription(t, mutedUser, models.SubscriptionStatusActive, nil, &nextCharge)

	canceledUser := factory.CreateUser(t, 300)
	factory.CreateSubscription(t, canceledUser, models.SubscriptionStatusCanceled, nil, nil)

	got, err := storage.ListActiveSubscribers(ctx, today)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, activeUser, got[0].ID)
	assert.Equal(t, int64(100), got[0].TgID)
}

func TestStorage_EnsureUser(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()

	firstID, err := storage.EnsureUser(ctx, 100)
	require.NoError(t, err)

	secondID, err := storage.EnsureUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID)

	otherID, err := storage.EnsureUser(ctx, 200)
	require.NoError(t, err)
	assert.NotEqual(t, firstID, otherID)
}

func TestStorage_UpdateUserProfile(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	factory.CreateUser(t, 100)
	birthdate := time.Date(1985, 7, 23, 0, 0, 0, 0, time.UTC)

	err := storage.UpdateUserProfile(ctx, 100, "Петрова Анна Сергеевна", birthdate)
	require.NoError(t, err)

	got, err := storage.GetUserByTgID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Петрова Анна Сергеевна", got.FIO)
	require.NotNil(t, got.Birthdate)
	assert.True(t, birthdate.Equal(*got.Birthdate))

	err = storage.UpdateUserProfile(ctx, 9999, "Никто", birthdate)
	require.ErrorIs(t, err, models.ErrUserNotFound)
}
