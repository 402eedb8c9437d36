package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/numerology-bot/internal/models"
)

func TestStorage_CreateOrderAndGet(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	userID := factory.CreateUser(t, 100)
	chargeID := NewChargeID()

	gotID, err := storage.CreateOrder(ctx, models.Order{
		UserID:         userID,
		Product:        models.ProductFullReport,
		Price:          499,
		Currency:       "RUB",
		ChargeIDClient: &chargeID,
	})
	require.NoError(t, err)

	order, err := storage.GetOrder(ctx, gotID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.ProductFullReport, order.Product)
	assert.Equal(t, 499, order.Price)
	require.NotNil(t, order.ChargeIDClient)
	assert.Equal(t, chargeID, *order.ChargeIDClient)
	assert.Nil(t, order.PaidAt)

	byCharge, err := storage.FindOrderByChargeClientID(ctx, chargeID)
	require.NoError(t, err)
	assert.Equal(t, gotID, byCharge.ID)

	_, err = storage.FindOrderByChargeClientID(ctx, NewChargeID())
	require.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestStorage_CreateOrder_DuplicateChargeID(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	userID := factory.CreateUser(t, 100)
	chargeID := NewChargeID()
	factory.CreatePendingOrder(t, userID, models.ProductFullReport, chargeID)

	_, err := storage.CreateOrder(ctx, models.Order{
		UserID:         userID,
		Product:        models.ProductFullReport,
		Price:          499,
		Currency:       "RUB",
		ChargeIDClient: &chargeID,
	})
	require.ErrorIs(t, err, models.ErrDuplicateCharge)
}

func TestStorage_MarkOrderPaid(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	userID := factory.CreateUser(t, 100)
	chargeID := NewChargeID()
	orderID := factory.CreatePendingOrder(t, userID, models.ProductFullReport, chargeID)
	paidAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	err := storage.MarkOrderPaid(ctx, orderID, chargeID, "prov-1", paidAt)
	require.NoError(t, err)

	order, err := storage.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, order.Status)
	require.NotNil(t, order.PaidAt)
	assert.True(t, paidAt.Equal(*order.PaidAt))
	require.NotNil(t, order.ChargeIDProvider)
	assert.Equal(t, "prov-1", *order.ChargeIDProvider)

	// Повторная доставка того же платежа
	err = storage.MarkOrderPaid(ctx, orderID, chargeID, "prov-1", paidAt)
	require.ErrorIs(t, err, models.ErrDuplicateCharge)
}

func TestStorage_MarkOrderPaid_AfterFailed(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	userID := factory.CreateUser(t, 100)
	chargeID := NewChargeID()
	orderID := factory.CreatePendingOrder(t, userID, models.ProductFullReport, chargeID)

	err := storage.MarkOrderFailed(ctx, orderID, "provider response timeout")
	require.NoError(t, err)

	err = storage.MarkOrderPaid(ctx, orderID, chargeID, "prov-1", time.Now().UTC())
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	order, err := storage.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, order.Status)
	require.NotNil(t, order.FailReason)
	assert.Equal(t, "provider response timeout", *order.FailReason)
}

func TestStorage_MarkOrderPaid_ProviderIDTakenByOtherOrder(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	userID := factory.CreateUser(t, 100)
	firstCharge := NewChargeID()
	secondCharge := NewChargeID()
	firstOrder := factory.CreatePendingOrder(t, userID, models.ProductFullReport, firstCharge)
	secondOrder := factory.CreatePendingOrder(t, userID, models.ProductCompatibility, secondCharge)

	err := storage.MarkOrderPaid(ctx, firstOrder, firstCharge, "prov-1", time.Now().UTC())
	require.NoError(t, err)

	err = storage.MarkOrderPaid(ctx, secondOrder, secondCharge, "prov-1", time.Now().UTC())
	require.ErrorIs(t, err, models.ErrDuplicateCharge)
}

func TestStorage_MarkOrderFailed_Idempotence(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	userID := factory.CreateUser(t, 100)
	orderID := factory.CreatePendingOrder(t, userID, models.ProductSubscriptionMonth, NewChargeID())

	err := storage.MarkOrderFailed(ctx, orderID, "canceled by provider")
	require.NoError(t, err)

	err = storage.MarkOrderFailed(ctx, orderID, "canceled by provider")
	require.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestStorage_FindStalePendingOrders(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	userID := factory.CreateUser(t, 100)
	staleID := factory.CreatePendingOrder(t, userID, models.ProductSubscriptionMonth, NewChargeID())
	_, err := storage.DB.Exec(`UPDATE orders SET created_at = now() - interval '2 hours' WHERE id = $1`, staleID)
	require.NoError(t, err)

	// Свежий заказ и заказ другого продукта не должны попасть в выборку
	otherUser := factory.CreateUser(t, 200)
	factory.CreatePendingOrder(t, otherUser, models.ProductSubscriptionMonth, NewChargeID())
	factory.CreatePendingOrder(t, userID, models.ProductFullReport, NewChargeID())

	got, err := storage.FindStalePendingOrders(ctx, models.ProductSubscriptionMonth,
		time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, staleID, got[0].ID)
}

func TestStorage_HasPendingRenewalOrder(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()
	factory := NewTestDataFactory(storage)

	ctx := context.Background()
	userID := factory.CreateUser(t, 100)

	has, err := storage.HasPendingRenewalOrder(ctx, userID)
	require.NoError(t, err)
	assert.False(t, has)

	orderID := factory.CreatePendingOrder(t, userID, models.ProductSubscriptionMonth, NewChargeID())

	has, err = storage.HasPendingRenewalOrder(ctx, userID)
	require.NoError(t, err)
	assert.True(t, has)

	err = storage.MarkOrderFailed(ctx, orderID, "provider response timeout")
	require.NoError(t, err)

	has, err = storage.HasPendingRenewalOrder(ctx, userID)
	require.NoError(t, err)
	assert.False(t, has)
}
