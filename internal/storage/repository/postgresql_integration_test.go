package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/facility-access/internal/lib/errs"
	"github.com/magabrotheeeer/facility-access/internal/models"
)

func intPtr(v int) *int { return &v }

func TestStorage_CreateSubscription(t *testing.T) {
	startDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("успешное создание абонемента с квитанцией", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		planID := factory.CreatePlan(t, "Standard Monthly", models.UnitMonth, 1, models.PlanMonthly, nil, false)

		gotID, err := storage.CreateSubscription(context.Background(), models.Subscription{
			UserUID:    "6f9619ff-8b86-d011-b42d-00cf4fc964ff",
			PlanID:     planID,
			AccessCode: "123456",
			StartDate:  startDate,
			EndDate:    endDate,
			Status:     models.StatusPending,
		}, 12000.0)
		require.NoError(t, err)
		assert.Positive(t, gotID)

		verification := NewTestVerification(storage)
		verification.VerifySubscriptionStatus(t, gotID, models.StatusPending)
		verification.VerifyReceiptCount(t, gotID, 1)
	})

	t.Run("занятый код доступа", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		planID := factory.CreatePlan(t, "Standard Monthly", models.UnitMonth, 1, models.PlanMonthly, nil, false)
		factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
			"123456", models.StatusActive, startDate, endDate, nil)

		_, err := storage.CreateSubscription(context.Background(), models.Subscription{
			UserUID:    "22222222-2222-2222-2222-222222222222",
			PlanID:     planID,
			AccessCode: "123456",
			StartDate:  startDate,
			EndDate:    endDate,
			Status:     models.StatusPending,
		}, 12000.0)
		require.ErrorIs(t, err, errs.ErrAccessCodeTaken)
	})

	t.Run("второй незакрытый абонемент пользователя", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		planID := factory.CreatePlan(t, "Standard Monthly", models.UnitMonth, 1, models.PlanMonthly, nil, false)
		factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
			"123456", models.StatusActive, startDate, endDate, nil)

		_, err := storage.CreateSubscription(context.Background(), models.Subscription{
			UserUID:    "11111111-1111-1111-1111-111111111111",
			PlanID:     planID,
			AccessCode: "654321",
			StartDate:  startDate,
			EndDate:    endDate,
			Status:     models.StatusPending,
		}, 12000.0)
		require.ErrorIs(t, err, errs.ErrConflict)
	})
}

func TestStorage_FindSubscriptionByToken(t *testing.T) {
	startDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("поиск по коду доступа вместе с планом", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		planID := factory.CreatePlan(t, "Day Pass", models.UnitDays, 1, models.PlanDaily, intPtr(100), false)
		subID := factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
			"123456", models.StatusActive, startDate, endDate, nil)

		sub, plan, err := storage.FindSubscriptionByToken(context.Background(), "123456")
		require.NoError(t, err)
		assert.Equal(t, subID, sub.ID)
		assert.Equal(t, "Day Pass", plan.Name)
	})

	t.Run("поиск по QR-токену", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		planID := factory.CreatePlan(t, "Day Pass", models.UnitDays, 1, models.PlanDaily, nil, false)
		subID := factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
			"123456", models.StatusActive, startDate, endDate, nil)

		rows, err := storage.SetQRToken(context.Background(), subID, "qr-token-value")
		require.NoError(t, err)
		require.Equal(t, 1, rows)

		sub, _, err := storage.FindSubscriptionByToken(context.Background(), "qr-token-value")
		require.NoError(t, err)
		assert.Equal(t, subID, sub.ID)
	})

	t.Run("неизвестный токен", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		_, _, err := storage.FindSubscriptionByToken(context.Background(), "999999")
		require.ErrorIs(t, err, errs.ErrNotFound)
	})
}

func TestStorage_SetQRToken(t *testing.T) {
	startDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	planID := factory.CreatePlan(t, "Day Pass", models.UnitDays, 1, models.PlanDaily, nil, false)
	subID := factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
		"123456", models.StatusActive, startDate, endDate, nil)

	rows, err := storage.SetQRToken(context.Background(), subID, "first-token")
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	// Повторная запись не изменяет уже выданный токен
	rows, err = storage.SetQRToken(context.Background(), subID, "second-token")
	require.NoError(t, err)
	assert.Equal(t, 0, rows)

	sub, err := storage.ReadSubscription(context.Background(), subID)
	require.NoError(t, err)
	require.NotNil(t, sub.QRToken)
	assert.Equal(t, "first-token", *sub.QRToken)
}

func TestStorage_UpdateSubscriptionStatus(t *testing.T) {
	startDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	planID := factory.CreatePlan(t, "Standard Monthly", models.UnitMonth, 1, models.PlanMonthly, nil, false)
	subID := factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
		"123456", models.StatusActive, startDate, endDate, nil)

	rows, err := storage.UpdateSubscriptionStatus(context.Background(), subID,
		models.StatusActive, models.StatusInGracePeriod)
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	// Переход выполняется только из ожидаемого состояния
	rows, err = storage.UpdateSubscriptionStatus(context.Background(), subID,
		models.StatusActive, models.StatusExpired)
	require.NoError(t, err)
	assert.Equal(t, 0, rows)

	verification := NewTestVerification(storage)
	verification.VerifySubscriptionStatus(t, subID, models.StatusInGracePeriod)
}

func TestStorage_RegisterEntry(t *testing.T) {
	startDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	t.Run("превышение предела посетителей", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		planID := factory.CreatePlan(t, "Small Studio", models.UnitDays, 1, models.PlanDaily, intPtr(1), true)
		firstID := factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
			"111111", models.StatusActive, startDate, endDate, nil)
		secondID := factory.CreateSubscription(t, "22222222-2222-2222-2222-222222222222", planID,
			"222222", models.StatusActive, startDate, endDate, nil)

		allowed, err := storage.RegisterEntry(context.Background(), planID, models.AccessLog{
			UserUID: "11111111-1111-1111-1111-111111111111", SubscriptionID: firstID, Action: models.ActionEntry,
		})
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = storage.RegisterEntry(context.Background(), planID, models.AccessLog{
			UserUID: "22222222-2222-2222-2222-222222222222", SubscriptionID: secondID, Action: models.ActionEntry,
		})
		require.NoError(t, err)
		assert.False(t, allowed)

		verification := NewTestVerification(storage)
		verification.VerifyPlanCapacity(t, planID, 1)
		verification.VerifyAccessLogResult(t, firstID, models.ResultSuccess)
		verification.VerifyAccessLogResult(t, secondID, models.ResultCapacityFull)
	})

	t.Run("план без предела посетителей", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		planID := factory.CreatePlan(t, "Premium Monthly", models.UnitMonth, 1, models.PlanMonthly, nil, false)
		subID := factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
			"111111", models.StatusActive, startDate, endDate, nil)

		allowed, err := storage.RegisterEntry(context.Background(), planID, models.AccessLog{
			UserUID: "11111111-1111-1111-1111-111111111111", SubscriptionID: subID, Action: models.ActionEntry,
		})
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestStorage_RegisterExit(t *testing.T) {
	startDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	planID := factory.CreatePlan(t, "Day Pass", models.UnitDays, 1, models.PlanDaily, intPtr(10), false)
	subID := factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
		"123456", models.StatusActive, startDate, endDate, nil)

	allowed, err := storage.RegisterEntry(context.Background(), planID, models.AccessLog{
		UserUID: "11111111-1111-1111-1111-111111111111", SubscriptionID: subID, Action: models.ActionEntry,
	})
	require.NoError(t, err)
	require.True(t, allowed)

	err = storage.RegisterExit(context.Background(), planID, models.AccessLog{
		UserUID: "11111111-1111-1111-1111-111111111111", SubscriptionID: subID, Action: models.ActionExit,
	})
	require.NoError(t, err)

	verification := NewTestVerification(storage)
	verification.VerifyPlanCapacity(t, planID, 0)

	// Выход без входа не уводит счётчик ниже нуля
	err = storage.RegisterExit(context.Background(), planID, models.AccessLog{
		UserUID: "11111111-1111-1111-1111-111111111111", SubscriptionID: subID, Action: models.ActionExit,
	})
	require.NoError(t, err)
	verification.VerifyPlanCapacity(t, planID, 0)
}

func TestStorage_CountInside(t *testing.T) {
	startDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	base := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	planID := factory.CreatePlan(t, "Day Pass", models.UnitDays, 1, models.PlanDaily, intPtr(10), false)
	firstID := factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
		"111111", models.StatusActive, startDate, endDate, nil)
	secondID := factory.CreateSubscription(t, "22222222-2222-2222-2222-222222222222", planID,
		"222222", models.StatusActive, startDate, endDate, nil)

	// Первый пользователь вошёл и вышел, второй остался внутри
	factory.CreateAccessLog(t, "11111111-1111-1111-1111-111111111111", firstID,
		models.ActionEntry, models.ResultSuccess, base)
	factory.CreateAccessLog(t, "11111111-1111-1111-1111-111111111111", firstID,
		models.ActionExit, models.ResultSuccess, base.Add(time.Hour))
	factory.CreateAccessLog(t, "22222222-2222-2222-2222-222222222222", secondID,
		models.ActionEntry, models.ResultSuccess, base.Add(30*time.Minute))

	count, err := storage.CountInside(context.Background(), &planID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Без фильтра по плану считается весь объект
	count, err = storage.CountInside(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStorage_ReconcilePlanCapacity(t *testing.T) {
	startDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	base := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	planID := factory.CreatePlan(t, "Day Pass", models.UnitDays, 1, models.PlanDaily, intPtr(10), false)
	subID := factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
		"123456", models.StatusActive, startDate, endDate, nil)

	// Счётчик разошёлся с журналом
	_, err := storage.DB.Exec("UPDATE plans SET current_capacity = 5 WHERE id = $1", planID)
	require.NoError(t, err)

	factory.CreateAccessLog(t, "11111111-1111-1111-1111-111111111111", subID,
		models.ActionEntry, models.ResultSuccess, base)

	count, err := storage.ReconcilePlanCapacity(context.Background(), planID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	verification := NewTestVerification(storage)
	verification.VerifyPlanCapacity(t, planID, 1)
}

func TestStorage_ApproveReceipt(t *testing.T) {
	startDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	processedAt := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	t.Run("одобрение активирует абонемент", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		planID := factory.CreatePlan(t, "Standard Monthly", models.UnitMonth, 1, models.PlanMonthly, nil, false)
		subID := factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
			"123456", models.StatusPending, startDate, endDate, nil)
		receiptID := factory.CreateReceipt(t, subID, 12000.0, models.ReceiptPending)

		gotSubID, err := storage.ApproveReceipt(context.Background(), receiptID,
			"admin-uid", processedAt)
		require.NoError(t, err)
		assert.Equal(t, subID, gotSubID)

		verification := NewTestVerification(storage)
		verification.VerifySubscriptionStatus(t, subID, models.StatusActive)
		verification.VerifyReceiptStatus(t, receiptID, models.ReceiptApproved)
	})

	t.Run("повторное одобрение отклоняется", func(t *testing.T) {
		storage, cleanup := setupTestDatabase(t)
		defer cleanup()

		factory := NewTestDataFactory(storage)
		planID := factory.CreatePlan(t, "Standard Monthly", models.UnitMonth, 1, models.PlanMonthly, nil, false)
		subID := factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
			"123456", models.StatusPending, startDate, endDate, nil)
		receiptID := factory.CreateReceipt(t, subID, 12000.0, models.ReceiptApproved)

		_, err := storage.ApproveReceipt(context.Background(), receiptID, "admin-uid", processedAt)
		require.ErrorIs(t, err, errs.ErrStateViolation)
	})
}

func TestStorage_RenewSubscription(t *testing.T) {
	startDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	planID := factory.CreatePlan(t, "Standard Monthly", models.UnitMonth, 1, models.PlanMonthly, nil, false)
	sourceID := factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
		"123456", models.StatusActive, startDate, endDate, nil)

	newID, err := storage.RenewSubscription(context.Background(), sourceID, models.Subscription{
		UserUID:    "11111111-1111-1111-1111-111111111111",
		PlanID:     planID,
		AccessCode: "654321",
		StartDate:  endDate,
		EndDate:    endDate.AddDate(0, 1, 0),
		Status:     models.StatusPending,
	}, 12000.0)
	require.NoError(t, err)
	assert.Positive(t, newID)
	assert.NotEqual(t, sourceID, newID)

	verification := NewTestVerification(storage)
	verification.VerifySubscriptionStatus(t, sourceID, models.StatusExpired)
	verification.VerifySubscriptionStatus(t, newID, models.StatusPending)
	verification.VerifyReceiptCount(t, newID, 1)
}

func TestStorage_FindSubscriptionsExpiringBetween(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	startDate := now.AddDate(0, -1, 0)

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	planID := factory.CreatePlan(t, "Standard Monthly", models.UnitMonth, 1, models.PlanMonthly, nil, false)
	inWindowID := factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
		"111111", models.StatusActive, startDate, now.Add(10*time.Minute), nil)
	factory.CreateSubscription(t, "22222222-2222-2222-2222-222222222222", planID,
		"222222", models.StatusActive, startDate, now.Add(2*time.Hour), nil)

	got, err := storage.FindSubscriptionsExpiringBetween(context.Background(), now, now.Add(15*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inWindowID, got[0].SubscriptionID)
	assert.Equal(t, "Standard Monthly", got[0].PlanName)
	assert.Equal(t, "111111", got[0].AccessCode)
}

func TestStorage_ListOpenSubscriptionsPastEnd(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	startDate := now.AddDate(0, -2, 0)

	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	factory := NewTestDataFactory(storage)
	planID := factory.CreatePlan(t, "Standard Monthly", models.UnitMonth, 1, models.PlanMonthly, nil, false)
	pastEndID := factory.CreateSubscription(t, "11111111-1111-1111-1111-111111111111", planID,
		"111111", models.StatusActive, startDate, now.Add(-24*time.Hour), nil)
	factory.CreateSubscription(t, "22222222-2222-2222-2222-222222222222", planID,
		"222222", models.StatusActive, startDate, now.Add(24*time.Hour), nil)
	factory.CreateSubscription(t, "33333333-3333-3333-3333-333333333333", planID,
		"333333", models.StatusExpired, startDate, now.Add(-48*time.Hour), nil)

	got, err := storage.ListOpenSubscriptionsPastEnd(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pastEndID, got[0].SubscriptionID)
}
