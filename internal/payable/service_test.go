package payable_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"box-office/internal/logger"
	"box-office/internal/models"
	"box-office/internal/payable"
	"box-office/internal/providers"
	"box-office/internal/storage"
)

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) EnqueueRefund(task *models.RefundTask) error {
	args := m.Called(task)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyRefundInitiated(adminEmails []string, payableName string, transactions int) {
	m.Called(adminEmails, payableName, transactions)
}

func (m *MockNotifier) NotifyRefunded(email, payableName string, amount int64) {
	m.Called(email, payableName, amount)
}

func newTestService(t *testing.T) (*payable.Service, *storage.InMemoryStore) {
	t.Helper()

	store := storage.NewInMemoryStore()

	registry := providers.NewRegistry()
	registry.RegisterPayment(providers.NewCashProvider())
	registry.RegisterPayment(providers.NewCardProvider())
	registry.RegisterRefund(providers.MethodCard, providers.NewManualRefundProvider())

	kinds := payable.NewKindRegistry()
	kinds.Register(models.PayableKindBooking, func(id string) (payable.Payable, error) {
		return store.GetBooking(id)
	})

	svc := payable.NewService(store, registry, kinds, logger.NewLogger())
	return svc, store
}

func newTestBooking(t *testing.T, store *storage.InMemoryStore, status models.PayableStatus) *models.Booking {
	t.Helper()

	booking := &models.Booking{
		ID:            "bk_test_" + string(status),
		Reference:     "ABC-123456",
		PerformanceID: "perf-1",
		UserID:        "user-1",
		UserEmail:     "user@example.com",
		CreatorID:     "user-1",
		Status:        status,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	require.NoError(t, store.SaveBooking(booking))
	return booking
}

func TestTransitionTable(t *testing.T) {
	assert.True(t, payable.CanTransition(models.StatusInProgress, models.StatusPaid))
	assert.True(t, payable.CanTransition(models.StatusInProgress, models.StatusCancelled))
	assert.True(t, payable.CanTransition(models.StatusPaid, models.StatusRefundProcessing))
	assert.True(t, payable.CanTransition(models.StatusPaid, models.StatusCancelled))
	assert.True(t, payable.CanTransition(models.StatusCancelled, models.StatusRefundProcessing))
	assert.True(t, payable.CanTransition(models.StatusRefundProcessing, models.StatusRefunded))

	assert.False(t, payable.CanTransition(models.StatusInProgress, models.StatusRefunded))
	assert.False(t, payable.CanTransition(models.StatusPaid, models.StatusInProgress))
	assert.False(t, payable.CanTransition(models.StatusRefunded, models.StatusPaid))
	assert.False(t, payable.CanTransition(models.StatusRefunded, models.StatusRefundProcessing))

	err := payable.ValidateTransition(models.StatusRefunded, models.StatusPaid)
	var invalid *payable.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestPayRequiresInProgress(t *testing.T) {
	svc, store := newTestService(t)

	for _, status := range []models.PayableStatus{
		models.StatusPaid,
		models.StatusCancelled,
		models.StatusRefundProcessing,
		models.StatusRefunded,
	} {
		booking := newTestBooking(t, store, status)
		_, err := svc.Pay(context.Background(), booking, payable.PayParams{Method: providers.MethodCash, Value: 1000, Currency: "GBP"})

		var cantPay *payable.CantBePaidForError
		require.ErrorAs(t, err, &cantPay, "status %s should reject payment", status)
		assert.Contains(t, cantPay.Error(), "not in progress")
	}
}

func TestPayCashCompletesSynchronously(t *testing.T) {
	svc, store := newTestService(t)
	booking := newTestBooking(t, store, models.StatusInProgress)

	txn, err := svc.Pay(context.Background(), booking, payable.PayParams{Method: providers.MethodCash, Value: 2500, Currency: "GBP"})
	require.NoError(t, err)

	assert.Equal(t, models.TransactionPayment, txn.Type)
	assert.Equal(t, models.TransactionCompleted, txn.Status)
	assert.Equal(t, int64(2500), txn.Value)
	assert.Equal(t, models.StatusPaid, booking.Status)

	stored, err := store.GetBooking(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, stored.Status)
}

func TestPayCancelsPendingTransactions(t *testing.T) {
	svc, store := newTestService(t)
	booking := newTestBooking(t, store, models.StatusInProgress)

	stale := &models.Transaction{
		ID:           "txn-stale",
		PayableKind:  booking.PayableKind(),
		PayableID:    booking.ID,
		Type:         models.TransactionPayment,
		Status:       models.TransactionPending,
		Value:        2500,
		Currency:     "GBP",
		ProviderName: providers.MethodCash,
		CreatedAt:    time.Now().Add(-time.Minute),
	}
	require.NoError(t, store.SaveTransaction(stale))

	_, err := svc.Pay(context.Background(), booking, payable.PayParams{Method: providers.MethodCash, Value: 2500, Currency: "GBP"})
	require.NoError(t, err)

	_, err = store.GetTransaction("txn-stale")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	txns, err := store.ListTransactions(booking.PayableKind(), booking.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, models.TransactionCompleted, txns[0].Status)
}

func TestLockedAndIsRefunded(t *testing.T) {
	payment := &models.Transaction{Type: models.TransactionPayment, Status: models.TransactionCompleted, Value: 1000}
	refund := &models.Transaction{Type: models.TransactionRefund, Status: models.TransactionCompleted, Value: -1000}
	pending := &models.Transaction{Type: models.TransactionRefund, Status: models.TransactionPending, Value: -1000}

	assert.False(t, payable.Locked([]*models.Transaction{payment}))
	assert.True(t, payable.Locked([]*models.Transaction{payment, pending}))

	assert.False(t, payable.IsRefunded([]*models.Transaction{payment}))
	assert.True(t, payable.IsRefunded([]*models.Transaction{payment, refund}))

	// A pending transaction blocks the refunded state regardless of the net.
	assert.False(t, payable.IsRefunded([]*models.Transaction{payment, refund, pending}))

	// Net zero with no refunds (nothing ever charged) is not "refunded".
	assert.False(t, payable.IsRefunded(nil))
}

func TestValidateCantBeRefunded(t *testing.T) {
	svc, store := newTestService(t)

	t.Run("wrong status", func(t *testing.T) {
		booking := newTestBooking(t, store, models.StatusInProgress)
		verr := svc.ValidateCantBeRefunded(booking)
		require.NotNil(t, verr)
		assert.Equal(t, payable.CodeRefundStatus, verr.Code)
		assert.Equal(t, "status", verr.Field)
	})

	t.Run("no payments", func(t *testing.T) {
		booking := newTestBooking(t, store, models.StatusPaid)
		verr := svc.ValidateCantBeRefunded(booking)
		require.NotNil(t, verr)
		assert.Equal(t, payable.CodeRefundNoPayments, verr.Code)
	})

	t.Run("already refunded", func(t *testing.T) {
		booking := newTestBooking(t, store, models.StatusCancelled)
		require.NoError(t, store.SaveTransaction(&models.Transaction{
			ID: "p1", PayableKind: booking.PayableKind(), PayableID: booking.ID,
			Type: models.TransactionPayment, Status: models.TransactionCompleted, Value: 1000,
		}))
		require.NoError(t, store.SaveTransaction(&models.Transaction{
			ID: "r1", PayableKind: booking.PayableKind(), PayableID: booking.ID,
			Type: models.TransactionRefund, Status: models.TransactionCompleted, Value: -1000,
		}))
		verr := svc.ValidateCantBeRefunded(booking)
		require.NotNil(t, verr)
		assert.Equal(t, payable.CodeRefundAlreadyRefunded, verr.Code)
	})

	t.Run("locked by pending transaction", func(t *testing.T) {
		booking := newTestBooking(t, store, models.StatusPaid)
		booking.ID = "bk_locked"
		require.NoError(t, store.SaveBooking(booking))
		require.NoError(t, store.SaveTransaction(&models.Transaction{
			ID: "p2", PayableKind: booking.PayableKind(), PayableID: booking.ID,
			Type: models.TransactionPayment, Status: models.TransactionCompleted, Value: 1000,
		}))
		require.NoError(t, store.SaveTransaction(&models.Transaction{
			ID: "p3", PayableKind: booking.PayableKind(), PayableID: booking.ID,
			Type: models.TransactionPayment, Status: models.TransactionPending, Value: 500,
		}))
		verr := svc.ValidateCantBeRefunded(booking)
		require.NotNil(t, verr)
		assert.Equal(t, payable.CodeRefundLocked, verr.Code)
		assert.False(t, svc.CanBeRefunded(booking))
	})
}

func TestRefundSynchronous(t *testing.T) {
	svc, store := newTestService(t)
	booking := newTestBooking(t, store, models.StatusInProgress)

	notifier := new(MockNotifier)
	notifier.On("NotifyRefundInitiated", mock.Anything, booking.Reference, 1).Return()
	notifier.On("NotifyRefunded", booking.UserEmail, booking.Reference, int64(2500)).Return()
	svc.WithNotifier(notifier, []string{"admin@example.com"})

	_, err := svc.Pay(context.Background(), booking, payable.PayParams{Method: providers.MethodCard, Value: 2500, Currency: "GBP"})
	require.NoError(t, err)
	require.Equal(t, models.StatusPaid, booking.Status)

	require.NoError(t, svc.Refund(context.Background(), booking, "admin-1", payable.RefundOptions{}))

	// The manual refund completes synchronously, so the booking has moved
	// all the way through REFUND_PROCESSING to REFUNDED.
	stored, err := store.GetBooking(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, stored.Status)

	txns, err := store.ListTransactions(booking.PayableKind(), booking.ID)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, int64(0), payable.NetValue(txns))
	assert.True(t, payable.IsRefunded(txns))

	notifier.AssertExpectations(t)

	// A second refund attempt is rejected.
	verr := svc.ValidateCantBeRefunded(stored)
	require.NotNil(t, verr)
	assert.Equal(t, payable.CodeRefundAlreadyRefunded, verr.Code)
}

func TestRefundAsyncEnqueuesTasks(t *testing.T) {
	svc, store := newTestService(t)
	booking := newTestBooking(t, store, models.StatusInProgress)

	queue := new(MockQueue)
	queue.On("EnqueueRefund", mock.AnythingOfType("*models.RefundTask")).Return(nil)
	svc.WithQueue(queue)

	txn, err := svc.Pay(context.Background(), booking, payable.PayParams{Method: providers.MethodCard, Value: 2500, Currency: "GBP"})
	require.NoError(t, err)

	require.NoError(t, svc.Refund(context.Background(), booking, "admin-1", payable.RefundOptions{Async: true}))

	// Queued, not executed: booking stays in REFUND_PROCESSING.
	stored, err := store.GetBooking(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefundProcessing, stored.Status)

	queue.AssertNumberOfCalls(t, "EnqueueRefund", 1)
	task := queue.Calls[0].Arguments.Get(0).(*models.RefundTask)
	assert.Equal(t, txn.ID, task.TransactionID)
	assert.Equal(t, booking.ID, task.PayableID)
	assert.Equal(t, "admin-1", task.AuthorizerID)
}

func TestProcessRefundTask(t *testing.T) {
	svc, store := newTestService(t)
	booking := newTestBooking(t, store, models.StatusInProgress)

	queue := new(MockQueue)
	queue.On("EnqueueRefund", mock.Anything).Return(nil)
	svc.WithQueue(queue)

	txn, err := svc.Pay(context.Background(), booking, payable.PayParams{Method: providers.MethodCard, Value: 2500, Currency: "GBP"})
	require.NoError(t, err)
	require.NoError(t, svc.Refund(context.Background(), booking, "admin-1", payable.RefundOptions{Async: true}))

	task := &models.RefundTask{
		TransactionID: txn.ID,
		PayableKind:   booking.PayableKind(),
		PayableID:     booking.ID,
		AuthorizerID:  "admin-1",
	}

	require.NoError(t, svc.ProcessRefundTask(context.Background(), task))

	stored, err := store.GetBooking(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, stored.Status)

	// Duplicate delivery of the same task is reported as not-refundable,
	// which the consumer treats as "skip", not "retry".
	err = svc.ProcessRefundTask(context.Background(), task)
	var cantRefund *payable.CantBeRefundedError
	require.ErrorAs(t, err, &cantRefund)
	assert.Equal(t, payable.CodeRefundAlreadyRefunded, cantRefund.Code)
}

func TestRefundFeePreservation(t *testing.T) {
	svc, store := newTestService(t)
	booking := newTestBooking(t, store, models.StatusInProgress)

	txn := &models.Transaction{
		ID:           "p-fees",
		PayableKind:  booking.PayableKind(),
		PayableID:    booking.ID,
		Type:         models.TransactionPayment,
		Status:       models.TransactionCompleted,
		Value:        2500,
		ProviderFee:  50,
		AppFee:       100,
		Currency:     "GBP",
		ProviderName: providers.MethodCard,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.SaveTransaction(txn))
	require.NoError(t, store.UpdatePayableStatus(booking.PayableKind(), booking.ID, models.StatusPaid))
	booking.Status = models.StatusPaid

	require.NoError(t, svc.Refund(context.Background(), booking, "admin-1", payable.RefundOptions{
		PreserveProviderFees: true,
		PreserveAppFees:      true,
	}))

	txns, err := store.ListTransactions(booking.PayableKind(), booking.ID)
	require.NoError(t, err)
	require.Len(t, txns, 2)

	var refund *models.Transaction
	for _, tx := range txns {
		if tx.Type == models.TransactionRefund {
			refund = tx
		}
	}
	require.NotNil(t, refund)
	assert.Equal(t, int64(-2350), refund.Value)
}

func TestCancelDeletesPendingPayment(t *testing.T) {
	svc, store := newTestService(t)
	booking := newTestBooking(t, store, models.StatusInProgress)

	require.NoError(t, store.SaveTransaction(&models.Transaction{
		ID: "p-pending", PayableKind: booking.PayableKind(), PayableID: booking.ID,
		Type: models.TransactionPayment, Status: models.TransactionPending, Value: 1000,
		ProviderName: providers.MethodCash,
	}))

	require.NoError(t, svc.Cancel(context.Background(), booking))
	assert.Equal(t, models.StatusCancelled, booking.Status)

	txns, err := store.ListTransactions(booking.PayableKind(), booking.ID)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestOnTransactionCompletedMovesInProgressToPaid(t *testing.T) {
	svc, store := newTestService(t)
	booking := newTestBooking(t, store, models.StatusInProgress)

	txn := &models.Transaction{
		ID:            "p-online",
		PayableKind:   booking.PayableKind(),
		PayableID:     booking.ID,
		Type:          models.TransactionPayment,
		Status:        models.TransactionPending,
		Value:         2500,
		Currency:      "GBP",
		ProviderName:  "ONLINE",
		ProviderRefID: "pi_123",
		CreatedAt:     time.Now(),
	}
	require.NoError(t, store.SaveTransaction(txn))

	completed, err := svc.MarkTransactionCompleted(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, completed.Status)

	stored, err := store.GetBooking(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, stored.Status)
}

func TestMarkTransactionFailed(t *testing.T) {
	svc, store := newTestService(t)
	booking := newTestBooking(t, store, models.StatusInProgress)

	require.NoError(t, store.SaveTransaction(&models.Transaction{
		ID: "p-fail", PayableKind: booking.PayableKind(), PayableID: booking.ID,
		Type: models.TransactionPayment, Status: models.TransactionPending, Value: 2500,
		ProviderName: "ONLINE", ProviderRefID: "pi_fail",
	}))

	txn, err := svc.MarkTransactionFailed("pi_fail")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionFailed, txn.Status)

	// The booking is untouched by a failed payment.
	stored, err := store.GetBooking(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, stored.Status)
}

// downGatewayRefundProvider simulates a gateway outage: every refund attempt
// fails with a GatewayError.
type downGatewayRefundProvider struct{}

func (downGatewayRefundProvider) Name() string { return "MANUAL_REFUND" }

func (downGatewayRefundProvider) Refund(ctx context.Context, req providers.RefundRequest) (*models.Transaction, error) {
	return nil, &providers.GatewayError{Provider: "MANUAL_REFUND", Err: errors.New("gateway timeout")}
}

func (downGatewayRefundProvider) SyncTransaction(ctx context.Context, txn *models.Transaction) error {
	return nil
}

func TestRefundSyncFailureLeavesBookingRetryable(t *testing.T) {
	store := storage.NewInMemoryStore()

	failing := providers.NewRegistry()
	failing.RegisterPayment(providers.NewCardProvider())
	failing.RegisterRefund(providers.MethodCard, downGatewayRefundProvider{})

	kinds := payable.NewKindRegistry()
	kinds.Register(models.PayableKindBooking, func(id string) (payable.Payable, error) {
		return store.GetBooking(id)
	})

	svc := payable.NewService(store, failing, kinds, logger.NewLogger())
	booking := newTestBooking(t, store, models.StatusInProgress)

	_, err := svc.Pay(context.Background(), booking, payable.PayParams{Method: providers.MethodCard, Value: 2500, Currency: "GBP"})
	require.NoError(t, err)
	require.Equal(t, models.StatusPaid, booking.Status)

	err = svc.Refund(context.Background(), booking, "admin-1", payable.RefundOptions{})
	var gerr *providers.GatewayError
	require.ErrorAs(t, err, &gerr)

	// The failed attempt rolls the booking back to PAID rather than
	// stranding it in REFUND_PROCESSING with no refund in flight.
	stored, err := store.GetBooking(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, stored.Status)
	assert.True(t, svc.CanBeRefunded(stored))

	txns, err := store.ListTransactions(booking.PayableKind(), booking.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)

	// Once the gateway recovers, a retry goes through.
	working := providers.NewRegistry()
	working.RegisterPayment(providers.NewCardProvider())
	working.RegisterRefund(providers.MethodCard, providers.NewManualRefundProvider())
	retry := payable.NewService(store, working, kinds, logger.NewLogger())

	require.NoError(t, retry.Refund(context.Background(), booking, "admin-1", payable.RefundOptions{}))
	stored, err = store.GetBooking(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, stored.Status)
}

func TestDuplicateRefundTaskDetectedByPaymentLink(t *testing.T) {
	svc, store := newTestService(t)
	booking := newTestBooking(t, store, models.StatusRefundProcessing)

	require.NoError(t, store.SaveTransaction(&models.Transaction{
		ID: "p-linked", PayableKind: booking.PayableKind(), PayableID: booking.ID,
		Type: models.TransactionPayment, Status: models.TransactionCompleted,
		Value: 2500, ProviderFee: 150, Currency: "GBP", ProviderName: providers.MethodCard,
	}))

	task := &models.RefundTask{
		TransactionID:        "p-linked",
		PayableKind:          booking.PayableKind(),
		PayableID:            booking.ID,
		AuthorizerID:         "admin-1",
		PreserveProviderFees: true,
	}

	require.NoError(t, svc.ProcessRefundTask(context.Background(), task))

	txns, err := store.ListTransactions(booking.PayableKind(), booking.ID)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	var refund *models.Transaction
	for _, txn := range txns {
		if txn.Type == models.TransactionRefund {
			refund = txn
		}
	}
	require.NotNil(t, refund)
	assert.Equal(t, "p-linked", refund.OriginalID)
	assert.Equal(t, int64(-2350), refund.Value)

	// The preserved fee keeps the net above zero, so only the link to the
	// payment can tell a redelivered task apart from fresh work.
	assert.False(t, payable.IsRefunded(txns))
	err = svc.ProcessRefundTask(context.Background(), task)
	var cantRefund *payable.CantBeRefundedError
	require.ErrorAs(t, err, &cantRefund)
	assert.Equal(t, payable.CodeRefundAlreadyRefunded, cantRefund.Code)
}
