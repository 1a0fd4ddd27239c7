package storage_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"box-office/internal/models"
	"box-office/internal/storage"
)

func TestBookingCRUD(t *testing.T) {
	store := storage.NewInMemoryStore()

	booking := &models.Booking{
		ID:            "bk_1",
		Reference:     "ABC-123456",
		PerformanceID: "perf-1",
		UserID:        "user-1",
		UserEmail:     "user@example.com",
		Status:        models.StatusInProgress,
	}
	require.NoError(t, store.SaveBooking(booking))

	got, err := store.GetBooking("bk_1")
	require.NoError(t, err)
	assert.Equal(t, booking.Reference, got.Reference)

	_, err = store.GetBooking("missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.UpdatePayableStatus(models.PayableKindBooking, "bk_1", models.StatusPaid))
	got, err = store.GetBooking("bk_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, got.Status)

	err = store.UpdatePayableStatus(models.PayableKindBooking, "missing", models.StatusPaid)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTicketsScopedToBooking(t *testing.T) {
	store := storage.NewInMemoryStore()

	require.NoError(t, store.SaveTicket(&models.Ticket{ID: "t2", BookingID: "bk_1", Price: 1000}))
	require.NoError(t, store.SaveTicket(&models.Ticket{ID: "t1", BookingID: "bk_1", Price: 1000}))
	require.NoError(t, store.SaveTicket(&models.Ticket{ID: "t3", BookingID: "bk_2", Price: 1000}))

	tickets, err := store.ListTickets("bk_1")
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	// Listing order is deterministic.
	assert.Equal(t, "t1", tickets[0].ID)
	assert.Equal(t, "t2", tickets[1].ID)

	require.NoError(t, store.DeleteTicket("t1"))
	tickets, err = store.ListTickets("bk_1")
	require.NoError(t, err)
	assert.Len(t, tickets, 1)

	assert.ErrorIs(t, store.DeleteTicket("t1"), storage.ErrNotFound)
}

func TestTransactionsByPayableAndProviderRef(t *testing.T) {
	store := storage.NewInMemoryStore()

	older := &models.Transaction{
		ID: "txn1", PayableKind: "booking", PayableID: "bk_1",
		Type: models.TransactionPayment, Status: models.TransactionCompleted,
		Value: 1000, ProviderRefID: "pi_1", CreatedAt: time.Now().Add(-time.Hour),
	}
	newer := &models.Transaction{
		ID: "txn2", PayableKind: "booking", PayableID: "bk_1",
		Type: models.TransactionRefund, Status: models.TransactionCompleted,
		Value: -1000, CreatedAt: time.Now(),
	}
	other := &models.Transaction{
		ID: "txn3", PayableKind: "booking", PayableID: "bk_2",
		Type: models.TransactionPayment, Status: models.TransactionPending,
		Value: 500, CreatedAt: time.Now(),
	}
	require.NoError(t, store.SaveTransaction(newer))
	require.NoError(t, store.SaveTransaction(older))
	require.NoError(t, store.SaveTransaction(other))

	txns, err := store.ListTransactions("booking", "bk_1")
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, "txn1", txns[0].ID, "transactions list oldest first")

	byRef, err := store.GetTransactionByProviderRef("pi_1")
	require.NoError(t, err)
	assert.Equal(t, "txn1", byRef.ID)

	_, err = store.GetTransactionByProviderRef("pi_missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.DeleteTransaction("txn2"))
	txns, err = store.ListTransactions("booking", "bk_1")
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestDiscountsByPerformance(t *testing.T) {
	store := storage.NewInMemoryStore()

	require.NoError(t, store.SaveDiscount(&models.Discount{
		ID: "d1", Name: "Student", Percentage: 0.1,
		PerformanceIDs: []string{"perf-1", "perf-2"},
		Requirements:   []models.DiscountRequirement{{ConcessionTypeID: "student", Number: 1}},
	}))
	require.NoError(t, store.SaveDiscount(&models.Discount{
		ID: "d2", Name: "Family", Percentage: 0.2,
		PerformanceIDs: []string{"perf-2"},
		Requirements:   []models.DiscountRequirement{{ConcessionTypeID: "adult", Number: 2}},
	}))

	all, err := store.ListDiscounts()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := store.ListDiscountsForPerformance("perf-1")
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "d1", scoped[0].ID)

	none, err := store.ListDiscountsForPerformance("perf-9")
	require.NoError(t, err)
	assert.Empty(t, none)
}
