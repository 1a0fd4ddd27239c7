package bookings_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"box-office/internal/bookings"
	"box-office/internal/config"
	"box-office/internal/logger"
	"box-office/internal/models"
	"box-office/internal/payable"
	"box-office/internal/providers"
	"box-office/internal/storage"
)

func newTestBookingService(t *testing.T) (*bookings.Service, *storage.InMemoryStore) {
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

	log := logger.NewLogger()
	payments := payable.NewService(store, registry, kinds, log)

	cfg := config.BookingConfig{MaxDiscountCombination: 4, Currency: "GBP"}
	return bookings.NewService(store, payments, cfg, log), store
}

func createBooking(t *testing.T, svc *bookings.Service) *models.Booking {
	t.Helper()

	booking, err := svc.Create(&models.CreateBookingRequest{
		PerformanceID: "perf-1",
		UserID:        "user-1",
		UserEmail:     "user@example.com",
	})
	require.NoError(t, err)
	return booking
}

func TestCreateBooking(t *testing.T) {
	svc, _ := newTestBookingService(t)

	booking := createBooking(t, svc)
	assert.Equal(t, models.StatusInProgress, booking.Status)
	assert.NotEmpty(t, booking.ID)
	assert.NotEmpty(t, booking.Reference)
	// Creator defaults to the owning user when not given.
	assert.Equal(t, "user-1", booking.CreatorID)
}

func TestTicketsMutableOnlyInProgress(t *testing.T) {
	svc, _ := newTestBookingService(t)
	booking := createBooking(t, svc)

	ticket, err := svc.AddTicket(booking.ID, &models.AddTicketRequest{
		ConcessionTypeID: "adult", SeatGroupID: "stalls", Price: 1000,
	})
	require.NoError(t, err)

	_, err = svc.Pay(context.Background(), booking.ID, &models.PayRequest{Method: providers.MethodCash})
	require.NoError(t, err)

	_, err = svc.AddTicket(booking.ID, &models.AddTicketRequest{
		ConcessionTypeID: "adult", SeatGroupID: "stalls", Price: 1000,
	})
	assert.ErrorIs(t, err, bookings.ErrBookingLocked)

	err = svc.RemoveTicket(booking.ID, ticket.ID)
	assert.ErrorIs(t, err, bookings.ErrBookingLocked)
}

func TestPriceAppliesBestDiscount(t *testing.T) {
	svc, store := newTestBookingService(t)
	booking := createBooking(t, svc)

	require.NoError(t, store.SaveDiscount(&models.Discount{
		ID: "d-family", Name: "Family", Percentage: 0.2,
		PerformanceIDs: []string{"perf-1"},
		Requirements: []models.DiscountRequirement{
			{ConcessionTypeID: "student", Number: 1},
			{ConcessionTypeID: "adult", Number: 2},
		},
	}))

	for _, ct := range []string{"student", "adult", "adult"} {
		_, err := svc.AddTicket(booking.ID, &models.AddTicketRequest{
			ConcessionTypeID: ct, SeatGroupID: "stalls", Price: 1000,
		})
		require.NoError(t, err)
	}

	price, err := svc.Price(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2400), price.Subtotal)
	assert.Equal(t, int64(2400), price.Total)
	assert.Equal(t, []string{"Family"}, price.Discounts)
}

func TestPriceAddsMiscCostsAndRoundsUp(t *testing.T) {
	svc, store := newTestBookingService(t)
	booking := createBooking(t, svc)

	_, err := svc.AddTicket(booking.ID, &models.AddTicketRequest{
		ConcessionTypeID: "adult", SeatGroupID: "stalls", Price: 1001,
	})
	require.NoError(t, err)

	require.NoError(t, store.SaveMiscCost(&models.MiscCost{ID: "m-book", Name: "Booking fee", Value: 50}))
	require.NoError(t, store.SaveMiscCost(&models.MiscCost{ID: "m-theatre", Name: "Theatre levy", Percentage: 0.05}))

	price, err := svc.Price(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), price.Subtotal)
	// 1001 + 50 + 50.05 rounds up to the next whole penny.
	assert.Equal(t, int64(1102), price.Total)
}

func TestZeroSubtotalIgnoresMiscCosts(t *testing.T) {
	svc, store := newTestBookingService(t)
	booking := createBooking(t, svc)

	// A 100% discount comps the booking.
	require.NoError(t, store.SaveDiscount(&models.Discount{
		ID: "d-comp", Name: "Comp", Percentage: 1.0,
		PerformanceIDs: []string{"perf-1"},
		Requirements:   []models.DiscountRequirement{{ConcessionTypeID: "adult", Number: 1}},
	}))
	require.NoError(t, store.SaveMiscCost(&models.MiscCost{ID: "m-book", Name: "Booking fee", Value: 50}))

	_, err := svc.AddTicket(booking.ID, &models.AddTicketRequest{
		ConcessionTypeID: "adult", SeatGroupID: "stalls", Price: 1000,
	})
	require.NoError(t, err)

	price, err := svc.Price(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), price.Subtotal)
	assert.Equal(t, int64(0), price.Total)
	assert.Equal(t, int64(0), price.MiscCosts)
}

func TestPayZeroTotalMarksPaidWithoutTransaction(t *testing.T) {
	svc, store := newTestBookingService(t)
	booking := createBooking(t, svc)

	txn, err := svc.Pay(context.Background(), booking.ID, &models.PayRequest{Method: providers.MethodCash})
	require.NoError(t, err)
	assert.Nil(t, txn)

	stored, err := store.GetBooking(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, stored.Status)

	txns, err := store.ListTransactions(models.PayableKindBooking, booking.ID)
	require.NoError(t, err)
	assert.Empty(t, txns)

	// Paying again is rejected now that the booking has left IN_PROGRESS.
	_, err = svc.Pay(context.Background(), booking.ID, &models.PayRequest{Method: providers.MethodCash})
	var cantPay *payable.CantBePaidForError
	require.ErrorAs(t, err, &cantPay)
}

func TestPayChargesCurrentTotal(t *testing.T) {
	svc, store := newTestBookingService(t)
	booking := createBooking(t, svc)

	_, err := svc.AddTicket(booking.ID, &models.AddTicketRequest{
		ConcessionTypeID: "adult", SeatGroupID: "stalls", Price: 1250,
	})
	require.NoError(t, err)

	txn, err := svc.Pay(context.Background(), booking.ID, &models.PayRequest{Method: providers.MethodCard})
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, int64(1250), txn.Value)
	assert.Equal(t, "GBP", txn.Currency)

	stored, err := store.GetBooking(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, stored.Status)
}

func TestCheckIn(t *testing.T) {
	svc, _ := newTestBookingService(t)
	booking := createBooking(t, svc)

	ticket, err := svc.AddTicket(booking.ID, &models.AddTicketRequest{
		ConcessionTypeID: "adult", SeatGroupID: "stalls", Price: 1000,
	})
	require.NoError(t, err)

	// Unpaid bookings can not check in.
	_, err = svc.CheckIn(booking.ID, &models.CheckInRequest{
		TicketIDs: []string{ticket.ID}, CheckedInByID: "staff-1",
	})
	assert.ErrorIs(t, err, bookings.ErrNotPaid)

	_, err = svc.Pay(context.Background(), booking.ID, &models.PayRequest{Method: providers.MethodCash})
	require.NoError(t, err)

	checked, err := svc.CheckIn(booking.ID, &models.CheckInRequest{
		TicketIDs: []string{ticket.ID}, CheckedInByID: "staff-1",
	})
	require.NoError(t, err)
	require.Len(t, checked, 1)
	assert.True(t, checked[0].CheckedIn())
	assert.Equal(t, "staff-1", checked[0].CheckedInByID)

	// Double check-in is rejected.
	_, err = svc.CheckIn(booking.ID, &models.CheckInRequest{
		TicketIDs: []string{ticket.ID}, CheckedInByID: "staff-1",
	})
	assert.ErrorIs(t, err, bookings.ErrTicketCheckedIn)
}

func TestRefundViaBookingService(t *testing.T) {
	svc, store := newTestBookingService(t)
	booking := createBooking(t, svc)

	_, err := svc.AddTicket(booking.ID, &models.AddTicketRequest{
		ConcessionTypeID: "adult", SeatGroupID: "stalls", Price: 2000,
	})
	require.NoError(t, err)

	_, err = svc.Pay(context.Background(), booking.ID, &models.PayRequest{Method: providers.MethodCard})
	require.NoError(t, err)

	require.NoError(t, svc.Refund(context.Background(), booking.ID, &models.RefundRequest{AuthorizerID: "admin-1"}))

	stored, err := store.GetBooking(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, stored.Status)
}

func TestTicketMutationsBumpUpdatedAt(t *testing.T) {
	svc, store := newTestBookingService(t)
	booking := createBooking(t, svc)

	past := time.Now().Add(-time.Hour)
	booking.UpdatedAt = past
	require.NoError(t, store.UpdateBooking(booking))

	ticket, err := svc.AddTicket(booking.ID, &models.AddTicketRequest{
		ConcessionTypeID: "adult", SeatGroupID: "stalls", Price: 1000,
	})
	require.NoError(t, err)

	stored, err := store.GetBooking(booking.ID)
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.After(past))

	stored.UpdatedAt = past
	require.NoError(t, store.UpdateBooking(stored))

	require.NoError(t, svc.RemoveTicket(booking.ID, ticket.ID))

	stored, err = store.GetBooking(booking.ID)
	require.NoError(t, err)
	assert.True(t, stored.UpdatedAt.After(past))
}
