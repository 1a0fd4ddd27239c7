package bookings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"box-office/internal/config"
	"box-office/internal/discounts"
	"box-office/internal/logger"
	"box-office/internal/models"
	"box-office/internal/payable"
	"box-office/internal/storage"
	"box-office/internal/utils"
)

var (
	ErrBookingLocked   = errors.New("booking is no longer editable")
	ErrTicketCheckedIn = errors.New("ticket is already checked in")
	ErrNotPaid         = errors.New("booking has not been paid for")
)

// Price summarises what a booking costs right now: the discounted ticket
// subtotal, the misc-cost surcharge, and the discounts the optimizer applied.
type Price struct {
	Subtotal  int64
	MiscCosts int64
	Total     int64
	Discounts []string
}

type Service struct {
	store   storage.Store
	payable *payable.Service
	cfg     config.BookingConfig
	log     *logger.Logger
}

func NewService(store storage.Store, payments *payable.Service, cfg config.BookingConfig, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		payable: payments,
		cfg:     cfg,
		log:     log,
	}
}

func (s *Service) Create(req *models.CreateBookingRequest) (*models.Booking, error) {
	creatorID := req.CreatorID
	if creatorID == "" {
		creatorID = req.UserID
	}

	now := time.Now()
	booking := &models.Booking{
		ID:            utils.GenerateBookingID(),
		Reference:     utils.GenerateBookingReference(),
		PerformanceID: req.PerformanceID,
		UserID:        req.UserID,
		UserEmail:     req.UserEmail,
		CreatorID:     creatorID,
		Status:        models.StatusInProgress,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.SaveBooking(booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.log.LogBooking("CREATED", booking.ID, fmt.Sprintf("Booking %s created for performance %s", booking.Reference, booking.PerformanceID))
	return booking, nil
}

func (s *Service) Get(id string) (*models.Booking, error) {
	return s.store.GetBooking(id)
}

func (s *Service) Tickets(bookingID string) ([]*models.Ticket, error) {
	return s.store.ListTickets(bookingID)
}

// AddTicket attaches a ticket to a booking. Tickets are mutable only while
// the booking is still in progress.
func (s *Service) AddTicket(bookingID string, req *models.AddTicketRequest) (*models.Ticket, error) {
	booking, err := s.store.GetBooking(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusInProgress {
		return nil, ErrBookingLocked
	}

	ticket := &models.Ticket{
		ID:               utils.GenerateUUID(),
		BookingID:        bookingID,
		ConcessionTypeID: req.ConcessionTypeID,
		SeatGroupID:      req.SeatGroupID,
		Price:            req.Price,
	}

	if err := s.store.SaveTicket(ticket); err != nil {
		return nil, fmt.Errorf("failed to add ticket: %w", err)
	}
	s.touch(booking)

	s.log.LogBooking("TICKET_ADDED", bookingID, fmt.Sprintf("Ticket %s (%s/%s) added", ticket.ID, req.ConcessionTypeID, req.SeatGroupID))
	return ticket, nil
}

// touch bumps the booking's UpdatedAt after a mutation to its contents.
func (s *Service) touch(booking *models.Booking) {
	booking.UpdatedAt = time.Now()
	if err := s.store.UpdateBooking(booking); err != nil {
		s.log.Error("BOOKING", fmt.Sprintf("Failed to update booking %s: %v", booking.ID, err))
	}
}

func (s *Service) RemoveTicket(bookingID, ticketID string) error {
	booking, err := s.store.GetBooking(bookingID)
	if err != nil {
		return err
	}
	if booking.Status != models.StatusInProgress {
		return ErrBookingLocked
	}

	tickets, err := s.store.ListTickets(bookingID)
	if err != nil {
		return err
	}
	for _, t := range tickets {
		if t.ID == ticketID {
			if err := s.store.DeleteTicket(ticketID); err != nil {
				return err
			}
			s.touch(booking)
			return nil
		}
	}
	return storage.ErrNotFound
}

// Price computes the booking's current price. The subtotal is the optimizer's
// best discounted ticket total; misc costs are added on top and the total is
// rounded up to a whole penny. A zero subtotal (comp booking) always totals
// zero, misc costs included.
func (s *Service) Price(bookingID string) (*Price, error) {
	booking, err := s.store.GetBooking(bookingID)
	if err != nil {
		return nil, err
	}

	tickets, err := s.store.ListTickets(bookingID)
	if err != nil {
		return nil, err
	}

	catalogue, err := s.store.ListDiscountsForPerformance(booking.PerformanceID)
	if err != nil {
		return nil, err
	}

	optimizer := discounts.NewOptimizer(catalogue, s.cfg.MaxDiscountCombination)
	best, subtotal := optimizer.BestCombination(tickets)

	var applied []string
	if best != nil {
		for _, d := range best.Discounts {
			applied = append(applied, d.Name)
		}
	}

	price := &Price{Subtotal: subtotal, Discounts: applied}
	if subtotal == 0 {
		return price, nil
	}

	miscCosts, err := s.store.ListMiscCosts()
	if err != nil {
		return nil, err
	}

	var misc float64
	for _, m := range miscCosts {
		misc += m.ValueFor(subtotal)
	}

	price.MiscCosts = int64(math.Ceil(misc))
	price.Total = int64(math.Ceil(float64(subtotal) + misc))
	return price, nil
}

// Pay charges the booking's current total. A zero-total booking is marked
// paid without touching any provider.
func (s *Service) Pay(ctx context.Context, bookingID string, req *models.PayRequest) (*models.Transaction, error) {
	booking, err := s.store.GetBooking(bookingID)
	if err != nil {
		return nil, err
	}

	price, err := s.Price(bookingID)
	if err != nil {
		return nil, err
	}

	if price.Total == 0 {
		if booking.Status != models.StatusInProgress {
			return nil, &payable.CantBePaidForError{Kind: booking.PayableKind(), Status: booking.Status}
		}
		booking.SetPayableStatus(models.StatusPaid)
		if err := s.store.UpdatePayableStatus(booking.PayableKind(), booking.ID, models.StatusPaid); err != nil {
			return nil, err
		}
		s.log.LogBooking("PAID", booking.ID, "Zero-total booking marked paid without charge")
		return nil, nil
	}

	return s.payable.Pay(ctx, booking, payable.PayParams{
		Method:         req.Method,
		Value:          price.Total,
		Currency:       s.cfg.Currency,
		Token:          req.Token,
		IdempotencyKey: req.IdempotencyKey,
	})
}

func (s *Service) Cancel(ctx context.Context, bookingID string) error {
	booking, err := s.store.GetBooking(bookingID)
	if err != nil {
		return err
	}
	return s.payable.Cancel(ctx, booking)
}

func (s *Service) Refund(ctx context.Context, bookingID string, req *models.RefundRequest) error {
	booking, err := s.store.GetBooking(bookingID)
	if err != nil {
		return err
	}
	return s.payable.Refund(ctx, booking, req.AuthorizerID, payable.RefundOptions{
		Async:                req.Async,
		PreserveProviderFees: req.PreserveProviderFees,
		PreserveAppFees:      req.PreserveAppFees,
	})
}

// CheckIn marks the given tickets as checked in. Only paid bookings admit.
func (s *Service) CheckIn(bookingID string, req *models.CheckInRequest) ([]*models.Ticket, error) {
	booking, err := s.store.GetBooking(bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusPaid {
		return nil, ErrNotPaid
	}

	tickets, err := s.store.ListTickets(bookingID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Ticket, len(tickets))
	for _, t := range tickets {
		byID[t.ID] = t
	}

	// Validate the whole batch before mutating anything.
	for _, id := range req.TicketIDs {
		t, ok := byID[id]
		if !ok {
			return nil, storage.ErrNotFound
		}
		if t.CheckedIn() {
			return nil, fmt.Errorf("%w: %s", ErrTicketCheckedIn, id)
		}
	}

	now := time.Now()
	checked := make([]*models.Ticket, 0, len(req.TicketIDs))
	for _, id := range req.TicketIDs {
		t := byID[id]
		t.CheckedInAt = &now
		t.CheckedInByID = req.CheckedInByID
		if err := s.store.UpdateTicket(t); err != nil {
			return nil, err
		}
		checked = append(checked, t)
	}

	s.log.LogBooking("CHECKED_IN", bookingID, fmt.Sprintf("%d ticket(s) checked in by %s", len(checked), req.CheckedInByID))
	return checked, nil
}
