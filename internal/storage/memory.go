package storage

import (
	"errors"
	"sort"
	"sync"

	"box-office/internal/models"
)

var ErrNotFound = errors.New("not found")

// InMemoryStore backs tests and mock-mode runs. Same shape as the MySQL
// store, no persistence.
type InMemoryStore struct {
	mutex sync.RWMutex

	bookings     map[string]*models.Booking
	tickets      map[string]*models.Ticket
	transactions map[string]*models.Transaction
	discounts    map[string]*models.Discount
	miscCosts    map[string]*models.MiscCost
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		bookings:     make(map[string]*models.Booking),
		tickets:      make(map[string]*models.Ticket),
		transactions: make(map[string]*models.Transaction),
		discounts:    make(map[string]*models.Discount),
		miscCosts:    make(map[string]*models.MiscCost),
	}
}

func (s *InMemoryStore) SaveBooking(booking *models.Booking) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.bookings[booking.ID] = booking
	return nil
}

func (s *InMemoryStore) GetBooking(id string) (*models.Booking, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	booking, exists := s.bookings[id]
	if !exists {
		return nil, ErrNotFound
	}
	return booking, nil
}

func (s *InMemoryStore) UpdateBooking(booking *models.Booking) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.bookings[booking.ID]; !exists {
		return ErrNotFound
	}
	s.bookings[booking.ID] = booking
	return nil
}

func (s *InMemoryStore) UpdatePayableStatus(kind, id string, status models.PayableStatus) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if kind != models.PayableKindBooking {
		return ErrNotFound
	}
	booking, exists := s.bookings[id]
	if !exists {
		return ErrNotFound
	}
	booking.Status = status
	return nil
}

func (s *InMemoryStore) SaveTicket(ticket *models.Ticket) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.tickets[ticket.ID] = ticket
	return nil
}

func (s *InMemoryStore) UpdateTicket(ticket *models.Ticket) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.tickets[ticket.ID]; !exists {
		return ErrNotFound
	}
	s.tickets[ticket.ID] = ticket
	return nil
}

func (s *InMemoryStore) DeleteTicket(id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.tickets[id]; !exists {
		return ErrNotFound
	}
	delete(s.tickets, id)
	return nil
}

func (s *InMemoryStore) ListTickets(bookingID string) ([]*models.Ticket, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var tickets []*models.Ticket
	for _, t := range s.tickets {
		if t.BookingID == bookingID {
			tickets = append(tickets, t)
		}
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	return tickets, nil
}

func (s *InMemoryStore) SaveTransaction(txn *models.Transaction) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.transactions[txn.ID] = txn
	return nil
}

func (s *InMemoryStore) GetTransaction(id string) (*models.Transaction, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	txn, exists := s.transactions[id]
	if !exists {
		return nil, ErrNotFound
	}
	return txn, nil
}

func (s *InMemoryStore) GetTransactionByProviderRef(providerRefID string) (*models.Transaction, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, txn := range s.transactions {
		if txn.ProviderRefID == providerRefID {
			return txn, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) UpdateTransaction(txn *models.Transaction) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.transactions[txn.ID]; !exists {
		return ErrNotFound
	}
	s.transactions[txn.ID] = txn
	return nil
}

func (s *InMemoryStore) DeleteTransaction(id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.transactions[id]; !exists {
		return ErrNotFound
	}
	delete(s.transactions, id)
	return nil
}

func (s *InMemoryStore) ListTransactions(payableKind, payableID string) ([]*models.Transaction, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var txns []*models.Transaction
	for _, txn := range s.transactions {
		if txn.PayableKind == payableKind && txn.PayableID == payableID {
			txns = append(txns, txn)
		}
	}
	sort.Slice(txns, func(i, j int) bool { return txns[i].CreatedAt.Before(txns[j].CreatedAt) })
	return txns, nil
}

func (s *InMemoryStore) SaveDiscount(discount *models.Discount) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.discounts[discount.ID] = discount
	return nil
}

func (s *InMemoryStore) ListDiscounts() ([]*models.Discount, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	discounts := make([]*models.Discount, 0, len(s.discounts))
	for _, d := range s.discounts {
		discounts = append(discounts, d)
	}
	sort.Slice(discounts, func(i, j int) bool { return discounts[i].ID < discounts[j].ID })
	return discounts, nil
}

func (s *InMemoryStore) ListDiscountsForPerformance(performanceID string) ([]*models.Discount, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var discounts []*models.Discount
	for _, d := range s.discounts {
		if d.AppliesToPerformance(performanceID) {
			discounts = append(discounts, d)
		}
	}
	sort.Slice(discounts, func(i, j int) bool { return discounts[i].ID < discounts[j].ID })
	return discounts, nil
}

func (s *InMemoryStore) SaveMiscCost(cost *models.MiscCost) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.miscCosts[cost.ID] = cost
	return nil
}

func (s *InMemoryStore) ListMiscCosts() ([]*models.MiscCost, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	costs := make([]*models.MiscCost, 0, len(s.miscCosts))
	for _, c := range s.miscCosts {
		costs = append(costs, c)
	}
	return costs, nil
}
