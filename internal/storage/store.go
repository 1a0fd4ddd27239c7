package storage

import (
	"box-office/internal/models"
)

type Store interface {
	// Booking operations
	SaveBooking(booking *models.Booking) error
	GetBooking(id string) (*models.Booking, error)
	UpdateBooking(booking *models.Booking) error
	UpdatePayableStatus(kind, id string, status models.PayableStatus) error

	// Ticket operations
	SaveTicket(ticket *models.Ticket) error
	UpdateTicket(ticket *models.Ticket) error
	DeleteTicket(id string) error
	ListTickets(bookingID string) ([]*models.Ticket, error)

	// Transaction operations
	SaveTransaction(txn *models.Transaction) error
	GetTransaction(id string) (*models.Transaction, error)
	GetTransactionByProviderRef(providerRefID string) (*models.Transaction, error)
	UpdateTransaction(txn *models.Transaction) error
	DeleteTransaction(id string) error
	ListTransactions(payableKind, payableID string) ([]*models.Transaction, error)

	// Discount catalogue
	SaveDiscount(discount *models.Discount) error
	ListDiscounts() ([]*models.Discount, error)
	ListDiscountsForPerformance(performanceID string) ([]*models.Discount, error)

	// Misc costs
	SaveMiscCost(cost *models.MiscCost) error
	ListMiscCosts() ([]*models.MiscCost, error)
}
