package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"box-office/internal/config"
	"box-office/internal/logger"
	"box-office/internal/models"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLStore struct {
	db  *sql.DB
	log *logger.Logger
}

func NewMySQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*MySQLStore, error) {
	log.LogDatabase("CONNECT", "mysql", fmt.Sprintf("Connecting to MySQL at %s:%s", cfg.Host, cfg.Port))

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Error("DATABASE", "Failed to open MySQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := db.Ping(); err != nil {
		log.Error("DATABASE", "Failed to ping MySQL: "+err.Error())
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &MySQLStore{
		db:  db,
		log: log,
	}

	if err := store.initTables(); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "mysql", "MySQL connection established and tables initialized")
	return store, nil
}

func (s *MySQLStore) initTables() error {
	s.log.LogDatabase("MIGRATE", "mysql", "Creating tables if not exist")

	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
        booking_id VARCHAR(64) PRIMARY KEY,
        reference VARCHAR(16) NOT NULL,
        performance_id VARCHAR(64) NOT NULL,
        user_id VARCHAR(64) NOT NULL,
        user_email VARCHAR(255) NOT NULL,
        creator_id VARCHAR(64) NOT NULL,
        status VARCHAR(32) NOT NULL,
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        INDEX idx_performance_id (performance_id),
        INDEX idx_user_id (user_id),
        INDEX idx_status (status)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,
		`CREATE TABLE IF NOT EXISTS tickets (
        ticket_id VARCHAR(64) PRIMARY KEY,
        booking_id VARCHAR(64) NOT NULL,
        concession_type_id VARCHAR(64) NOT NULL,
        seat_group_id VARCHAR(64) NOT NULL,
        price BIGINT NOT NULL,
        checked_in_at TIMESTAMP NULL DEFAULT NULL,
        checked_in_by_id VARCHAR(64) NOT NULL DEFAULT '',
        INDEX idx_booking_id (booking_id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,
		`CREATE TABLE IF NOT EXISTS transactions (
        transaction_id VARCHAR(64) PRIMARY KEY,
        payable_kind VARCHAR(32) NOT NULL,
        payable_id VARCHAR(64) NOT NULL,
        type VARCHAR(16) NOT NULL,
        status VARCHAR(16) NOT NULL,
        value BIGINT NOT NULL,
        provider_fee BIGINT NOT NULL DEFAULT 0,
        app_fee BIGINT NOT NULL DEFAULT 0,
        currency VARCHAR(8) NOT NULL,
        provider_name VARCHAR(32) NOT NULL,
        provider_ref_id VARCHAR(255) NOT NULL DEFAULT '',
        original_transaction_id VARCHAR(64) NOT NULL DEFAULT '',
        created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
        updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        INDEX idx_payable (payable_kind, payable_id),
        INDEX idx_provider_ref (provider_ref_id),
        INDEX idx_status (status)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,
		`CREATE TABLE IF NOT EXISTS discounts (
        discount_id VARCHAR(64) PRIMARY KEY,
        name VARCHAR(255) NOT NULL,
        percentage DOUBLE NOT NULL,
        performance_ids JSON NOT NULL,
        seat_group_id VARCHAR(64) NOT NULL DEFAULT '',
        requirements JSON NOT NULL
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,
		`CREATE TABLE IF NOT EXISTS misc_costs (
        misc_cost_id VARCHAR(64) PRIMARY KEY,
        name VARCHAR(255) NOT NULL,
        value BIGINT NOT NULL DEFAULT 0,
        percentage DOUBLE NOT NULL DEFAULT 0
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	s.log.LogDatabase("SUCCESS", "mysql", "Tables ready")
	return nil
}

func (s *MySQLStore) SaveBooking(booking *models.Booking) error {
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Saving booking %s", booking.ID))

	query := `
    INSERT INTO bookings (booking_id, reference, performance_id, user_id, user_email, creator_id, status, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	_, err := s.db.Exec(query,
		booking.ID, booking.Reference, booking.PerformanceID, booking.UserID,
		booking.UserEmail, booking.CreatorID, booking.Status, booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save booking %s: %s", booking.ID, err.Error()))
		return fmt.Errorf("failed to save booking: %w", err)
	}

	return nil
}

func (s *MySQLStore) GetBooking(id string) (*models.Booking, error) {
	query := `
    SELECT booking_id, reference, performance_id, user_id, user_email, creator_id, status, created_at, updated_at
    FROM bookings WHERE booking_id = ?
    `

	booking := &models.Booking{}
	err := s.db.QueryRow(query, id).Scan(
		&booking.ID, &booking.Reference, &booking.PerformanceID, &booking.UserID,
		&booking.UserEmail, &booking.CreatorID, &booking.Status, &booking.CreatedAt, &booking.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			s.log.LogDatabase("NOT_FOUND", "mysql", fmt.Sprintf("Booking %s not found", id))
			return nil, ErrNotFound
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get booking %s: %s", id, err.Error()))
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return booking, nil
}

func (s *MySQLStore) UpdateBooking(booking *models.Booking) error {
	query := `
    UPDATE bookings SET
        reference = ?, performance_id = ?, user_id = ?, user_email = ?, creator_id = ?, status = ?
    WHERE booking_id = ?
    `

	_, err := s.db.Exec(query,
		booking.Reference, booking.PerformanceID, booking.UserID, booking.UserEmail,
		booking.CreatorID, booking.Status, booking.ID,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to update booking %s: %s", booking.ID, err.Error()))
		return fmt.Errorf("failed to update booking: %w", err)
	}

	return nil
}

func (s *MySQLStore) UpdatePayableStatus(kind, id string, status models.PayableStatus) error {
	if kind != models.PayableKindBooking {
		return fmt.Errorf("unknown payable kind: %s", kind)
	}

	s.log.LogDatabase("UPDATE", "mysql", fmt.Sprintf("Setting booking %s status to %s", id, status))

	result, err := s.db.Exec(`UPDATE bookings SET status = ? WHERE booking_id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *MySQLStore) SaveTicket(ticket *models.Ticket) error {
	query := `
    INSERT INTO tickets (ticket_id, booking_id, concession_type_id, seat_group_id, price, checked_in_at, checked_in_by_id)
    VALUES (?, ?, ?, ?, ?, ?, ?)
    `

	_, err := s.db.Exec(query,
		ticket.ID, ticket.BookingID, ticket.ConcessionTypeID, ticket.SeatGroupID,
		ticket.Price, ticket.CheckedInAt, ticket.CheckedInByID,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save ticket %s: %s", ticket.ID, err.Error()))
		return fmt.Errorf("failed to save ticket: %w", err)
	}

	return nil
}

func (s *MySQLStore) UpdateTicket(ticket *models.Ticket) error {
	query := `
    UPDATE tickets SET
        concession_type_id = ?, seat_group_id = ?, price = ?, checked_in_at = ?, checked_in_by_id = ?
    WHERE ticket_id = ?
    `

	result, err := s.db.Exec(query,
		ticket.ConcessionTypeID, ticket.SeatGroupID, ticket.Price,
		ticket.CheckedInAt, ticket.CheckedInByID, ticket.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update ticket: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *MySQLStore) DeleteTicket(id string) error {
	result, err := s.db.Exec(`DELETE FROM tickets WHERE ticket_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MySQLStore) ListTickets(bookingID string) ([]*models.Ticket, error) {
	query := `
    SELECT ticket_id, booking_id, concession_type_id, seat_group_id, price, checked_in_at, checked_in_by_id
    FROM tickets WHERE booking_id = ? ORDER BY ticket_id
    `

	rows, err := s.db.Query(query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		ticket := &models.Ticket{}
		if err := rows.Scan(
			&ticket.ID, &ticket.BookingID, &ticket.ConcessionTypeID, &ticket.SeatGroupID,
			&ticket.Price, &ticket.CheckedInAt, &ticket.CheckedInByID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}

	return tickets, rows.Err()
}

func (s *MySQLStore) SaveTransaction(txn *models.Transaction) error {
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Saving transaction %s", txn.ID))

	query := `
    INSERT INTO transactions (transaction_id, payable_kind, payable_id, type, status, value, provider_fee, app_fee, currency, provider_name, provider_ref_id, original_transaction_id, created_at, updated_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	_, err := s.db.Exec(query,
		txn.ID, txn.PayableKind, txn.PayableID, txn.Type, txn.Status, txn.Value,
		txn.ProviderFee, txn.AppFee, txn.Currency, txn.ProviderName, txn.ProviderRefID,
		txn.OriginalID, txn.CreatedAt, txn.UpdatedAt,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save transaction %s: %s", txn.ID, err.Error()))
		return fmt.Errorf("failed to save transaction: %w", err)
	}

	return nil
}

func (s *MySQLStore) GetTransaction(id string) (*models.Transaction, error) {
	return s.scanTransaction(`WHERE transaction_id = ?`, id)
}

func (s *MySQLStore) GetTransactionByProviderRef(providerRefID string) (*models.Transaction, error) {
	return s.scanTransaction(`WHERE provider_ref_id = ?`, providerRefID)
}

func (s *MySQLStore) scanTransaction(where string, arg interface{}) (*models.Transaction, error) {
	query := `
    SELECT transaction_id, payable_kind, payable_id, type, status, value, provider_fee, app_fee, currency, provider_name, provider_ref_id, original_transaction_id, created_at, updated_at
    FROM transactions ` + where

	txn := &models.Transaction{}
	err := s.db.QueryRow(query, arg).Scan(
		&txn.ID, &txn.PayableKind, &txn.PayableID, &txn.Type, &txn.Status, &txn.Value,
		&txn.ProviderFee, &txn.AppFee, &txn.Currency, &txn.ProviderName, &txn.ProviderRefID,
		&txn.OriginalID, &txn.CreatedAt, &txn.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return txn, nil
}

func (s *MySQLStore) UpdateTransaction(txn *models.Transaction) error {
	query := `
    UPDATE transactions SET
        status = ?, value = ?, provider_fee = ?, app_fee = ?, provider_ref_id = ?, updated_at = ?
    WHERE transaction_id = ?
    `

	result, err := s.db.Exec(query,
		txn.Status, txn.Value, txn.ProviderFee, txn.AppFee, txn.ProviderRefID, txn.UpdatedAt, txn.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *MySQLStore) DeleteTransaction(id string) error {
	result, err := s.db.Exec(`DELETE FROM transactions WHERE transaction_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MySQLStore) ListTransactions(payableKind, payableID string) ([]*models.Transaction, error) {
	query := `
    SELECT transaction_id, payable_kind, payable_id, type, status, value, provider_fee, app_fee, currency, provider_name, provider_ref_id, original_transaction_id, created_at, updated_at
    FROM transactions WHERE payable_kind = ? AND payable_id = ? ORDER BY created_at
    `

	rows, err := s.db.Query(query, payableKind, payableID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		txn := &models.Transaction{}
		if err := rows.Scan(
			&txn.ID, &txn.PayableKind, &txn.PayableID, &txn.Type, &txn.Status, &txn.Value,
			&txn.ProviderFee, &txn.AppFee, &txn.Currency, &txn.ProviderName, &txn.ProviderRefID,
			&txn.OriginalID, &txn.CreatedAt, &txn.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

func (s *MySQLStore) SaveDiscount(discount *models.Discount) error {
	performanceIDs, err := json.Marshal(discount.PerformanceIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal performance ids: %w", err)
	}
	requirements, err := json.Marshal(discount.Requirements)
	if err != nil {
		return fmt.Errorf("failed to marshal requirements: %w", err)
	}

	query := `
    INSERT INTO discounts (discount_id, name, percentage, performance_ids, seat_group_id, requirements)
    VALUES (?, ?, ?, ?, ?, ?)
    ON DUPLICATE KEY UPDATE name = VALUES(name), percentage = VALUES(percentage),
        performance_ids = VALUES(performance_ids), seat_group_id = VALUES(seat_group_id), requirements = VALUES(requirements)
    `

	if _, err := s.db.Exec(query,
		discount.ID, discount.Name, discount.Percentage, performanceIDs, discount.SeatGroupID, requirements,
	); err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save discount %s: %s", discount.ID, err.Error()))
		return fmt.Errorf("failed to save discount: %w", err)
	}

	return nil
}

func (s *MySQLStore) ListDiscounts() ([]*models.Discount, error) {
	return s.queryDiscounts(``)
}

func (s *MySQLStore) ListDiscountsForPerformance(performanceID string) ([]*models.Discount, error) {
	// Performance scoping lives in a JSON column, so filter in Go rather
	// than relying on JSON_CONTAINS support.
	all, err := s.queryDiscounts(``)
	if err != nil {
		return nil, err
	}

	var discounts []*models.Discount
	for _, d := range all {
		if d.AppliesToPerformance(performanceID) {
			discounts = append(discounts, d)
		}
	}
	return discounts, nil
}

func (s *MySQLStore) queryDiscounts(where string) ([]*models.Discount, error) {
	query := `
    SELECT discount_id, name, percentage, performance_ids, seat_group_id, requirements
    FROM discounts ` + where + ` ORDER BY discount_id`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list discounts: %w", err)
	}
	defer rows.Close()

	var discounts []*models.Discount
	for rows.Next() {
		discount := &models.Discount{}
		var performanceIDs, requirements []byte
		if err := rows.Scan(
			&discount.ID, &discount.Name, &discount.Percentage,
			&performanceIDs, &discount.SeatGroupID, &requirements,
		); err != nil {
			return nil, fmt.Errorf("failed to scan discount: %w", err)
		}
		if err := json.Unmarshal(performanceIDs, &discount.PerformanceIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal performance ids: %w", err)
		}
		if err := json.Unmarshal(requirements, &discount.Requirements); err != nil {
			return nil, fmt.Errorf("failed to unmarshal requirements: %w", err)
		}
		discounts = append(discounts, discount)
	}

	return discounts, rows.Err()
}

func (s *MySQLStore) SaveMiscCost(cost *models.MiscCost) error {
	query := `
    INSERT INTO misc_costs (misc_cost_id, name, value, percentage)
    VALUES (?, ?, ?, ?)
    ON DUPLICATE KEY UPDATE name = VALUES(name), value = VALUES(value), percentage = VALUES(percentage)
    `

	if _, err := s.db.Exec(query, cost.ID, cost.Name, cost.Value, cost.Percentage); err != nil {
		return fmt.Errorf("failed to save misc cost: %w", err)
	}
	return nil
}

func (s *MySQLStore) ListMiscCosts() ([]*models.MiscCost, error) {
	rows, err := s.db.Query(`SELECT misc_cost_id, name, value, percentage FROM misc_costs ORDER BY misc_cost_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list misc costs: %w", err)
	}
	defer rows.Close()

	var costs []*models.MiscCost
	for rows.Next() {
		cost := &models.MiscCost{}
		if err := rows.Scan(&cost.ID, &cost.Name, &cost.Value, &cost.Percentage); err != nil {
			return nil, fmt.Errorf("failed to scan misc cost: %w", err)
		}
		costs = append(costs, cost)
	}

	return costs, rows.Err()
}

func (s *MySQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "mysql", "Closing MySQL connection")
	return s.db.Close()
}

func (s *MySQLStore) HealthCheck() error {
	return s.db.Ping()
}
