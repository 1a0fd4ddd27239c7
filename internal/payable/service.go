package payable

import (
	"context"
	"fmt"
	"time"

	"box-office/internal/logger"
	"box-office/internal/models"
	"box-office/internal/providers"
)

// Store is the slice of the storage layer the state machine needs.
type Store interface {
	GetTransaction(id string) (*models.Transaction, error)
	GetTransactionByProviderRef(providerRefID string) (*models.Transaction, error)
	ListTransactions(payableKind, payableID string) ([]*models.Transaction, error)
	SaveTransaction(txn *models.Transaction) error
	UpdateTransaction(txn *models.Transaction) error
	DeleteTransaction(id string) error
	UpdatePayableStatus(kind, id string, status models.PayableStatus) error
}

// Queue accepts refund work items for out-of-band processing.
type Queue interface {
	EnqueueRefund(task *models.RefundTask) error
}

// Events receives transaction lifecycle events.
type Events interface {
	PublishTransactionEvent(event *models.TransactionEvent) error
}

type Notifier interface {
	NotifyRefundInitiated(adminEmails []string, payableName string, transactions int)
	NotifyRefunded(email, payableName string, amount int64)
}

// Locker guards a payable against concurrent refund attempts across
// processes. May be nil, in which case only the in-store PENDING check
// applies.
type Locker interface {
	AcquireRefundLock(kind, id string) (bool, error)
	ReleaseRefundLock(kind, id string) error
}

type PayParams struct {
	Method string
	// Value is the full amount to charge in pence, AppFee the platform's cut
	// of it.
	Value          int64
	AppFee         int64
	Currency       string
	Token          string
	IdempotencyKey string
}

type RefundOptions struct {
	Async                bool
	PreserveProviderFees bool
	PreserveAppFees      bool
}

type Service struct {
	store       Store
	registry    *providers.Registry
	kinds       *KindRegistry
	queue       Queue
	events      Events
	notifier    Notifier
	locks       Locker
	adminEmails []string
	log         *logger.Logger
}

func NewService(store Store, registry *providers.Registry, kinds *KindRegistry, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		registry: registry,
		kinds:    kinds,
		log:      log,
	}
}

// WithQueue, WithEvents, WithNotifier and WithLocker attach optional
// collaborators; the service works without them.
func (s *Service) WithQueue(q Queue) *Service   { s.queue = q; return s }
func (s *Service) WithEvents(e Events) *Service { s.events = e; return s }
func (s *Service) WithLocker(l Locker) *Service { s.locks = l; return s }
func (s *Service) WithNotifier(n Notifier, adminEmails []string) *Service {
	s.notifier = n
	s.adminEmails = adminEmails
	return s
}

// Pay takes a payment for the payable through the named provider. Any
// still-pending transaction from an earlier attempt is cancelled and deleted
// first, so at most one payment is ever in flight.
func (s *Service) Pay(ctx context.Context, p Payable, params PayParams) (*models.Transaction, error) {
	if p.PayableStatus() != models.StatusInProgress {
		return nil, &CantBePaidForError{Kind: p.PayableKind(), Status: p.PayableStatus()}
	}

	txns, err := s.store.ListTransactions(p.PayableKind(), p.PayableID())
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	for _, txn := range txns {
		if txn.Status != models.TransactionPending {
			continue
		}
		s.log.LogPayment("CANCEL", txn.ID, "Cancelling stale pending transaction before new payment")
		if provider, perr := s.registry.PaymentProvider(txn.ProviderName); perr == nil {
			if cerr := provider.Cancel(ctx, txn); cerr != nil {
				s.log.Warn("PAYMENT", fmt.Sprintf("Failed to cancel pending transaction %s: %v", txn.ID, cerr))
			}
		}
		if derr := s.store.DeleteTransaction(txn.ID); derr != nil {
			return nil, fmt.Errorf("failed to delete pending transaction: %w", derr)
		}
	}

	provider, err := s.registry.PaymentProvider(params.Method)
	if err != nil {
		return nil, err
	}

	txn, err := provider.Pay(ctx, providers.PayRequest{
		PayableKind:    p.PayableKind(),
		PayableID:      p.PayableID(),
		Value:          params.Value,
		AppFee:         params.AppFee,
		Currency:       params.Currency,
		Reference:      p.DisplayName(),
		Token:          params.Token,
		IdempotencyKey: params.IdempotencyKey,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveTransaction(txn); err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	s.publish("transaction.created", txn)

	if txn.Status == models.TransactionCompleted {
		if err := s.transition(p, models.StatusPaid); err != nil {
			return nil, err
		}
		s.log.LogPayment("PAID", p.PayableID(), fmt.Sprintf("%s %s paid via %s", p.PayableKind(), p.DisplayName(), params.Method))
	}

	return txn, nil
}

// Cancel abandons an in-progress payable, cancelling and deleting any
// pending payment attempt.
func (s *Service) Cancel(ctx context.Context, p Payable) error {
	if err := ValidateTransition(p.PayableStatus(), models.StatusCancelled); err != nil {
		return err
	}

	txns, err := s.store.ListTransactions(p.PayableKind(), p.PayableID())
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}

	for _, txn := range txns {
		if txn.Status != models.TransactionPending {
			continue
		}
		if provider, perr := s.registry.PaymentProvider(txn.ProviderName); perr == nil {
			if cerr := provider.Cancel(ctx, txn); cerr != nil {
				s.log.Warn("PAYMENT", fmt.Sprintf("Failed to cancel pending transaction %s: %v", txn.ID, cerr))
			}
		}
		if derr := s.store.DeleteTransaction(txn.ID); derr != nil {
			return fmt.Errorf("failed to delete pending transaction: %w", derr)
		}
	}

	return s.transition(p, models.StatusCancelled)
}

// ValidateCantBeRefunded runs the refund precondition checks in order and
// returns a structured reason when one fails, nil when the payable is
// refundable.
func (s *Service) ValidateCantBeRefunded(p Payable) *CantBeRefundedError {
	status := p.PayableStatus()
	if status != models.StatusPaid && status != models.StatusCancelled {
		return &CantBeRefundedError{
			Message: fmt.Sprintf("this %s can not be refunded because of its status (%s)", p.PayableKind(), status),
			Field:   "status",
			Code:    CodeRefundStatus,
		}
	}

	txns, err := s.store.ListTransactions(p.PayableKind(), p.PayableID())
	if err != nil {
		return &CantBeRefundedError{
			Message: fmt.Sprintf("could not load transactions for this %s", p.PayableKind()),
			Code:    CodeRefundStatus,
		}
	}

	hasPayment := false
	for _, txn := range txns {
		if txn.Type == models.TransactionPayment {
			hasPayment = true
			break
		}
	}
	if !hasPayment {
		return &CantBeRefundedError{
			Message: fmt.Sprintf("this %s has no payments to refund", p.PayableKind()),
			Code:    CodeRefundNoPayments,
		}
	}

	if IsRefunded(txns) {
		return &CantBeRefundedError{
			Message: fmt.Sprintf("this %s has already been refunded", p.PayableKind()),
			Code:    CodeRefundAlreadyRefunded,
		}
	}

	if Locked(txns) {
		return &CantBeRefundedError{
			Message: fmt.Sprintf("this %s is locked: a transaction is still pending", p.PayableKind()),
			Code:    CodeRefundLocked,
		}
	}

	return nil
}

func (s *Service) CanBeRefunded(p Payable) bool {
	return s.ValidateCantBeRefunded(p) == nil
}

// Refund reverses every completed payment on the payable, either by queueing
// one refund task per transaction or by refunding synchronously.
func (s *Service) Refund(ctx context.Context, p Payable, authorizerID string, opts RefundOptions) error {
	if verr := s.ValidateCantBeRefunded(p); verr != nil {
		return verr
	}

	if s.locks != nil {
		ok, err := s.locks.AcquireRefundLock(p.PayableKind(), p.PayableID())
		if err != nil {
			return fmt.Errorf("failed to acquire refund lock: %w", err)
		}
		if !ok {
			return &CantBeRefundedError{
				Message: fmt.Sprintf("this %s is already being refunded", p.PayableKind()),
				Code:    CodeRefundLocked,
			}
		}
		defer s.locks.ReleaseRefundLock(p.PayableKind(), p.PayableID())
	}

	txns, err := s.store.ListTransactions(p.PayableKind(), p.PayableID())
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}

	var payments []*models.Transaction
	for _, txn := range txns {
		if txn.Type == models.TransactionPayment && txn.Status == models.TransactionCompleted {
			payments = append(payments, txn)
		}
	}

	prior := p.PayableStatus()
	if err := s.transition(p, models.StatusRefundProcessing); err != nil {
		return err
	}

	s.log.LogPayment("REFUND_INIT", p.PayableID(),
		fmt.Sprintf("Refunding %d payment(s) on %s %s, authorized by %s", len(payments), p.PayableKind(), p.DisplayName(), authorizerID))

	issued := 0
	for _, txn := range payments {
		if opts.Async && s.queue != nil {
			task := &models.RefundTask{
				TransactionID:        txn.ID,
				PayableKind:          p.PayableKind(),
				PayableID:            p.PayableID(),
				AuthorizerID:         authorizerID,
				PreserveProviderFees: opts.PreserveProviderFees,
				PreserveAppFees:      opts.PreserveAppFees,
				QueuedAt:             time.Now(),
			}
			if qerr := s.queue.EnqueueRefund(task); qerr != nil {
				s.restoreStatusAfterRefundFailure(p, prior, issued)
				return fmt.Errorf("failed to queue refund for transaction %s: %w", txn.ID, qerr)
			}
			issued++
			continue
		}
		if _, rerr := s.refundTransaction(ctx, txn, opts); rerr != nil {
			s.restoreStatusAfterRefundFailure(p, prior, issued)
			return rerr
		}
		issued++
	}

	if s.notifier != nil && len(s.adminEmails) > 0 {
		s.notifier.NotifyRefundInitiated(s.adminEmails, p.DisplayName(), len(payments))
	}

	return nil
}

// ProcessRefundTask refunds a single payment transaction from the queue. A
// CantBeRefundedError return means the task should be marked skipped, not
// retried.
func (s *Service) ProcessRefundTask(ctx context.Context, task *models.RefundTask) error {
	txn, err := s.store.GetTransaction(task.TransactionID)
	if err != nil {
		return fmt.Errorf("failed to load transaction %s: %w", task.TransactionID, err)
	}

	txns, err := s.store.ListTransactions(task.PayableKind, task.PayableID)
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}

	// Re-check eligibility at execution time: the task may be a duplicate
	// delivery or the payable may have been refunded by another worker.
	if IsRefunded(txns) {
		return &CantBeRefundedError{
			Message: fmt.Sprintf("this %s has already been refunded", task.PayableKind),
			Code:    CodeRefundAlreadyRefunded,
		}
	}
	if refunded(txns, txn.ID) {
		return &CantBeRefundedError{
			Message: fmt.Sprintf("transaction %s has already been refunded", txn.ID),
			Code:    CodeRefundAlreadyRefunded,
		}
	}

	_, err = s.refundTransaction(ctx, txn, RefundOptions{
		PreserveProviderFees: task.PreserveProviderFees,
		PreserveAppFees:      task.PreserveAppFees,
	})
	return err
}

// SyncTransaction pulls a pending transaction's current status from its
// provider and applies any completion side effects.
func (s *Service) SyncTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	txn, err := s.store.GetTransaction(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction %s: %w", id, err)
	}

	before := txn.Status

	switch txn.Type {
	case models.TransactionRefund:
		provider, perr := s.registry.RefundProviderFor(txn.ProviderName)
		if perr != nil {
			return nil, perr
		}
		if serr := provider.SyncTransaction(ctx, txn); serr != nil {
			return nil, serr
		}
	default:
		provider, perr := s.registry.PaymentProvider(txn.ProviderName)
		if perr != nil {
			return nil, perr
		}
		if serr := provider.SyncTransaction(ctx, txn); serr != nil {
			return nil, serr
		}
	}

	if txn.Status == before {
		return txn, nil
	}

	if err := s.store.UpdateTransaction(txn); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	s.log.LogPayment("SYNC", txn.ID, fmt.Sprintf("Transaction status %s -> %s", before, txn.Status))

	if txn.Status == models.TransactionCompleted {
		if err := s.OnTransactionCompleted(ctx, txn); err != nil {
			return nil, err
		}
	}

	return txn, nil
}

// MarkTransactionCompleted applies a completion reported by the gateway
// (webhook push) and runs the completion side effects.
func (s *Service) MarkTransactionCompleted(ctx context.Context, providerRefID string) (*models.Transaction, error) {
	txn, err := s.store.GetTransactionByProviderRef(providerRefID)
	if err != nil {
		return nil, fmt.Errorf("no transaction for provider reference %s: %w", providerRefID, err)
	}

	if txn.Status == models.TransactionCompleted {
		return txn, nil
	}

	txn.Status = models.TransactionCompleted
	txn.UpdatedAt = time.Now()
	if err := s.store.UpdateTransaction(txn); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	if err := s.OnTransactionCompleted(ctx, txn); err != nil {
		return nil, err
	}

	return txn, nil
}

// MarkTransactionFailed records a gateway-reported failure against the
// transaction with the given provider reference.
func (s *Service) MarkTransactionFailed(providerRefID string) (*models.Transaction, error) {
	txn, err := s.store.GetTransactionByProviderRef(providerRefID)
	if err != nil {
		return nil, fmt.Errorf("no transaction for provider reference %s: %w", providerRefID, err)
	}

	if txn.Status == models.TransactionFailed {
		return txn, nil
	}

	txn.Status = models.TransactionFailed
	txn.UpdatedAt = time.Now()
	if err := s.store.UpdateTransaction(txn); err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	s.log.LogPayment("FAILED", txn.ID, fmt.Sprintf("Transaction failed at the gateway (ref %s)", providerRefID))
	return txn, nil
}

// OnTransactionCompleted is called by whatever persists a completed
// transaction. When the payable's money has fully round-tripped it advances
// the payable to REFUNDED and notifies the owner. Replaces what the ORM
// world would do with an implicit post-save hook.
func (s *Service) OnTransactionCompleted(ctx context.Context, txn *models.Transaction) error {
	s.publish("transaction.completed", txn)

	p, err := s.kinds.Resolve(txn.PayableKind, txn.PayableID)
	if err != nil {
		return err
	}

	txns, err := s.store.ListTransactions(txn.PayableKind, txn.PayableID)
	if err != nil {
		return fmt.Errorf("failed to list transactions: %w", err)
	}

	if !IsRefunded(txns) {
		// Payment completion: a pending payment on an in-progress payable
		// that just completed moves it to PAID.
		if txn.Type == models.TransactionPayment && p.PayableStatus() == models.StatusInProgress {
			return s.transition(p, models.StatusPaid)
		}
		return nil
	}

	if p.PayableStatus() == models.StatusCancelled {
		return nil
	}

	if !CanTransition(p.PayableStatus(), models.StatusRefunded) {
		s.log.Warn("PAYMENT", fmt.Sprintf("%s %s nets to zero but can not move from %s to REFUNDED",
			p.PayableKind(), p.PayableID(), p.PayableStatus()))
		return nil
	}

	if err := s.transition(p, models.StatusRefunded); err != nil {
		return err
	}

	s.log.LogPayment("REFUNDED", p.PayableID(), fmt.Sprintf("%s %s fully refunded", p.PayableKind(), p.DisplayName()))

	if s.notifier != nil && p.OwnerEmail() != "" {
		var refundedAmount int64
		for _, t := range txns {
			if t.Type == models.TransactionRefund && t.Status == models.TransactionCompleted {
				refundedAmount -= t.Value
			}
		}
		s.notifier.NotifyRefunded(p.OwnerEmail(), p.DisplayName(), refundedAmount)
	}

	return nil
}

func (s *Service) refundTransaction(ctx context.Context, original *models.Transaction, opts RefundOptions) (*models.Transaction, error) {
	provider, err := s.registry.RefundProviderFor(original.ProviderName)
	if err != nil {
		return nil, err
	}

	value := original.Value
	if opts.PreserveProviderFees {
		value -= original.ProviderFee
	}
	if opts.PreserveAppFees {
		value -= original.AppFee
	}
	if value <= 0 {
		return nil, &CantBeRefundedError{
			Message: fmt.Sprintf("nothing left to refund on transaction %s after preserved fees", original.ID),
			Code:    CodeRefundNoPayments,
		}
	}

	refund, err := provider.Refund(ctx, providers.RefundRequest{Value: value, Original: original})
	if err != nil {
		return nil, err
	}

	if err := s.store.SaveTransaction(refund); err != nil {
		return nil, fmt.Errorf("failed to save refund transaction: %w", err)
	}

	s.log.LogPayment("REFUND", refund.ID, fmt.Sprintf("Refunded %d against transaction %s", value, original.ID))

	if refund.Status == models.TransactionCompleted {
		if err := s.OnTransactionCompleted(ctx, refund); err != nil {
			return nil, err
		}
	}

	return refund, nil
}

func (s *Service) transition(p Payable, to models.PayableStatus) error {
	if err := ValidateTransition(p.PayableStatus(), to); err != nil {
		return err
	}
	p.SetPayableStatus(to)
	if err := s.store.UpdatePayableStatus(p.PayableKind(), p.PayableID(), to); err != nil {
		return fmt.Errorf("failed to persist status change: %w", err)
	}
	return nil
}

// restoreStatusAfterRefundFailure undoes the REFUND_PROCESSING transition
// when a refund attempt failed before any refund was issued or queued, so the
// payable stays eligible for a retry once the gateway recovers. Once at least
// one refund is in flight REFUND_PROCESSING is accurate and stays.
func (s *Service) restoreStatusAfterRefundFailure(p Payable, prior models.PayableStatus, issued int) {
	if issued > 0 || p.PayableStatus() != models.StatusRefundProcessing {
		return
	}
	p.SetPayableStatus(prior)
	if err := s.store.UpdatePayableStatus(p.PayableKind(), p.PayableID(), prior); err != nil {
		s.log.Error("PAYMENT", fmt.Sprintf("Failed to restore %s %s to %s after refund failure: %v",
			p.PayableKind(), p.PayableID(), prior, err))
	}
}

func (s *Service) publish(eventType string, txn *models.Transaction) {
	if s.events == nil {
		return
	}
	event := &models.TransactionEvent{
		Type:        eventType,
		Transaction: txn,
		Timestamp:   time.Now(),
	}
	if err := s.events.PublishTransactionEvent(event); err != nil {
		s.log.Error("KAFKA", fmt.Sprintf("Failed to publish %s for transaction %s: %v", eventType, txn.ID, err))
	}
}

// refunded reports whether a refund transaction already reverses the given
// payment.
func refunded(txns []*models.Transaction, paymentID string) bool {
	// A refund that references this payment and has not failed means another
	// worker already got here, even when preserved fees keep the refund
	// smaller than the payment.
	for _, t := range txns {
		if t.Type == models.TransactionRefund && t.Status != models.TransactionFailed && t.OriginalID == paymentID {
			return true
		}
	}
	return false
}
