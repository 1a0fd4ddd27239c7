package providers

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"box-office/internal/models"
)

var ErrUnknownProvider = errors.New("unknown payment provider")

// PayRequest carries everything a provider needs to take a payment without
// holding a reference to the payable itself.
type PayRequest struct {
	PayableKind string
	PayableID   string
	// Value is the full amount to charge in pence; AppFee is the portion of
	// that amount kept by the platform.
	Value    int64
	AppFee   int64
	Currency string
	// Reference is a human-readable label for the payable (statement text,
	// gateway description).
	Reference string
	// Token is the gateway payment method token. Ignored by manual providers.
	Token          string
	IdempotencyKey string
}

type RefundRequest struct {
	// Value is the positive amount to return in pence.
	Value    int64
	Original *models.Transaction
}

type PaymentProvider interface {
	Name() string
	// IsAutomatic reports whether the provider completes synchronously
	// without a gateway round trip.
	IsAutomatic() bool
	IsRefundable() bool
	Pay(ctx context.Context, req PayRequest) (*models.Transaction, error)
	// Cancel aborts a still-pending transaction. A no-op for providers that
	// never go pending.
	Cancel(ctx context.Context, txn *models.Transaction) error
	// SyncTransaction pulls the transaction's current status from the
	// gateway and updates txn in place.
	SyncTransaction(ctx context.Context, txn *models.Transaction) error
}

type RefundProvider interface {
	Name() string
	Refund(ctx context.Context, req RefundRequest) (*models.Transaction, error)
	SyncTransaction(ctx context.Context, txn *models.Transaction) error
}

// GatewayError wraps an error envelope returned by an external payment
// gateway. The core never retries these; transient ones are the task queue's
// problem.
type GatewayError struct {
	Provider string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s gateway error: %v", e.Provider, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Registry is an explicit, test-constructible set of providers. It is built
// once at process start and passed into the services that dispatch on it; no
// provider registers itself as an import side effect.
type Registry struct {
	payments map[string]PaymentProvider
	refunds  map[string]RefundProvider
}

func NewRegistry() *Registry {
	return &Registry{
		payments: make(map[string]PaymentProvider),
		refunds:  make(map[string]RefundProvider),
	}
}

func (r *Registry) RegisterPayment(p PaymentProvider) {
	r.payments[p.Name()] = p
}

// RegisterRefund associates a refund provider with the payment method whose
// transactions it can reverse. The provider is also reachable under its own
// name, which is what refund transactions record.
func (r *Registry) RegisterRefund(paymentMethod string, p RefundProvider) {
	r.refunds[paymentMethod] = p
	r.refunds[p.Name()] = p
}

func (r *Registry) PaymentProvider(name string) (PaymentProvider, error) {
	p, ok := r.payments[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return p, nil
}

func (r *Registry) RefundProviderFor(paymentMethod string) (RefundProvider, error) {
	p, ok := r.refunds[paymentMethod]
	if !ok {
		return nil, fmt.Errorf("%w: no refund provider for %s", ErrUnknownProvider, paymentMethod)
	}
	return p, nil
}

func (r *Registry) PaymentMethods() []string {
	names := make([]string, 0, len(r.payments))
	for name := range r.payments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
