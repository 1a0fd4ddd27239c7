package payable

import (
	"fmt"

	"box-office/internal/models"
)

// Payable is anything that can be paid for and refunded. Bookings are the
// only kind today; the interface plus the kind registry keep transactions
// decoupled from any one entity type.
type Payable interface {
	PayableKind() string
	PayableID() string
	PayableStatus() models.PayableStatus
	SetPayableStatus(models.PayableStatus)
	OwnerID() string
	OwnerEmail() string
	DisplayName() string
}

// Resolver loads a payable of one kind by id.
type Resolver func(id string) (Payable, error)

// KindRegistry resolves (payable_kind, payable_id) pairs back to payable
// entities. Built explicitly at process start.
type KindRegistry struct {
	kinds map[string]Resolver
}

func NewKindRegistry() *KindRegistry {
	return &KindRegistry{kinds: make(map[string]Resolver)}
}

func (r *KindRegistry) Register(kind string, resolve Resolver) {
	r.kinds[kind] = resolve
}

func (r *KindRegistry) Resolve(kind, id string) (Payable, error) {
	resolve, ok := r.kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown payable kind: %s", kind)
	}
	return resolve(id)
}

// Locked reports whether the payable has a transaction still in flight. A
// locked payable accepts no new payment or refund.
func Locked(txns []*models.Transaction) bool {
	for _, t := range txns {
		if t.Status == models.TransactionPending {
			return true
		}
	}
	return false
}

// NetValue sums the signed values of all completed transactions.
func NetValue(txns []*models.Transaction) int64 {
	var total int64
	for _, t := range txns {
		if t.Status == models.TransactionCompleted {
			total += t.Value
		}
	}
	return total
}

// IsRefunded reports whether the payable's money has fully round-tripped:
// nothing pending, completed transactions net to zero, and at least one
// payment and one refund exist.
func IsRefunded(txns []*models.Transaction) bool {
	if Locked(txns) {
		return false
	}

	var payments, refunds int
	for _, t := range txns {
		if t.Status != models.TransactionCompleted {
			continue
		}
		switch t.Type {
		case models.TransactionPayment:
			payments++
		case models.TransactionRefund:
			refunds++
		}
	}

	return payments > 0 && refunds > 0 && NetValue(txns) == 0
}
