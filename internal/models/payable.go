package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PayableStatus string

const (
	StatusInProgress       PayableStatus = "IN_PROGRESS"
	StatusCancelled        PayableStatus = "CANCELLED"
	StatusPaid             PayableStatus = "PAID"
	StatusRefundProcessing PayableStatus = "REFUND_PROCESSING"
	StatusRefunded         PayableStatus = "REFUNDED"
)

type TransactionType string

const (
	TransactionPayment TransactionType = "PAYMENT"
	TransactionRefund  TransactionType = "REFUND"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
)

// Transaction is a single money movement against a payable. Value is signed:
// positive for payments, negative for refunds. The payable is referenced by
// (PayableKind, PayableID) rather than a direct pointer so other payable
// entities can be added without touching this table.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions"`

	ID            string            `json:"transactionID" bun:"transaction_id,pk"`
	PayableKind   string            `json:"payableKind" bun:"payable_kind"`
	PayableID     string            `json:"payableID" bun:"payable_id"`
	Type          TransactionType   `json:"type" bun:"type"`
	Status        TransactionStatus `json:"status" bun:"status"`
	Value         int64             `json:"value" bun:"value"`
	ProviderFee   int64             `json:"providerFee" bun:"provider_fee"`
	AppFee        int64             `json:"appFee" bun:"app_fee"`
	Currency      string            `json:"currency" bun:"currency"`
	ProviderName  string            `json:"providerName" bun:"provider_name"`
	ProviderRefID string            `json:"providerRefID" bun:"provider_ref_id"`
	// OriginalID links a refund back to the payment it reverses. Empty on
	// payments.
	OriginalID string    `json:"originalTransactionID,omitempty" bun:"original_transaction_id"`
	CreatedAt  time.Time `json:"createdAt" bun:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" bun:"updated_at"`
}

// RefundTask is one unit of refund work handed to the task queue: refund a
// single payment transaction on behalf of an authorizing user.
type RefundTask struct {
	TransactionID        string    `json:"transactionID"`
	PayableKind          string    `json:"payableKind"`
	PayableID            string    `json:"payableID"`
	AuthorizerID         string    `json:"authorizerID"`
	PreserveProviderFees bool      `json:"preserveProviderFees"`
	PreserveAppFees      bool      `json:"preserveAppFees"`
	QueuedAt             time.Time `json:"queuedAt"`
}

type TransactionEvent struct {
	Type        string       `json:"type"`
	Transaction *Transaction `json:"transaction"`
	Timestamp   time.Time    `json:"timestamp"`
}
