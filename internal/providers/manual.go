package providers

import (
	"context"
	"time"

	"box-office/internal/models"
	"box-office/internal/utils"
)

const (
	MethodCash = "CASH"
	MethodCard = "CARD"
)

// ManualProvider records payments taken in person (cash box or card
// terminal operated by front of house). There is no gateway: transactions
// complete immediately and can never be pending.
type ManualProvider struct {
	method     string
	refundable bool
}

func NewCashProvider() *ManualProvider {
	return &ManualProvider{method: MethodCash, refundable: false}
}

func NewCardProvider() *ManualProvider {
	return &ManualProvider{method: MethodCard, refundable: true}
}

func (p *ManualProvider) Name() string       { return p.method }
func (p *ManualProvider) IsAutomatic() bool  { return true }
func (p *ManualProvider) IsRefundable() bool { return p.refundable }

func (p *ManualProvider) Pay(ctx context.Context, req PayRequest) (*models.Transaction, error) {
	now := time.Now()
	return &models.Transaction{
		ID:           utils.GenerateTransactionID(),
		PayableKind:  req.PayableKind,
		PayableID:    req.PayableID,
		Type:         models.TransactionPayment,
		Status:       models.TransactionCompleted,
		Value:        req.Value,
		AppFee:       req.AppFee,
		Currency:     req.Currency,
		ProviderName: p.method,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Cancel is a no-op: manual transactions never sit in PENDING.
func (p *ManualProvider) Cancel(ctx context.Context, txn *models.Transaction) error { return nil }

func (p *ManualProvider) SyncTransaction(ctx context.Context, txn *models.Transaction) error {
	return nil
}

// ManualRefundProvider records money handed back in person against a manual
// payment. Always succeeds synchronously.
type ManualRefundProvider struct{}

func NewManualRefundProvider() *ManualRefundProvider { return &ManualRefundProvider{} }

func (p *ManualRefundProvider) Name() string { return "MANUAL_REFUND" }

func (p *ManualRefundProvider) Refund(ctx context.Context, req RefundRequest) (*models.Transaction, error) {
	now := time.Now()
	return &models.Transaction{
		ID:           utils.GenerateTransactionID(),
		PayableKind:  req.Original.PayableKind,
		PayableID:    req.Original.PayableID,
		Type:         models.TransactionRefund,
		Status:       models.TransactionCompleted,
		Value:        -req.Value,
		Currency:     req.Original.Currency,
		ProviderName: p.Name(),
		OriginalID:   req.Original.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (p *ManualRefundProvider) SyncTransaction(ctx context.Context, txn *models.Transaction) error {
	return nil
}
