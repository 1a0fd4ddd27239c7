package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"box-office/internal/logger"
	"box-office/internal/models"
	"box-office/internal/utils"
)

const (
	MethodOnline = "ONLINE"
	MethodPOS    = "POS"
)

// OnlineProvider takes card payments through Stripe payment intents,
// confirmed immediately against the token supplied by the checkout frontend.
type OnlineProvider struct {
	client *client.API
	log    *logger.Logger
}

func NewOnlineProvider(sc *client.API, log *logger.Logger) *OnlineProvider {
	return &OnlineProvider{client: sc, log: log}
}

func (p *OnlineProvider) Name() string       { return MethodOnline }
func (p *OnlineProvider) IsAutomatic() bool  { return false }
func (p *OnlineProvider) IsRefundable() bool { return true }

func (p *OnlineProvider) Pay(ctx context.Context, req PayRequest) (*models.Transaction, error) {
	p.log.LogPayment("STRIPE", req.PayableID, fmt.Sprintf("Creating payment intent for %d %s", req.Value, req.Currency))

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Value),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod:      stripe.String(req.Token),
		Description:        stripe.String(req.Reference),
		ConfirmationMethod: stripe.String("manual"),
		Confirm:            stripe.Bool(true),
		PaymentMethodTypes: []*string{stripe.String("card")},
		Metadata: map[string]string{
			"payable_kind": req.PayableKind,
			"payable_id":   req.PayableID,
		},
	}
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}

	pi, err := p.client.PaymentIntents.New(params)
	if err != nil {
		p.log.Error("STRIPE", fmt.Sprintf("Failed to create payment intent: %v", err))
		return nil, &GatewayError{Provider: p.Name(), Err: err}
	}

	status := mapIntentStatus(pi.Status)
	p.log.LogPayment("STRIPE", req.PayableID, fmt.Sprintf("Payment intent %s is %s", pi.ID, pi.Status))

	now := time.Now()
	return &models.Transaction{
		ID:            utils.GenerateTransactionID(),
		PayableKind:   req.PayableKind,
		PayableID:     req.PayableID,
		Type:          models.TransactionPayment,
		Status:        status,
		Value:         req.Value,
		AppFee:        req.AppFee,
		Currency:      req.Currency,
		ProviderName:  p.Name(),
		ProviderRefID: pi.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (p *OnlineProvider) Cancel(ctx context.Context, txn *models.Transaction) error {
	if txn.ProviderRefID == "" {
		return nil
	}
	p.log.LogPayment("STRIPE", txn.ID, fmt.Sprintf("Cancelling payment intent %s", txn.ProviderRefID))

	if _, err := p.client.PaymentIntents.Cancel(txn.ProviderRefID, nil); err != nil {
		return &GatewayError{Provider: p.Name(), Err: err}
	}
	return nil
}

func (p *OnlineProvider) SyncTransaction(ctx context.Context, txn *models.Transaction) error {
	return syncIntent(p.client, p.Name(), txn)
}

// POSProvider takes payments on a society-run terminal: the intent is
// created up front and sits pending until the card is presented, so these
// transactions routinely need cancelling or syncing.
type POSProvider struct {
	client *client.API
	log    *logger.Logger
}

func NewPOSProvider(sc *client.API, log *logger.Logger) *POSProvider {
	return &POSProvider{client: sc, log: log}
}

func (p *POSProvider) Name() string       { return MethodPOS }
func (p *POSProvider) IsAutomatic() bool  { return false }
func (p *POSProvider) IsRefundable() bool { return true }

func (p *POSProvider) Pay(ctx context.Context, req PayRequest) (*models.Transaction, error) {
	p.log.LogPayment("STRIPE", req.PayableID, fmt.Sprintf("Creating terminal checkout for %d %s", req.Value, req.Currency))

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.Value),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		Description:        stripe.String(req.Reference),
		PaymentMethodTypes: []*string{stripe.String("card")},
		Metadata: map[string]string{
			"payable_kind": req.PayableKind,
			"payable_id":   req.PayableID,
		},
	}
	if req.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(req.IdempotencyKey)
	}

	pi, err := p.client.PaymentIntents.New(params)
	if err != nil {
		p.log.Error("STRIPE", fmt.Sprintf("Failed to create terminal checkout: %v", err))
		return nil, &GatewayError{Provider: p.Name(), Err: err}
	}

	now := time.Now()
	return &models.Transaction{
		ID:            utils.GenerateTransactionID(),
		PayableKind:   req.PayableKind,
		PayableID:     req.PayableID,
		Type:          models.TransactionPayment,
		Status:        mapIntentStatus(pi.Status),
		Value:         req.Value,
		AppFee:        req.AppFee,
		Currency:      req.Currency,
		ProviderName:  p.Name(),
		ProviderRefID: pi.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (p *POSProvider) Cancel(ctx context.Context, txn *models.Transaction) error {
	if txn.ProviderRefID == "" {
		return nil
	}
	if _, err := p.client.PaymentIntents.Cancel(txn.ProviderRefID, nil); err != nil {
		return &GatewayError{Provider: p.Name(), Err: err}
	}
	return nil
}

func (p *POSProvider) SyncTransaction(ctx context.Context, txn *models.Transaction) error {
	return syncIntent(p.client, p.Name(), txn)
}

// StripeRefundProvider reverses gateway payments through the Stripe refunds
// API.
type StripeRefundProvider struct {
	client *client.API
	log    *logger.Logger
}

func NewStripeRefundProvider(sc *client.API, log *logger.Logger) *StripeRefundProvider {
	return &StripeRefundProvider{client: sc, log: log}
}

func (p *StripeRefundProvider) Name() string { return "STRIPE_REFUND" }

func (p *StripeRefundProvider) Refund(ctx context.Context, req RefundRequest) (*models.Transaction, error) {
	p.log.LogPayment("REFUND", req.Original.ID, fmt.Sprintf("Refunding %d via Stripe", req.Value))

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.Original.ProviderRefID),
		Amount:        stripe.Int64(req.Value),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}

	refund, err := p.client.Refunds.New(params)
	if err != nil {
		p.log.Error("STRIPE", fmt.Sprintf("Refund failed for %s: %v", req.Original.ID, err))
		return nil, &GatewayError{Provider: p.Name(), Err: err}
	}

	now := time.Now()
	return &models.Transaction{
		ID:            utils.GenerateTransactionID(),
		PayableKind:   req.Original.PayableKind,
		PayableID:     req.Original.PayableID,
		Type:          models.TransactionRefund,
		Status:        mapRefundStatus(refund.Status),
		Value:         -req.Value,
		Currency:      req.Original.Currency,
		ProviderName:  p.Name(),
		ProviderRefID: refund.ID,
		OriginalID:    req.Original.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (p *StripeRefundProvider) SyncTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.ProviderRefID == "" {
		return nil
	}
	refund, err := p.client.Refunds.Get(txn.ProviderRefID, nil)
	if err != nil {
		return &GatewayError{Provider: p.Name(), Err: err}
	}
	txn.Status = mapRefundStatus(refund.Status)
	txn.UpdatedAt = time.Now()
	return nil
}

func syncIntent(sc *client.API, provider string, txn *models.Transaction) error {
	if txn.ProviderRefID == "" {
		return nil
	}
	pi, err := sc.PaymentIntents.Get(txn.ProviderRefID, nil)
	if err != nil {
		return &GatewayError{Provider: provider, Err: err}
	}
	txn.Status = mapIntentStatus(pi.Status)
	txn.UpdatedAt = time.Now()
	return nil
}

// mapIntentStatus collapses the gateway's intent statuses onto the three
// transaction states.
func mapIntentStatus(status stripe.PaymentIntentStatus) models.TransactionStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return models.TransactionCompleted
	case stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresCapture:
		return models.TransactionPending
	default:
		return models.TransactionFailed
	}
}

func mapRefundStatus(status stripe.RefundStatus) models.TransactionStatus {
	switch status {
	case stripe.RefundStatusSucceeded:
		return models.TransactionCompleted
	case stripe.RefundStatusPending, stripe.RefundStatusRequiresAction:
		return models.TransactionPending
	default:
		return models.TransactionFailed
	}
}
