package providers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"box-office/internal/models"
	"box-office/internal/providers"
)

func TestManualProvidersPay(t *testing.T) {
	req := providers.PayRequest{
		PayableKind: models.PayableKindBooking,
		PayableID:   "bk_1",
		Value:       2500,
		AppFee:      100,
		Currency:    "GBP",
	}

	cash := providers.NewCashProvider()
	assert.Equal(t, providers.MethodCash, cash.Name())
	assert.False(t, cash.IsRefundable())

	txn, err := cash.Pay(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionCompleted, txn.Status)
	assert.Equal(t, models.TransactionPayment, txn.Type)
	assert.Equal(t, int64(2500), txn.Value)
	assert.Equal(t, providers.MethodCash, txn.ProviderName)

	card := providers.NewCardProvider()
	assert.True(t, card.IsRefundable())
}

func TestManualRefundNegatesValue(t *testing.T) {
	original := &models.Transaction{
		ID:          "txn-1",
		PayableKind: models.PayableKindBooking,
		PayableID:   "bk_1",
		Type:        models.TransactionPayment,
		Status:      models.TransactionCompleted,
		Value:       2500,
		Currency:    "GBP",
	}

	refund, err := providers.NewManualRefundProvider().Refund(context.Background(), providers.RefundRequest{
		Value:    2500,
		Original: original,
	})
	require.NoError(t, err)

	assert.Equal(t, models.TransactionRefund, refund.Type)
	assert.Equal(t, models.TransactionCompleted, refund.Status)
	assert.Equal(t, int64(-2500), refund.Value)
	assert.Equal(t, original.PayableID, refund.PayableID)
	assert.Equal(t, original.Currency, refund.Currency)
}

func TestRegistryLookups(t *testing.T) {
	registry := providers.NewRegistry()
	registry.RegisterPayment(providers.NewCashProvider())
	registry.RegisterPayment(providers.NewCardProvider())

	refunds := providers.NewManualRefundProvider()
	registry.RegisterRefund(providers.MethodCard, refunds)

	p, err := registry.PaymentProvider(providers.MethodCash)
	require.NoError(t, err)
	assert.Equal(t, providers.MethodCash, p.Name())

	_, err = registry.PaymentProvider("BARTER")
	assert.ErrorIs(t, err, providers.ErrUnknownProvider)

	// Refund providers resolve both by the payment method they back and by
	// their own name, so refund transactions can be synced later.
	r, err := registry.RefundProviderFor(providers.MethodCard)
	require.NoError(t, err)
	assert.Equal(t, refunds.Name(), r.Name())

	r, err = registry.RefundProviderFor(refunds.Name())
	require.NoError(t, err)
	assert.Equal(t, refunds.Name(), r.Name())

	_, err = registry.RefundProviderFor(providers.MethodCash)
	assert.ErrorIs(t, err, providers.ErrUnknownProvider)

	assert.Equal(t, []string{providers.MethodCard, providers.MethodCash}, registry.PaymentMethods())
}

func TestGatewayErrorWrapping(t *testing.T) {
	cause := errors.New("card declined")
	err := &providers.GatewayError{Provider: "ONLINE", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "ONLINE")
}
