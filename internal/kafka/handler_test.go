package kafka_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"box-office/internal/kafka"
	"box-office/internal/logger"
	"box-office/internal/models"
	"box-office/internal/payable"
	"box-office/internal/providers"
	"box-office/internal/storage"
)

func newRefundTaskHandler(t *testing.T) (*kafka.RefundTaskHandler, *storage.InMemoryStore) {
	t.Helper()

	store := storage.NewInMemoryStore()

	registry := providers.NewRegistry()
	registry.RegisterPayment(providers.NewCardProvider())
	registry.RegisterRefund(providers.MethodCard, providers.NewManualRefundProvider())

	kinds := payable.NewKindRegistry()
	kinds.Register(models.PayableKindBooking, func(id string) (payable.Payable, error) {
		return store.GetBooking(id)
	})

	log := logger.NewLogger()
	svc := payable.NewService(store, registry, kinds, log)

	return &kafka.RefundTaskHandler{Service: svc, Log: log}, store
}

func TestRefundTaskHandlerRefundsPayment(t *testing.T) {
	handler, store := newRefundTaskHandler(t)

	booking := &models.Booking{
		ID: "bk_1", Reference: "ABC-123456", PerformanceID: "perf-1",
		UserID: "user-1", UserEmail: "user@example.com",
		Status: models.StatusRefundProcessing,
	}
	require.NoError(t, store.SaveBooking(booking))
	require.NoError(t, store.SaveTransaction(&models.Transaction{
		ID: "txn-1", PayableKind: models.PayableKindBooking, PayableID: booking.ID,
		Type: models.TransactionPayment, Status: models.TransactionCompleted,
		Value: 2500, Currency: "GBP", ProviderName: providers.MethodCard,
		CreatedAt: time.Now(),
	}))

	task := &models.RefundTask{
		TransactionID: "txn-1",
		PayableKind:   models.PayableKindBooking,
		PayableID:     booking.ID,
		AuthorizerID:  "admin-1",
		QueuedAt:      time.Now(),
	}

	require.NoError(t, handler.Handle(context.Background(), task))

	stored, err := store.GetBooking(booking.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRefunded, stored.Status)

	// A duplicate delivery is reported as not-refundable so the consumer
	// marks it consumed instead of retrying.
	err = handler.Handle(context.Background(), task)
	var cantRefund *payable.CantBeRefundedError
	require.ErrorAs(t, err, &cantRefund)
}

// TestRefundTaskConsumerIntegration exercises the consumer group against a
// real Kafka broker and is skipped when one is not available.
func TestRefundTaskConsumerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	kafkaBrokers := os.Getenv("KAFKA_BROKERS")
	if kafkaBrokers == "" {
		kafkaBrokers = "localhost:29092" // Default from docker-compose
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Net.DialTimeout = 5 * time.Second

	saramaProducer, err := sarama.NewSyncProducer([]string{kafkaBrokers}, config)
	if err != nil {
		t.Skip("Skipping test because Kafka is not available:", err)
		return
	}
	defer saramaProducer.Close()

	log := logger.NewLogger()

	producer, err := kafka.NewProducer([]string{kafkaBrokers}, false, log)
	require.NoError(t, err)
	defer producer.Close()

	handler, store := newRefundTaskHandler(t)

	booking := &models.Booking{
		ID: "bk_int", Reference: "INT-000001", PerformanceID: "perf-1",
		UserID: "user-1", UserEmail: "user@example.com",
		Status: models.StatusRefundProcessing,
	}
	require.NoError(t, store.SaveBooking(booking))
	require.NoError(t, store.SaveTransaction(&models.Transaction{
		ID: "txn-int", PayableKind: models.PayableKindBooking, PayableID: booking.ID,
		Type: models.TransactionPayment, Status: models.TransactionCompleted,
		Value: 2500, Currency: "GBP", ProviderName: providers.MethodCard,
		CreatedAt: time.Now(),
	}))

	require.NoError(t, producer.EnqueueRefund(&models.RefundTask{
		TransactionID: "txn-int",
		PayableKind:   models.PayableKindBooking,
		PayableID:     booking.ID,
		AuthorizerID:  "admin-1",
		QueuedAt:      time.Now(),
	}))

	consumer, err := kafka.NewConsumer([]string{kafkaBrokers}, "box-office-test", log)
	require.NoError(t, err)
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	go func() {
		err := consumer.ConsumeRefundTasks(ctx, handler.Service)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			t.Logf("consumer stopped: %v", err)
		}
	}()

	deadline := time.After(15 * time.Second)
	for {
		stored, err := store.GetBooking(booking.ID)
		require.NoError(t, err)
		if stored.Status == models.StatusRefunded {
			return
		}
		select {
		case <-deadline:
			t.Fatal("refund task was not consumed in time")
		case <-time.After(250 * time.Millisecond):
		}
	}
}
