package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"box-office/internal/logger"
	"box-office/internal/models"
	"box-office/internal/payable"
)

type Consumer struct {
	consumer sarama.ConsumerGroup
	topics   []string
	log      *logger.Logger
}

func NewConsumer(brokers []string, groupID string, log *logger.Logger) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	consumer, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return &Consumer{
		consumer: consumer,
		topics:   []string{refundTaskTopic},
		log:      log,
	}, nil
}

// ConsumeRefundTasks drains the refund task topic, executing each task
// against the payable service until the context is cancelled.
func (c *Consumer) ConsumeRefundTasks(ctx context.Context, svc *payable.Service) error {
	handler := &RefundTaskHandler{Service: svc, Log: c.log}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.consumer.Consume(ctx, c.topics, handler); err != nil {
				c.log.Error("KAFKA", fmt.Sprintf("Error consuming refund tasks: %v", err))
				return err
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}

// RefundTaskHandler is exported for testing purposes
type RefundTaskHandler struct {
	Service *payable.Service
	Log     *logger.Logger
}

// Setup is called before consuming starts
func (h *RefundTaskHandler) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup is called after consuming ends
func (h *RefundTaskHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim processes refund task messages. A task that is no longer
// refundable is marked consumed and skipped rather than retried; any other
// failure leaves the message unmarked so the group redelivers it.
func (h *RefundTaskHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var task models.RefundTask
		if err := json.Unmarshal(message.Value, &task); err != nil {
			h.Log.Error("KAFKA", fmt.Sprintf("Failed to unmarshal refund task: %v", err))
			session.MarkMessage(message, "")
			continue
		}

		if err := h.Handle(session.Context(), &task); err != nil {
			var notRefundable *payable.CantBeRefundedError
			if errors.As(err, &notRefundable) {
				h.Log.Warn("KAFKA", fmt.Sprintf("Skipping refund task for transaction %s: %s", task.TransactionID, notRefundable.Message))
				session.MarkMessage(message, "")
				continue
			}
			h.Log.Error("KAFKA", fmt.Sprintf("Failed to process refund task for transaction %s: %v", task.TransactionID, err))
			continue
		}

		session.MarkMessage(message, "")
	}

	return nil
}

// Handle executes a single refund task.
func (h *RefundTaskHandler) Handle(ctx context.Context, task *models.RefundTask) error {
	h.Log.LogKafka("CONSUMED", refundTaskTopic, fmt.Sprintf("Processing refund task for transaction %s", task.TransactionID))
	return h.Service.ProcessRefundTask(ctx, task)
}
