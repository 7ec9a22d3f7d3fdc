package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-paycom/internal/logger"
	"ms-paycom/internal/models"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd models.PaymentCommand) error
}

type Consumer struct {
	reader messageReader
	topic  string
	log    *logger.Logger
}

// NewConsumer creates a new Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, topic: topic, log: log}
}

// Start reads payment commands until ctx is done. Malformed messages and
// failed commands are logged and skipped.
func (c *Consumer) Start(ctx context.Context, handler CommandHandler) {
	c.log.LogKafka("CONSUME", c.topic, "consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.log.LogKafka("CONSUME", c.topic, "consumer stopped")
				return
			}
			c.log.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			continue
		}

		if err := c.handleMessage(ctx, msg, handler); err != nil {
			c.log.Warn("KAFKA", fmt.Sprintf("Skipping message at offset %d: %v", msg.Offset, err))
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message, handler CommandHandler) error {
	var cmd models.PaymentCommand
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}
	if cmd.PaymentID == "" {
		return errors.New("command has no payment_id")
	}

	c.log.LogKafka("CONSUME", c.topic, fmt.Sprintf("%s for payment %s", cmd.Operation, cmd.PaymentID))
	if err := handler.HandleCommand(ctx, cmd); err != nil {
		return fmt.Errorf("%s payment %s: %w", cmd.Operation, cmd.PaymentID, err)
	}
	return nil
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
