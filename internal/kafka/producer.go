package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-paycom/internal/logger"
	"ms-paycom/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer  messageWriter
	Brokers []string
	Topic   string
	log     *logger.Logger
}

// NewProducer writes payment events to topic. The writer has no fixed topic
// so Publish can target any topic.
func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: 10 * time.Second,
	}
	return &Producer{Writer: writer, Brokers: brokers, Topic: topic, log: log}
}

// Publish writes one message. If the topic does not exist yet it is created
// and the write is retried once.
func (p *Producer) Publish(topic, key string, value []byte) error {
	msg := kafka.Message{Topic: topic, Key: []byte(key), Value: value}
	err := p.Writer.WriteMessages(context.Background(), msg)
	if err == nil {
		p.log.LogKafka("PUBLISH", topic, key)
		return nil
	}
	if !errors.Is(err, kafka.UnknownTopicOrPartition) || len(p.Brokers) == 0 {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.log.Warn("KAFKA", fmt.Sprintf("Topic %s missing, creating it", topic))
	if cerr := CreateTopicIfNotExists(p.Brokers, topic, p.log); cerr != nil {
		return fmt.Errorf("create topic %s: %w", topic, cerr)
	}
	if err := p.Writer.WriteMessages(context.Background(), msg); err != nil {
		return fmt.Errorf("publish to %s after topic creation: %w", topic, err)
	}
	p.log.LogKafka("PUBLISH", topic, key+" (after topic creation)")
	return nil
}

// PublishPaymentEvent streams a payment event keyed by payment id, so events
// for one payment stay ordered.
func (p *Producer) PublishPaymentEvent(event models.PaymentEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Publish(p.Topic, event.PaymentID, msgBytes)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
