package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// PaymentEvent is published on every booking creation and payment status
// transition, and mirrored to the notifications topic for the email worker.
type PaymentEvent struct {
	Type          string    `json:"type"`
	BookingCode   string    `json:"booking_code"`
	OrderID       string    `json:"order_id,omitempty"`
	Email         string    `json:"email"`
	PackageName   string    `json:"package_name"`
	PaymentStatus string    `json:"payment_status"`
	Amount        int64     `json:"amount"`
	At            time.Time `json:"at"`
}

const (
	EventBookingCreated = "booking_created"
	EventPaymentSettled = "payment_settled"
	EventPaymentFailed  = "payment_failed"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 50 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
