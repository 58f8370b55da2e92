package email

import (
	"context"
	"fmt"

	"github.com/pandutama/tripbooking/internal/kafka"
)

// Sender turns payment events into customer notifications. The transport is
// a stub; the worker owns delivery.
type Sender struct{}

func NewSender() *Sender {
	return &Sender{}
}

func (s *Sender) Send(ctx context.Context, event kafka.PaymentEvent) error {
	switch event.Type {
	case kafka.EventPaymentSettled:
		fmt.Printf("send confirmation to %s: booking %s paid (%s), voucher available\n", event.Email, event.BookingCode, event.PaymentStatus)
	case kafka.EventPaymentFailed:
		fmt.Printf("send failure notice to %s: booking %s payment %s, retry available\n", event.Email, event.BookingCode, event.PaymentStatus)
	default:
		fmt.Printf("send notification to %s about %s for booking %s\n", event.Email, event.Type, event.BookingCode)
	}
	return nil
}
