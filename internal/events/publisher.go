// Package events publishes payment session outcomes for downstream
// consumers such as reporting and loyalty.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bookstore-pos/internal/domain"
	"github.com/segmentio/kafka-go"
)

const EventPaymentSettled = "PaymentSettled"

// PaymentSettled is the message body for every terminal session.
type PaymentSettled struct {
	SessionID    string               `json:"sessionId"`
	OrderCode    string               `json:"orderCode,omitempty"`
	EmployeeCode string               `json:"employeeCode"`
	Method       domain.PaymentMethod `json:"method"`
	State        domain.PaymentState  `json:"state"`
	Amount       int64                `json:"amount"`
	Reason       string               `json:"reason,omitempty"`
	SettledAt    time.Time            `json:"settledAt"`
}

type Publisher interface {
	PublishPaymentSettled(ctx context.Context, evt PaymentSettled) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireOne,
	}
	return &KafkaPublisher{writer: w}
}

func (p *KafkaPublisher) PublishPaymentSettled(ctx context.Context, evt PaymentSettled) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal payment event: %w", err)
	}
	key := evt.OrderCode
	if key == "" {
		key = evt.SessionID
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventPaymentSettled)},
			{Key: "state", Value: []byte(evt.State)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish payment event %s: %w", evt.SessionID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop drops every event. Used when no brokers are configured.
type Nop struct{}

func (Nop) PublishPaymentSettled(context.Context, PaymentSettled) error { return nil }

func (Nop) Close() error { return nil }
