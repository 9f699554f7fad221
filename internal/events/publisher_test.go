package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"bookstore-pos/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestPublishPaymentSettled(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}
	evt := PaymentSettled{
		SessionID:    "s-1",
		OrderCode:    "HD001",
		EmployeeCode: "NV001",
		Method:       domain.PaymentQR,
		State:        domain.PaymentExpired,
		Amount:       153900,
		Reason:       "payment window expired",
		SettledAt:    time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishPaymentSettled(context.Background(), evt))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "HD001", string(msg.Key))
	assert.Contains(t, msg.Headers, kafka.Header{Key: "event_type", Value: []byte(EventPaymentSettled)})
	assert.Contains(t, msg.Headers, kafka.Header{Key: "state", Value: []byte("Expired")})

	var got PaymentSettled
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, evt, got)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishKeysBySessionWithoutOrder(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}
	require.NoError(t, p.PublishPaymentSettled(context.Background(), PaymentSettled{SessionID: "s-2", State: domain.PaymentCancelled}))
	assert.Equal(t, "s-2", string(w.msgs[0].Key))
}

func TestPublishWriterError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}}
	err := p.PublishPaymentSettled(context.Background(), PaymentSettled{SessionID: "s-3"})
	assert.ErrorContains(t, err, "broker down")
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.PublishPaymentSettled(context.Background(), PaymentSettled{}))
	assert.NoError(t, p.Close())
}
