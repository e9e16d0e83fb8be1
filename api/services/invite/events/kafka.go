// Package events publishes invite ledger mutations to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	inviteapp "github.com/tbeaudouin05/stripe-storefront/api/services/invite/app"
)

// Message is the wire form of an invite event.
type Message struct {
	Type       string `json:"type"`
	ProductID  string `json:"productId"`
	OrderID    string `json:"orderId"`
	Buyer      string `json:"buyer"`
	Username   string `json:"username"`
	Status     string `json:"status"`
	Previous   string `json:"previousStatus,omitempty"`
	Actor      string `json:"actor"`
	OccurredAt int64  `json:"occurredAt"`
}

// NewMessage converts an event to its wire form.
func NewMessage(e inviteapp.Event) Message {
	return Message{
		Type:       string(e.Type),
		ProductID:  e.Record.ProductID,
		OrderID:    e.Record.OrderID,
		Buyer:      e.Record.Buyer.String(),
		Username:   e.Record.Username,
		Status:     string(e.Record.Status),
		Previous:   string(e.Previous),
		Actor:      e.Actor.String(),
		OccurredAt: e.OccurredAt.UnixMilli(),
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per event, keyed by the record key so a record's events
// stay ordered within a partition.
type KafkaPublisher struct {
	w messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 5 * time.Second,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e inviteapp.Event) error {
	value, err := json.Marshal(NewMessage(e))
	if err != nil {
		return fmt.Errorf("encode invite event: %w", err)
	}
	if err := p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Record.Key.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
	}); err != nil {
		return fmt.Errorf("write invite event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }
