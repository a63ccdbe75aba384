// Package events publishes order lifecycle events on a RabbitMQ topic
// exchange so external consumers (reporting, CRM) can follow the pipeline.
// Publishing is best-effort; the order flow never depends on the broker.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	RKOrderCreated          = "order.created"
	RKOrderAwaitingApproval = "order.awaiting_approval"
	RKOrderPaid             = "order.paid"
	RKOrderRejected         = "order.rejected"
)

type OrderEvent struct {
	OrderID  int64  `json:"order_id"`
	BuyerID  int64  `json:"buyer_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Total    string `json:"total,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Manifest string `json:"manifest,omitempty"`
}

type Publisher interface {
	Publish(routingKey string, payload any)
	Close()
}

type Rabbit struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewRabbit(url, exchange string) (*Rabbit, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &Rabbit{conn: conn, ch: ch, exchange: exchange}, nil
}

func (r *Rabbit) Close() {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		_ = r.conn.Close()
	}
}

func (r *Rabbit) Publish(routingKey string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Str("rk", routingKey).Err(err).Msg("event marshal failed")
		return
	}
	err = r.ch.PublishWithContext(context.Background(), r.exchange, routingKey, false, false, amqp.Publishing{
		MessageId:   uuid.NewString(),
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        body,
	})
	if err != nil {
		log.Warn().Str("rk", routingKey).Err(err).Msg("event publish failed")
	}
}

// Nop is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(string, any) {}
func (Nop) Close()              {}
