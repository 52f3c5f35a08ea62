// Package events publishes settlement outcomes to a RabbitMQ topic exchange
// so downstream consumers (mailers, analytics) learn about paid orders.
package events

import (
	"context"
	"time"

	"buydeals/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Routing keys.
const (
	PaymentCompleted = "payment.completed"
	PaymentFailed    = "payment.failed"
)

// Publisher sends an event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, data any) error
	Close() error
}

// Message is the envelope written to the exchange.
type Message struct {
	Pattern string `json:"pattern"`
	Data    any    `json:"data"`
	ID      string `json:"id,omitempty"`
}

// PaymentSettled describes a payment order leaving the pending state.
type PaymentSettled struct {
	OrderID          string              `json:"orderId"`
	UserID           uuid.UUID           `json:"userId"`
	Provider         string              `json:"provider"`
	Status           model.PaymentStatus `json:"status"`
	Amount           decimal.Decimal     `json:"amount"`
	Currency         string              `json:"currency"`
	TransactionID    string              `json:"transactionId"`
	PointsEarned     int                 `json:"pointsEarned"`
	FulfillmentError string              `json:"fulfillmentError,omitempty"`
	SettledAt        time.Time           `json:"settledAt"`
}

// RoutingKey returns the key the event is published under.
func (e PaymentSettled) RoutingKey() string {
	if e.Status == model.PaymentStatusCompleted {
		return PaymentCompleted
	}
	return PaymentFailed
}

type nopPublisher struct{}

// NewNopPublisher returns a publisher that drops every event.
func NewNopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, string, any) error { return nil }
func (nopPublisher) Close() error                               { return nil }
