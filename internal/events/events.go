// Package events publishes checkout domain events to an external broker.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
)

// Event types.
const (
	TypeSaleCompleted = "sale.completed"
	TypeTokenVerified = "token.verified"
	TypeTokenExpired  = "token.expired"
)

const publishTimeout = 5 * time.Second

// Event is the broker payload.
type Event struct {
	Type       string       `json:"type"`
	SaleID     string       `json:"sale_id"`
	TokenID    string       `json:"token_id"`
	Total      models.Money `json:"total,omitempty"`
	Units      int          `json:"units,omitempty"`
	OccurredAt time.Time    `json:"occurred_at"`
}

// Key partitions events so a sale's history stays ordered.
func (e Event) Key() string {
	return e.SaleID
}

func (e Event) encode() ([]byte, error) {
	return json.Marshal(e)
}

// SaleCompleted builds the event emitted after a committed checkout.
func SaleCompleted(sale models.SaleRecord) Event {
	return Event{
		Type:       TypeSaleCompleted,
		SaleID:     sale.ID,
		TokenID:    sale.TokenID,
		Total:      sale.Total,
		Units:      sale.ItemCount(),
		OccurredAt: sale.Timestamp,
	}
}

// TokenEvent builds a token lifecycle event.
func TokenEvent(eventType string, token models.ExitToken, at time.Time) Event {
	return Event{Type: eventType, SaleID: token.SaleID, TokenID: token.ID, OccurredAt: at}
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Emitter publishes in the background so broker latency never reaches the caller.
// Failures are logged and dropped.
type Emitter struct {
	publisher Publisher
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewEmitter wraps a publisher. A nil publisher behaves like Nop.
func NewEmitter(publisher Publisher, logger *zap.Logger) *Emitter {
	if publisher == nil {
		publisher = Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{publisher: publisher, logger: logger}
}

// Emit schedules the event for delivery.
func (e *Emitter) Emit(event Event) {
	if e == nil {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := e.publisher.Publish(ctx, event); err != nil {
			e.logger.Warn("event publish failed",
				zap.String("type", event.Type),
				zap.String("sale_id", event.SaleID),
				zap.Error(err),
			)
			return
		}
		e.logger.Debug("event published", zap.String("type", event.Type), zap.String("sale_id", event.SaleID))
	}()
}

// Wait blocks until in-flight events are delivered or dropped.
func (e *Emitter) Wait() {
	e.wg.Wait()
}

// Close drains pending events and closes the publisher.
func (e *Emitter) Close() error {
	e.wg.Wait()
	return e.publisher.Close()
}
