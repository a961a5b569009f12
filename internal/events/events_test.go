package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mamadbah2/selfcheckout/internal/domain/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
	closed bool
}

func (r *recordingPublisher) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Close() error {
	r.closed = true
	return nil
}

func TestSaleCompleted(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sale := models.SaleRecord{
		ID:        "S-1",
		Timestamp: at,
		Items:     []models.CartItem{{Product: models.Product{ID: "1"}, Quantity: 3}},
		Total:     270,
		TokenID:   "TKN-1",
	}

	e := SaleCompleted(sale)
	assert.Equal(t, TypeSaleCompleted, e.Type)
	assert.Equal(t, "S-1", e.Key())
	assert.Equal(t, 3, e.Units)

	data, err := e.encode()
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "2.70", decoded["total"])
	assert.Equal(t, "TKN-1", decoded["token_id"])
}

func TestEmitter_DeliversInBackground(t *testing.T) {
	pub := &recordingPublisher{}
	em := NewEmitter(pub, nil)

	em.Emit(Event{Type: TypeTokenVerified, SaleID: "S-1"})
	em.Emit(Event{Type: TypeTokenExpired, SaleID: "S-2"})
	require.NoError(t, em.Close())

	assert.Len(t, pub.events, 2)
	assert.True(t, pub.closed)
}

func TestEmitter_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	em := NewEmitter(&recordingPublisher{err: errors.New("broker down")}, zap.New(core))

	em.Emit(Event{Type: TypeSaleCompleted, SaleID: "S-1"})
	em.Wait()

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "event publish failed", logs.All()[0].Message)
}

func TestEmitter_NilSafe(t *testing.T) {
	var em *Emitter
	em.Emit(Event{Type: TypeSaleCompleted})

	assert.NoError(t, NewEmitter(nil, nil).Close())
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, splitBrokers(" a:9092, ,b:9092 "))
	_, err := NewKafkaPublisher(" , ", "topic")
	assert.Error(t, err)
}
