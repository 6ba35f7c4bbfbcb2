// Package notify fans out stock and availability signals to interested
// collaborators. The deduction core only emits events; formatting and
// delivery (email, SMS, dashboards) belong to the consumers.
package notify

import (
	"log"
	"sync"
	"time"
)

// EventType represents the kind of signal being emitted
type EventType string

const (
	// Signal types
	EventLowStock            EventType = "low_stock"
	EventOutOfStock          EventType = "out_of_stock"
	EventStockRestored       EventType = "stock_restored"
	EventAvailabilityChanged EventType = "availability_changed"
)

// Event represents a single outbound signal
type Event struct {
	Type         EventType `json:"type"`
	Ingredient   string    `json:"ingredient,omitempty"`
	Dish         string    `json:"dish,omitempty"`
	CurrentStock float64   `json:"current_stock,omitempty"`
	MinStock     float64   `json:"min_stock,omitempty"`
	Available    bool      `json:"available,omitempty"`
	At           time.Time `json:"at"`
}

// Sink consumes emitted events. Implementations must not block for long;
// slow delivery belongs behind the sink, not in the emitter's call path.
type Sink interface {
	Publish(event Event)
}

// Dispatcher fans a published event out to every registered sink
type Dispatcher struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Register adds a sink to the fan-out set
func (d *Dispatcher) Register(sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, sink)
}

// Publish delivers the event to every registered sink
func (d *Dispatcher) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, sink := range d.sinks {
		sink.Publish(event)
	}
}

// LogSink writes events to the process log, the minimal operator-visible sink
type LogSink struct{}

// Publish logs the event
func (LogSink) Publish(event Event) {
	switch event.Type {
	case EventAvailabilityChanged:
		log.Printf("availability changed: dish=%s available=%v", event.Dish, event.Available)
	default:
		log.Printf("stock signal: type=%s ingredient=%s current=%.2f min=%.2f",
			event.Type, event.Ingredient, event.CurrentStock, event.MinStock)
	}
}
