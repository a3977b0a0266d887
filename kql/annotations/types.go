// Package annotations provides a low-overhead event system for
// tracking query execution timing. With a nil handler nothing is
// recorded.
package annotations

import (
	"sync"
	"time"
)

// Event name constants.
const (
	// Query lifecycle
	QueryInvoked   = "query/invoked"
	QueryCompleted = "query/completed"

	// Operator application
	OperatorApplied = "operator/applied"
)

// Event is a single timed annotation emitted during query execution.
type Event struct {
	Name    string
	Start   time.Time
	End     time.Time
	Latency time.Duration
	Data    map[string]interface{}
}

// Handler processes annotation events as they occur.
type Handler func(event Event)

// Collector accumulates events during one query execution.
type Collector struct {
	enabled bool
	handler Handler
	mu      sync.Mutex
	events  []Event
}

// NewCollector creates a collector; a nil handler disables it.
func NewCollector(handler Handler) *Collector {
	return &Collector{
		enabled: handler != nil,
		handler: handler,
	}
}

// Add records an event and forwards it to the handler.
func (c *Collector) Add(event Event) {
	if !c.enabled {
		return
	}
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	// Call the handler outside the lock.
	c.handler(event)
}

// AddTiming records an event spanning start to now.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if !c.enabled {
		return
	}
	end := time.Now()
	c.Add(Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	})
}

// GetDataMap returns a map for event data.
func (c *Collector) GetDataMap() map[string]interface{} {
	return make(map[string]interface{}, 4)
}

// Events returns a copy of all collected events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}
