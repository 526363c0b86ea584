package observability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/events"
)

// Metrics provides basic in-memory counters for requests, error codes and
// ticket lifecycle events.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	ticketEvents map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		ticketEvents: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordTicketEvent counts one published lifecycle event.
func (m *Metrics) RecordTicketEvent(eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticketEvents[eventType]++
}

// TicketEventCount reports how many events of the given type were published.
func (m *Metrics) TicketEventCount(eventType string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticketEvents[eventType]
}

// CountLifecycleEvents subscribes the metrics counters to every lifecycle
// event type on the dispatcher.
func CountLifecycleEvents(dispatcher events.Dispatcher, m *Metrics) {
	for _, eventType := range events.AllTypes {
		eventType := eventType
		dispatcher.Subscribe(eventType, func(_ context.Context, _ events.Event) error {
			m.RecordTicketEvent(string(eventType))
			return nil
		})
	}
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
