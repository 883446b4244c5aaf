package events

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

type EventType string

const (
	EventTypeRequestSent      EventType = "request_sent"
	EventTypeResponseReceived EventType = "response_received"
	EventTypeTransportError   EventType = "transport_error"
	EventTypeSandboxError     EventType = "sandbox_error"
)

type Event interface {
	GetType() EventType
	GetSessionID() string
}

type RequestSentEvent struct {
	SessionID string `json:"sessionId"`
	Endpoint  string `json:"endpoint"`
	Method    string `json:"method"`
	Source    string `json:"source"`
	Payload   any    `json:"payload"`
}

func (e RequestSentEvent) GetType() EventType {
	return EventTypeRequestSent
}

func (e RequestSentEvent) GetSessionID() string {
	return e.SessionID
}

type ResponseReceivedEvent struct {
	SessionID  string `json:"sessionId"`
	Method     string `json:"method"`
	StatusCode int    `json:"statusCode"`
	DurationMS int64  `json:"durationMs"`
	Response   any    `json:"response"`
	Warning    string `json:"warning,omitempty"`
}

func (e ResponseReceivedEvent) GetType() EventType {
	return EventTypeResponseReceived
}

func (e ResponseReceivedEvent) GetSessionID() string {
	return e.SessionID
}

type TransportErrorEvent struct {
	SessionID  string `json:"sessionId"`
	Method     string `json:"method"`
	StatusCode int    `json:"statusCode"`
	StatusText string `json:"statusText,omitempty"`
	Error      string `json:"error"`
}

func (e TransportErrorEvent) GetType() EventType {
	return EventTypeTransportError
}

func (e TransportErrorEvent) GetSessionID() string {
	return e.SessionID
}

type SandboxErrorEvent struct {
	SessionID string `json:"sessionId"`
	Error     string `json:"error"`
}

func (e SandboxErrorEvent) GetType() EventType {
	return EventTypeSandboxError
}

func (e SandboxErrorEvent) GetSessionID() string {
	return e.SessionID
}

const subscriberBuffer = 100

type subscriber struct {
	sessionID string
	ch        chan Event
	mu        sync.Mutex
	closed    bool
}

func (s *subscriber) send(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- event:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Envelope is the wire form of an event.
type Envelope struct {
	Type EventType `json:"type"`
	Data Event     `json:"data"`
}

func NewEnvelope(event Event) Envelope {
	return Envelope{Type: event.GetType(), Data: event}
}

// Forwarder receives every published event, whatever the session.
type Forwarder interface {
	Forward(event Event) error
}

// EventBus fans session events out to subscribers of that session.
// Slow subscribers lose events rather than stalling a dispatch.
type EventBus struct {
	lastID        atomic.Uint64
	subscribers   *xsync.MapOf[uint64, *subscriber]
	dropped       *xsync.Counter
	forwardMu     sync.RWMutex
	forwarders    []Forwarder
	forwardErrors *xsync.Counter
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers:   xsync.NewMapOf[uint64, *subscriber](),
		dropped:       xsync.NewCounter(),
		forwardErrors: xsync.NewCounter(),
	}
}

func (eb *EventBus) AddForwarder(f Forwarder) {
	eb.forwardMu.Lock()
	defer eb.forwardMu.Unlock()
	eb.forwarders = append(eb.forwarders, f)
}

// Subscribe returns a channel of events for sessionID and a func that
// closes it. The cancel func is safe to call more than once.
func (eb *EventBus) Subscribe(sessionID string) (<-chan Event, func()) {
	id := eb.lastID.Add(1)
	sub := &subscriber{sessionID: sessionID, ch: make(chan Event, subscriberBuffer)}
	eb.subscribers.Store(id, sub)
	return sub.ch, func() {
		if s, loaded := eb.subscribers.LoadAndDelete(id); loaded {
			s.close()
		}
	}
}

func (eb *EventBus) Publish(event Event) {
	eb.subscribers.Range(func(_ uint64, sub *subscriber) bool {
		if sub.sessionID == event.GetSessionID() && !sub.send(event) {
			eb.dropped.Inc()
		}
		return true
	})

	eb.forwardMu.RLock()
	defer eb.forwardMu.RUnlock()
	for _, f := range eb.forwarders {
		if err := f.Forward(event); err != nil {
			eb.forwardErrors.Inc()
			slog.Warn("Failed to forward event", "type", event.GetType(), "session", event.GetSessionID(), "error", err)
		}
	}
}

// CloseSession drops every subscription for sessionID.
func (eb *EventBus) CloseSession(sessionID string) {
	eb.subscribers.Range(func(id uint64, sub *subscriber) bool {
		if sub.sessionID == sessionID {
			if s, loaded := eb.subscribers.LoadAndDelete(id); loaded {
				s.close()
			}
		}
		return true
	})
}

func (eb *EventBus) Dropped() int64 {
	return eb.dropped.Value()
}

func (eb *EventBus) ForwardErrors() int64 {
	return eb.forwardErrors.Value()
}
