package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/USA-RedDragon/rpc-tester/internal/events"
	"github.com/USA-RedDragon/rpc-tester/internal/metrics"
	"github.com/USA-RedDragon/rpc-tester/internal/tester"
	"github.com/USA-RedDragon/rpc-tester/internal/websocket"
	gorillaWebsocket "github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"
)

// EventsWebsocket streams a session's events to the browser.
type EventsWebsocket struct {
	websocket.Websocket
	bus              *events.EventBus
	metrics          *metrics.Metrics
	connectedClients *xsync.Counter
}

func CreateEventsWebsocket(bus *events.EventBus, metrics *metrics.Metrics) *EventsWebsocket {
	return &EventsWebsocket{
		bus:              bus,
		metrics:          metrics,
		connectedClients: xsync.NewCounter(),
	}
}

func (c *EventsWebsocket) Connected() int64 {
	return c.connectedClients.Value()
}

func (c *EventsWebsocket) OnMessage(_ context.Context, _ *http.Request, _ websocket.Writer, msg []byte, msgType int, session *tester.Session) {
	// The stream is one way
	slog.Debug("Ignoring websocket message", "session", session.ID(), "type", msgType, "size", len(msg))
}

func (c *EventsWebsocket) OnConnect(ctx context.Context, _ *http.Request, w websocket.Writer, session *tester.Session) {
	eventsChannel, cancel := c.bus.Subscribe(session.ID())
	c.connectedClients.Inc()
	c.metrics.IncrementEventSubscriptions()
	slog.Info("Events websocket connected", "session", session.ID())

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case event, more := <-eventsChannel:
				if !more {
					// Session closed
					w.Error("session closed")
					return
				}
				eventDataJSON, err := json.Marshal(events.NewEnvelope(event))
				if err != nil {
					slog.Warn("Error marshalling event data", "error", err)
					continue
				}
				w.WriteMessage(websocket.Message{
					Type: gorillaWebsocket.TextMessage,
					Data: eventDataJSON,
				})
			}
		}
	}()
}

func (c *EventsWebsocket) OnDisconnect(_ context.Context, _ *http.Request, session *tester.Session) {
	c.connectedClients.Dec()
	c.metrics.DecrementEventSubscriptions()
	slog.Info("Events websocket disconnected", "session", session.ID())
}
