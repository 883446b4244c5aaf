package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSForwarder publishes every event to <subject>.<session id>.
type NATSForwarder struct {
	conn    *nats.Conn
	subject string
}

func NewNATSForwarder(url, subject string) (*NATSForwarder, error) {
	conn, err := nats.Connect(url, nats.Name("rpc-tester"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSForwarder{conn: conn, subject: subject}, nil
}

func (n *NATSForwarder) Forward(event Event) error {
	data, err := json.Marshal(NewEnvelope(event))
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return n.conn.Publish(SubjectFor(n.subject, event.GetSessionID()), data)
}

// Close flushes pending publishes before disconnecting.
func (n *NATSForwarder) Close() error {
	return n.conn.Drain()
}

func SubjectFor(prefix, sessionID string) string {
	return prefix + "." + sessionID
}
