package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"

	"github.com/diagnosis/scanlogin/pkg/logger"
)

const (
	subjectPrefix   = "scanlogin.ticket.confirmed."
	subjectWildcard = "scanlogin.ticket.confirmed.>"
)

// NATSNotifier fans confirmations across service instances. Publishes go to
// a per-ticket subject; a single wildcard subscription feeds every received
// event into the local hub. NATS delivers loopback on the same connection,
// so the publishing instance's own waiters need no special case.
type NATSNotifier struct {
	conn *nats.Conn
	hub  *Hub
	sub  *nats.Subscription
}

func NewNATSNotifier(url string, hub *Hub) (*NATSNotifier, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	n := &NATSNotifier{conn: conn, hub: hub}

	n.sub, err = conn.Subscribe(subjectWildcard, n.handle)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to ticket events: %w", err)
	}

	return n, nil
}

func (n *NATSNotifier) handle(msg *nats.Msg) {
	var ev Event
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		logger.Warn("Dropping malformed ticket event", "subject", msg.Subject, "error", err)
		return
	}

	id := strings.TrimPrefix(msg.Subject, subjectPrefix)
	if id == "" {
		return
	}
	n.hub.Publish(context.Background(), id, ev)
}

func (n *NATSNotifier) Subscribe(id string) (<-chan Event, func()) {
	return n.hub.Subscribe(id)
}

func (n *NATSNotifier) Publish(ctx context.Context, id string, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket event: %w", err)
	}

	logger.DebugContext(ctx, "Publishing ticket event", "subject", subjectPrefix+id)

	return n.conn.Publish(subjectPrefix+id, payload)
}

func (n *NATSNotifier) Close() error {
	if n.sub != nil {
		_ = n.sub.Unsubscribe()
	}
	n.conn.Close()
	return nil
}
