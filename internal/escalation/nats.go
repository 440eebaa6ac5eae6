package escalation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// natsPublisher is the part of *nats.Conn the NATS channel uses.
type natsPublisher interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATS publishes the alert on a subject.
type NATS struct {
	name    string
	conn    natsPublisher
	subject string
}

// NewNATS creates a NATS channel.
func NewNATS(name string, conn natsPublisher, subject string) *NATS {
	return &NATS{name: name, conn: conn, subject: subject}
}

// Name implements Broadcaster.
func (n *NATS) Name() string { return n.name }

type natsAlert struct {
	Text   string `json:"text"`
	SentAt string `json:"sent_at"`
}

// Send implements Broadcaster. The flush makes a dead connection show up as
// a failed outcome instead of a silently buffered message.
func (n *NATS) Send(ctx context.Context, text string) error {
	data, err := json.Marshal(natsAlert{Text: text, SentAt: time.Now().UTC().Format(time.RFC3339Nano)})
	if err != nil {
		return fmt.Errorf("marshal nats payload: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", n.subject, err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	return nil
}
