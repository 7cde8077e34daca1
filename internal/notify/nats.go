package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS publishes events on their subject.
type NATS struct {
	conn *nats.Conn
}

func NewNATS(url, name string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &NATS{conn: nc}, nil
}

func (n *NATS) Publish(_ context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return n.conn.Publish(e.Subject, body)
}

func (n *NATS) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Drain()
}
