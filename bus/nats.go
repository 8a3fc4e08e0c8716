package bus

import (
	"encoding/json"
	"fmt"
	"time"

	natsd "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// NatsBus publishes catalog events over NATS so multiple api replicas
// share one event stream.
type NatsBus struct {
	nc  *nats.Conn
	srv *natsd.Server
}

// ConnectNats dials an external NATS server.
func ConnectNats(url string) (*NatsBus, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NatsBus{nc: nc}, nil
}

// NewEmbeddedNats starts an in-process nats server and connects to it.
// Used when the service runs standalone without external infrastructure.
func NewEmbeddedNats() (*NatsBus, error) {
	opts := &natsd.Options{
		Host:      "localhost",
		Port:      -1, // random free port
		JetStream: false,
	}

	srv, err := natsd.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedded nats: %w", err)
	}

	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, fmt.Errorf("embedded nats did not become ready")
	}

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		srv.Shutdown()
		return nil, fmt.Errorf("failed to connect to embedded nats: %w", err)
	}

	return &NatsBus{nc: nc, srv: srv}, nil
}

func (b *NatsBus) Publish(e Event) error {
	return b.nc.Publish(e.Subject(), marshalEvent(e))
}

func (b *NatsBus) Subscribe(subject string) (chan Event, error) {
	ch := make(chan Event, 64)
	_, err := b.nc.Subscribe(subject, func(m *nats.Msg) {
		var e Event
		if err := json.Unmarshal(m.Data, &e); err != nil {
			return
		}
		select {
		case ch <- e:
		default:
		}
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (b *NatsBus) Close() {
	b.nc.Close()
	if b.srv != nil {
		b.srv.Shutdown()
	}
}
