package notify

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes on core NATS subjects named after the topics.
type NATSPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher connects to nats://host:port.
func NewNATSPublisher(cfg BrokerConfig) (*NATSPublisher, error) {
	opts := []nats.Option{nats.Name(cfg.ClientID)}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}

	nc, err := nats.Connect(fmt.Sprintf("nats://%s:%d", cfg.Host, cfg.Port), opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSPublisher{nc: nc}, nil
}

// Publish buffers payload for the subject.
func (p *NATSPublisher) Publish(_ context.Context, topic string, payload []byte) error {
	return p.nc.Publish(topic, payload)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
