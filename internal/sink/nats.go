package sink

import (
	"Go2NetSentinel/internal/config"
	"fmt"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type natsPublisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes every scored event to a NATS subject.
type NATSSink struct {
	conn    natsPublisher
	nc      *nats.Conn
	subject string
}

// NewNATSSink connects to the configured server.
func NewNATSSink(cfg config.NATSSinkConfig) (*NATSSink, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("ns-engine-events"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.URL, err)
	}
	log.Printf("Publishing scored events to NATS subject '%s'", cfg.Subject)
	return &NATSSink{conn: nc, nc: nc, subject: cfg.Subject}, nil
}

// ID implements hub.Subscriber.
func (s *NATSSink) ID() string { return sinkID("nats", s.subject) }

// Send implements hub.Subscriber.
func (s *NATSSink) Send(payload []byte) error {
	return s.conn.Publish(s.subject, payload)
}

// Close drains the connection.
func (s *NATSSink) Close() error {
	if s.nc == nil {
		return nil
	}
	return s.nc.Drain()
}
