package probe

import (
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/model"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Publisher is responsible for publishing packet data to a NATS subject.
// It implements model.PacketSink so a capture source can feed it directly.
type Publisher struct {
	nc      *nats.Conn
	subject string
	errors  int
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.ProbeConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL, nats.Name("ns-probe"))
	if err != nil {
		return nil, err
	}
	log.Printf("Connected to NATS server at %s", cfg.NATSURL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish serializes a packet and publishes it to the configured subject.
func (p *Publisher) Publish(key model.FlowKey, pkt model.Packet) error {
	return p.nc.Publish(p.subject, MarshalPacket(key, pkt))
}

// AddPacket implements model.PacketSink; publish failures are logged, at most
// once per thousand.
func (p *Publisher) AddPacket(key model.FlowKey, pkt model.Packet) {
	if err := p.Publish(key, pkt); err != nil {
		if p.errors%1000 == 0 {
			log.Warnf("Failed to publish packet: %v", err)
		}
		p.errors++
	}
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		log.Println("NATS connection drained and closed.")
	}
}
