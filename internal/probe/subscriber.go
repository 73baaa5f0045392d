package probe

import (
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/metrics"
	"Go2NetSentinel/internal/model"
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// Subscriber receives packets published by remote probes. It is a capture
// source for the engine.
type Subscriber struct {
	url     string
	subject string
}

// NewSubscriber creates a subscriber; the connection is opened by Run.
func NewSubscriber(cfg config.ProbeConfig) *Subscriber {
	return &Subscriber{url: cfg.NATSURL, subject: cfg.Subject}
}

// Name implements capture.Source.
func (s *Subscriber) Name() string { return "nats" }

// Run subscribes and feeds every decoded packet to sink until ctx is cancelled.
func (s *Subscriber) Run(ctx context.Context, sink model.PacketSink) error {
	nc, err := nats.Connect(s.url, nats.Name("ns-engine"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", s.url, err)
	}
	defer nc.Close()
	log.Printf("Connected to NATS server at %s", s.url)

	sub, err := nc.Subscribe(s.subject, func(msg *nats.Msg) {
		key, pkt, err := UnmarshalPacket(msg.Data)
		if err != nil {
			metrics.CaptureDropped.WithLabelValues(s.Name()).Inc()
			log.Debugf("Error decoding packet message: %v", err)
			return
		}
		sink.AddPacket(key, pkt)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to '%s': %w", s.subject, err)
	}
	log.Printf("Subscribed to '%s'. Waiting for messages...", s.subject)

	<-ctx.Done()
	if err := sub.Unsubscribe(); err != nil {
		log.Debugf("Unsubscribe from '%s': %v", s.subject, err)
	}
	log.Println("NATS packet subscription closed.")
	return nil
}
