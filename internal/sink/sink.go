// Package sink forwards scored events to message brokers. Every sink is a hub
// subscriber, so a broker that stops accepting messages is evicted like any
// other failed subscriber.
package sink

import (
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/hub"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Sink is a hub subscriber backed by an external connection.
type Sink interface {
	hub.Subscriber
	Close() error
}

// NewSinks builds every enabled sink in cfg. On error the sinks opened so far
// are closed.
func NewSinks(cfg config.SinksConfig) ([]Sink, error) {
	var sinks []Sink
	if cfg.NATS.Enabled {
		s, err := NewNATSSink(cfg.NATS)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s)
	}
	if cfg.Kafka.Enabled {
		s, err := NewKafkaSink(cfg.Kafka)
		if err != nil {
			CloseAll(sinks)
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// CloseAll closes every sink, logging failures.
func CloseAll(sinks []Sink) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			log.Warnf("Failed to close sink %s: %v", s.ID(), err)
		}
	}
}

func sinkID(kind, target string) string {
	return fmt.Sprintf("%s:%s", kind, target)
}
