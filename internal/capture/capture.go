// Package capture turns raw traffic into per-packet flow updates.
package capture

import (
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/model"
	"context"
	"fmt"
)

// Source feeds packets into a sink until its input ends or ctx is cancelled.
type Source interface {
	Name() string
	Run(ctx context.Context, sink model.PacketSink) error
}

// NewSource builds the local capture source selected by cfg. The "nats" source
// lives in the probe package and is not handled here.
func NewSource(cfg config.CaptureConfig) (Source, error) {
	switch cfg.Source {
	case "", "tshark":
		return NewTsharkSource(cfg.TsharkPath, cfg.Interface), nil
	case "pcap":
		if cfg.Interface == "" {
			return nil, fmt.Errorf("capture source pcap requires an interface")
		}
		return NewLiveSource(cfg.Interface, cfg.SnapLen), nil
	case "pcapfile":
		if cfg.File == "" {
			return nil, fmt.Errorf("capture source pcapfile requires a file")
		}
		return NewFileSource(cfg.File), nil
	default:
		return nil, fmt.Errorf("unknown capture source: %q", cfg.Source)
	}
}
