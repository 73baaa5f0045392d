package main

import (
	"Go2NetSentinel/internal/capture"
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/logging"
	"Go2NetSentinel/internal/model"
	"Go2NetSentinel/internal/probe"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	log "github.com/sirupsen/logrus"
)

func main() {
	// --- Command-Line Flag Parsing ---
	mode := flag.String("mode", "pub", "Operating mode: 'pub' to capture and publish, 'sub' to subscribe and print.")
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	iface := flag.String("iface", "", "Interface to capture packets from (overrides capture.interface).")
	source := flag.String("source", "", "Capture source for pub mode: tshark, pcap or pcapfile (overrides capture.source).")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.Setup(cfg.Log)
	if *iface != "" {
		cfg.Capture.Interface = *iface
	}
	if *source != "" {
		cfg.Capture.Source = *source
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Mode Dispatch ---
	switch *mode {
	case "pub":
		runProbe(ctx, cfg)
	case "sub":
		runSubscriber(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, "Invalid mode: %s\n", *mode)
		flag.Usage()
		os.Exit(1)
	}
}

// runProbe captures packets and publishes them to NATS.
func runProbe(ctx context.Context, cfg *config.Config) {
	if cfg.Capture.Source == "nats" || cfg.Capture.Source == "none" {
		log.Fatalf("Capture source '%s' cannot be used by the probe.", cfg.Capture.Source)
	}
	src, err := capture.NewSource(cfg.Capture)
	if err != nil {
		log.Fatalf("Failed to create capture source: %v", err)
	}

	pub, err := probe.NewPublisher(cfg.Probe)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer pub.Close()

	log.Printf("Starting ns-probe in PROBE mode with source %s, publishing to '%s'", src.Name(), cfg.Probe.Subject)
	if err := src.Run(ctx, pub); err != nil {
		log.Errorf("Capture source %s failed: %v", src.Name(), err)
	}
	log.Println("Probe stopped, cleaning up...")
}

// runSubscriber subscribes to the packet subject and prints every packet.
func runSubscriber(ctx context.Context, cfg *config.Config) {
	log.Println("Starting ns-probe in SUBSCRIBER mode...")
	var received atomic.Uint64
	handler := model.PacketSinkFunc(func(key model.FlowKey, pkt model.Packet) {
		n := received.Add(1)
		log.Printf("Received Packet #%d: %s len=%d flags=%q", n, key, pkt.Length, pkt.Flags)
	})

	if err := probe.NewSubscriber(cfg.Probe).Run(ctx, handler); err != nil {
		log.Fatalf("Subscriber failed: %v", err)
	}
	log.Printf("Subscriber stopped after %d packets.", received.Load())
}
