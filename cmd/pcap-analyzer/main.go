package main

import (
	"Go2NetSentinel/internal/capture"
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/engine/flowaggregator"
	"Go2NetSentinel/internal/features"
	"Go2NetSentinel/internal/logging"
	"Go2NetSentinel/internal/model"
	"Go2NetSentinel/internal/pipeline"
	"Go2NetSentinel/internal/scorer"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
)

// jsonLines writes every scored event as one JSON line.
type jsonLines struct {
	enc *json.Encoder
}

func (j jsonLines) Append(ev model.ScoredEvent) error {
	return j.enc.Encode(ev)
}

// replay windows packets by capture time rather than wall time, so a file is
// cut into the same windows the live engine would have seen.
type replay struct {
	table    *flowaggregator.Aggregator
	window   time.Duration
	start    time.Time
	maxFlows int
	worker   *pipeline.Worker
	windows  int
	events   int
}

func (r *replay) AddPacket(key model.FlowKey, pkt model.Packet) {
	if r.start.IsZero() {
		r.start = pkt.Timestamp.Truncate(r.window)
	}
	if pkt.Timestamp.Sub(r.start) >= r.window {
		r.flush()
		r.start = pkt.Timestamp.Truncate(r.window)
	}
	r.table.AddPacket(key, pkt)
}

func (r *replay) flush() {
	flows := features.BuildBatch(r.table.Flush(), r.maxFlows)
	if len(flows) == 0 {
		return
	}
	end := r.start.Add(r.window)
	r.events += len(r.worker.Process(pipeline.WindowJob(model.UnixSeconds(end), flows)))
	r.windows++
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default()
	}
	return cfg, err
}

func run(cfg *config.Config, pcapFilePath string, out io.Writer) error {
	window, err := cfg.WindowLength()
	if err != nil {
		return err
	}

	holder := scorer.NewHolder(cfg.Scorer.ModelPath, cfg.Scorer.AnomalyThreshold())
	if err := holder.LoadAtStartup(); err != nil {
		return err
	}
	if !holder.Loaded() {
		return fmt.Errorf("%w: no bundle at %s", scorer.ErrModelNotLoaded, holder.Path())
	}

	r := &replay{
		table:    flowaggregator.NewAggregator(),
		window:   window,
		maxFlows: cfg.Window.MaxFlowsPerFlush,
		worker:   pipeline.NewWorker(nil, holder, jsonLines{enc: json.NewEncoder(out)}, nil),
	}
	if err := capture.NewFileSource(pcapFilePath).Run(context.Background(), r); err != nil {
		return err
	}
	r.flush()
	log.Printf("Scored %d flows in %d window(s).", r.events, r.windows)
	return nil
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to the configuration file.")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: pcap-analyzer [-config path] <path_to_pcap_file>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.Setup(cfg.Log)

	if err := run(cfg, flag.Arg(0), os.Stdout); err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}
}
