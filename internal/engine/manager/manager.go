package manager

import (
	"Go2NetSentinel/internal/alerter"
	"Go2NetSentinel/internal/capture"
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/engine/flowaggregator"
	"Go2NetSentinel/internal/eventlog"
	"Go2NetSentinel/internal/features"
	"Go2NetSentinel/internal/hub"
	"Go2NetSentinel/internal/metrics"
	"Go2NetSentinel/internal/model"
	"Go2NetSentinel/internal/notification"
	"Go2NetSentinel/internal/pipeline"
	"Go2NetSentinel/internal/probe"
	"Go2NetSentinel/internal/scorer"
	"Go2NetSentinel/internal/sink"
	"Go2NetSentinel/internal/snapshot"
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Manager assembles the scoring pipeline: capture sources feed the flow
// aggregator, every flushed window becomes a batch job on the queue, and the
// single worker scores jobs into the event log and the hub.
type Manager struct {
	holder     *scorer.Holder
	events     eventlog.Log
	hub        *hub.Hub
	queue      *pipeline.Queue[pipeline.Job]
	worker     *pipeline.Worker
	aggregator *flowaggregator.FlowAggregator
	sources    []capture.Source
	sinks      []sink.Sink
	alerter    *alerter.Alerter
	archive    *snapshot.Writer

	maxFlows int
	grace    time.Duration

	sourceCancel  context.CancelFunc
	sourceWg      sync.WaitGroup
	workerCancel  context.CancelFunc
	workerDone    chan struct{}
	alerterCancel context.CancelFunc
	alerterWg     sync.WaitGroup
	stopOnce      sync.Once
}

// NewManager builds every component from cfg. When no sources are given they
// are built from cfg.Capture.
func NewManager(cfg *config.Config, sources ...capture.Source) (*Manager, error) {
	window, err := cfg.WindowLength()
	if err != nil {
		return nil, err
	}
	poll, err := cfg.PollInterval()
	if err != nil {
		return nil, err
	}

	if len(sources) == 0 {
		sources, err = buildSources(cfg)
		if err != nil {
			return nil, err
		}
	}

	holder := scorer.NewHolder(cfg.Scorer.ModelPath, cfg.Scorer.AnomalyThreshold())
	if err := holder.LoadAtStartup(); err != nil {
		log.Errorf("Failed to load model, scoring unavailable until a reload: %v", err)
	}

	events, err := eventlog.New(cfg.EventLog)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	m := &Manager{
		holder:   holder,
		events:   events,
		hub:      hub.New(),
		queue:    pipeline.NewQueue[pipeline.Job](metrics.QueueDepth),
		sources:  sources,
		maxFlows: cfg.Window.MaxFlowsPerFlush,
		grace:    cfg.ShutdownGrace(),
	}
	if cfg.Window.ArchiveDir != "" {
		m.archive = snapshot.NewWriter(cfg.Window.ArchiveDir)
	}
	m.worker = pipeline.NewWorker(m.queue, holder, events, m.hub)
	m.aggregator = flowaggregator.NewFlowAggregator(flowaggregator.Options{
		Window:       window,
		PollInterval: poll,
		NumWorkers:   cfg.Window.NumWorkers,
		ChannelSize:  cfg.Window.SizeOfChannel,
	}, m.handleWindow)

	m.sinks, err = sink.NewSinks(cfg.Sinks)
	if err != nil {
		events.Close()
		return nil, fmt.Errorf("failed to create sinks: %w", err)
	}
	for _, s := range m.sinks {
		m.hub.Register(s)
	}

	if cfg.Alerter.Enabled {
		interval, err := cfg.AlerterInterval()
		if err != nil {
			m.closeOutputs()
			return nil, err
		}
		m.alerter, err = alerter.NewAlerter(interval, cfg.Alerter, notification.New(cfg.SMTP))
		if err != nil {
			m.closeOutputs()
			return nil, fmt.Errorf("failed to create alerter: %w", err)
		}
		m.hub.Register(m.alerter)
		log.Println("Alerter enabled and initialized.")
	}

	return m, nil
}

func buildSources(cfg *config.Config) ([]capture.Source, error) {
	switch cfg.Capture.Source {
	case "none":
		return nil, nil
	case "nats":
		return []capture.Source{probe.NewSubscriber(cfg.Probe)}, nil
	}
	src, err := capture.NewSource(cfg.Capture)
	if err != nil {
		return nil, err
	}
	return []capture.Source{src}, nil
}

// handleWindow turns a flushed window into one batch job.
func (m *Manager) handleWindow(window model.WindowSnapshot) {
	if m.archive != nil {
		if _, err := m.archive.Write(window); err != nil {
			log.Errorf("Failed to archive window: %v", err)
		}
	}
	flows := features.BuildBatch(window, m.maxFlows)
	if len(flows) == 0 {
		return
	}
	if !m.queue.Push(pipeline.WindowJob(model.UnixSeconds(window.TakenAt()), flows)) {
		log.Warnf("Dropped window of %d flows: queue closed", len(flows))
	}
}

// Start launches the worker, the aggregator, the alerter and every source.
func (m *Manager) Start() {
	workerCtx, workerCancel := context.WithCancel(context.Background())
	m.workerCancel = workerCancel
	m.workerDone = make(chan struct{})
	go func() {
		defer close(m.workerDone)
		m.worker.Run(workerCtx)
	}()

	m.aggregator.Start()

	if m.alerter != nil {
		ctx, cancel := context.WithCancel(context.Background())
		m.alerterCancel = cancel
		m.alerterWg.Add(1)
		go func() {
			defer m.alerterWg.Done()
			m.alerter.Run(ctx)
		}()
	}

	sourceCtx, sourceCancel := context.WithCancel(context.Background())
	m.sourceCancel = sourceCancel
	for _, src := range m.sources {
		m.sourceWg.Add(1)
		go func(src capture.Source) {
			defer m.sourceWg.Done()
			log.Printf("Capture source %s started.", src.Name())
			if err := src.Run(sourceCtx, m.aggregator); err != nil && sourceCtx.Err() == nil {
				log.Errorf("Capture source %s failed: %v", src.Name(), err)
				return
			}
			log.Printf("Capture source %s finished.", src.Name())
		}(src)
	}
	log.Printf("Manager started with %d capture source(s).", len(m.sources))
}

// Wait blocks until every capture source has returned, e.g. at the end of a file.
func (m *Manager) Wait() {
	m.sourceWg.Wait()
}

// Stop shuts the pipeline down in order: sources, a final window flush, the
// queue drain (bounded by the shutdown grace), the alerter and the outputs.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		log.Println("Manager stopping...")
		if m.sourceCancel != nil {
			m.sourceCancel()
			m.sourceWg.Wait()
		}

		m.aggregator.Stop()
		m.queue.Close()

		if m.workerDone != nil {
			select {
			case <-m.workerDone:
			case <-time.After(m.grace):
				log.Warnf("Queue not drained within %s, %d job(s) abandoned.", m.grace, m.queue.Length())
				m.workerCancel()
				<-m.workerDone
			}
			m.workerCancel()
		}

		if m.alerterCancel != nil {
			m.alerterCancel()
			m.alerterWg.Wait()
		}

		m.closeOutputs()
		log.Println("Manager stopped.")
	})
}

func (m *Manager) closeOutputs() {
	sink.CloseAll(m.sinks)
	if err := m.events.Close(); err != nil {
		log.Warnf("Failed to close event log: %v", err)
	}
}

// Holder returns the shared model holder.
func (m *Manager) Holder() *scorer.Holder { return m.holder }

// Hub returns the broadcast hub.
func (m *Manager) Hub() *hub.Hub { return m.hub }

// Events returns the event log.
func (m *Manager) Events() eventlog.Log { return m.events }

// Queue returns the job queue.
func (m *Manager) Queue() *pipeline.Queue[pipeline.Job] { return m.queue }

// Aggregator returns the flow aggregator, the sink of every capture source.
func (m *Manager) Aggregator() *flowaggregator.FlowAggregator { return m.aggregator }
