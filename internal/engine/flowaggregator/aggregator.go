package flowaggregator

import (
	"Go2NetSentinel/internal/metrics"
	"Go2NetSentinel/internal/model"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// WindowHandler receives every non-empty snapshot flushed by a FlowAggregator.
type WindowHandler func(snapshot model.WindowSnapshot)

// PacketInfo is one packet on its way from a capture source to the window table.
type PacketInfo struct {
	Key    model.FlowKey
	Packet model.Packet
}

// Options configures a FlowAggregator.
type Options struct {
	// Window is the length of one aggregation window.
	Window time.Duration
	// PollInterval is how often the flusher checks whether the window has elapsed.
	PollInterval time.Duration
	NumWorkers   int
	ChannelSize  int
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// FlowAggregator feeds packets from concurrent producers into an Aggregator and
// flushes it once per window.
type FlowAggregator struct {
	table   *Aggregator
	handler WindowHandler

	inputChannel chan PacketInfo
	closeMu      sync.RWMutex
	closed       bool

	window       time.Duration
	pollInterval time.Duration
	numWorkers   int
	now          func() time.Time

	flushMu   sync.Mutex
	lastFlush time.Time

	done      chan struct{}
	workerWg  sync.WaitGroup
	flusherWg sync.WaitGroup
	stopOnce  sync.Once
}

// NewFlowAggregator creates a new FlowAggregator based on the provided options.
func NewFlowAggregator(opts Options, handler WindowHandler) *FlowAggregator {
	if opts.Window <= 0 {
		opts.Window = 5 * time.Second
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}
	if opts.ChannelSize <= 0 {
		opts.ChannelSize = 1000
	}
	if opts.PollInterval <= 0 || (opts.Window > 0 && opts.PollInterval > opts.Window) {
		opts.PollInterval = opts.Window
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	table := NewAggregator()
	table.now = now

	return &FlowAggregator{
		table:        table,
		handler:      handler,
		inputChannel: make(chan PacketInfo, opts.ChannelSize),
		window:       opts.Window,
		pollInterval: opts.PollInterval,
		numWorkers:   opts.NumWorkers,
		now:          now,
		lastFlush:    now(),
		done:         make(chan struct{}),
	}
}

// Start launches the aggregator worker pool and the window flusher.
func (fa *FlowAggregator) Start() {
	fa.workerWg.Add(fa.numWorkers)
	for i := 0; i < fa.numWorkers; i++ {
		go fa.worker()
	}

	fa.flusherWg.Add(1)
	go fa.flusher()
	log.Printf("Flow aggregator started: window=%s poll=%s workers=%d", fa.window, fa.pollInterval, fa.numWorkers)
}

// Stop stops accepting packets, drains the workers and runs a final forced
// flush so a partially filled window is not lost. It is safe to call twice.
func (fa *FlowAggregator) Stop() {
	fa.stopOnce.Do(func() {
		fa.closeMu.Lock()
		fa.closed = true
		close(fa.inputChannel)
		fa.closeMu.Unlock()

		fa.workerWg.Wait()
		close(fa.done)
		fa.flusherWg.Wait()
		log.Println("Flow aggregator stopped.")
	})
}

// AddPacket hands a packet to the worker pool. Packets arriving after Stop are dropped.
func (fa *FlowAggregator) AddPacket(key model.FlowKey, packet model.Packet) {
	fa.closeMu.RLock()
	defer fa.closeMu.RUnlock()
	if fa.closed {
		return
	}
	fa.inputChannel <- PacketInfo{Key: key, Packet: packet}
}

// Table exposes the underlying window table.
func (fa *FlowAggregator) Table() *Aggregator {
	return fa.table
}

func (fa *FlowAggregator) worker() {
	defer fa.workerWg.Done()
	for info := range fa.inputChannel {
		fa.table.AddPacket(info.Key, info.Packet)
	}
}

// flusher polls at pollInterval and flushes only once a whole window has elapsed,
// so windows longer than the poll tick need no window-granular timer.
func (fa *FlowAggregator) flusher() {
	defer fa.flusherWg.Done()
	ticker := time.NewTicker(fa.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			fa.checkWindow()
		case <-fa.done:
			fa.Flush()
			return
		}
	}
}

// checkWindow flushes when the configured window has elapsed since the last flush.
func (fa *FlowAggregator) checkWindow() bool {
	fa.flushMu.Lock()
	elapsed := fa.now().Sub(fa.lastFlush)
	fa.flushMu.Unlock()
	if elapsed < fa.window {
		return false
	}
	fa.Flush()
	return true
}

// Flush forces a window flush regardless of elapsed time and hands a non-empty
// snapshot to the handler.
func (fa *FlowAggregator) Flush() model.WindowSnapshot {
	fa.flushMu.Lock()
	snapshot := fa.table.Flush()
	fa.lastFlush = fa.now()
	fa.flushMu.Unlock()

	metrics.WindowsFlushed.Inc()
	metrics.FlowsFlushed.Add(float64(snapshot.Len()))

	if snapshot.Len() == 0 {
		log.Debug("Window flushed with no flows")
		return snapshot
	}
	log.Debugf("Window flushed with %d flows", snapshot.Len())
	if fa.handler != nil {
		fa.handler(snapshot)
	}
	return snapshot
}
