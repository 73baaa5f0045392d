package manager

import (
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/features"
	"Go2NetSentinel/internal/model"
	"Go2NetSentinel/internal/scorer"
	"Go2NetSentinel/internal/snapshot"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replaySource feeds a fixed packet list and returns.
type replaySource struct {
	keys    []model.FlowKey
	packets []model.Packet
}

func (r *replaySource) Name() string { return "replay" }

func (r *replaySource) Run(ctx context.Context, sink model.PacketSink) error {
	for i := range r.keys {
		sink.AddPacket(r.keys[i], r.packets[i])
	}
	return nil
}

type collector struct {
	mu     sync.Mutex
	events []model.ScoredEvent
}

func (c *collector) ID() string { return "collector" }

func (c *collector) Send(payload []byte) error {
	var ev model.ScoredEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
	return nil
}

func conversation() *replaySource {
	ab := model.FlowKey{SrcIP: "10.0.0.1", SrcPort: 40000, DstIP: "10.0.0.2", DstPort: 80, Protocol: "tcp"}
	t0 := time.Unix(1700000000, 0)
	return &replaySource{
		keys: []model.FlowKey{ab, ab, ab.Reverse(), ab},
		packets: []model.Packet{
			{Timestamp: t0, Length: 100, Flags: "S"},
			{Timestamp: t0.Add(100 * time.Millisecond), Length: 200, Flags: "SA"},
			{Timestamp: t0.Add(150 * time.Millisecond), Length: 400, Flags: "SA"},
			{Timestamp: t0.Add(200 * time.Millisecond), Length: 300, Flags: "PA"},
		},
	}
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Scorer.ModelPath = filepath.Join(dir, "model.gob")
	cfg.EventLog.Path = filepath.Join(dir, "events.csv")
	cfg.Window.Length = "1h"
	cfg.Window.PollInterval = "1m"
	cfg.Capture.Source = "none"
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func saveModel(t *testing.T, path string) {
	forest := &scorer.IsolationForest{
		SampleSize: 256,
		Offset:     -0.5,
		Trees: []scorer.Tree{{Nodes: []scorer.Node{
			{Feature: 0, Threshold: 1000, Left: 1, Right: 2},
			{Left: -1, Right: -1, Size: 255},
			{Left: -1, Right: -1, Size: 1},
		}}},
	}
	require.NoError(t, scorer.SaveBundle(&scorer.Bundle{
		Model:    forest,
		Features: []string{features.ColSrcBytes},
		ScoreMin: forest.DecisionFunction([]float64{5000}),
		ScoreMax: forest.DecisionFunction([]float64{10}),
	}, path))
}

func TestManager_FinalFlushIsScored(t *testing.T) {
	cfg := testConfig(t)
	saveModel(t, cfg.Scorer.ModelPath)

	m, err := NewManager(cfg, conversation())
	require.NoError(t, err)
	require.True(t, m.Holder().Loaded())

	c := &collector{}
	m.Hub().Register(c)
	m.Start()
	m.Wait()
	m.Stop()

	require.Len(t, c.events, 1, "both directions merge into one flow")
	ev := c.events[0]
	assert.Equal(t, model.KindFlow, ev.Kind)
	assert.Equal(t, "10.0.0.1", ev.Event.Src)
	assert.Equal(t, "10.0.0.2", ev.Event.Dst)
	assert.Equal(t, "tcp", ev.Event.Proto)
	assert.Equal(t, int64(400), ev.Event.BytesIn)
	assert.Equal(t, int64(600), ev.Event.BytesOut)
	assert.Equal(t, model.PredictionNormal, ev.Prediction)
	assert.Equal(t, 0.0, ev.AnomalyScore)

	rows, err := m.Events().Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "normal", rows[0].Prediction)
}

func TestManager_NoModelYieldsErrorEvents(t *testing.T) {
	cfg := testConfig(t)
	m, err := NewManager(cfg, conversation())
	require.NoError(t, err)
	assert.False(t, m.Holder().Loaded())

	c := &collector{}
	m.Hub().Register(c)
	m.Start()
	m.Wait()
	m.Stop()
	m.Stop()

	require.Len(t, c.events, 1)
	assert.Equal(t, model.PredictionError, c.events[0].Prediction)
	assert.Contains(t, c.events[0].Error, "model not loaded")
}

func TestManager_ArchivesWindows(t *testing.T) {
	cfg := testConfig(t)
	cfg.Window.ArchiveDir = filepath.Join(t.TempDir(), "windows")
	m, err := NewManager(cfg, conversation())
	require.NoError(t, err)
	m.Start()
	m.Wait()
	m.Stop()

	entries, err := os.ReadDir(cfg.Window.ArchiveDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	window, err := snapshot.Read(filepath.Join(cfg.Window.ArchiveDir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, 2, window.Len(), "the archive keeps both directions")
}

func TestManager_EmptyRunProducesNothing(t *testing.T) {
	m, err := NewManager(testConfig(t))
	require.NoError(t, err)
	c := &collector{}
	m.Hub().Register(c)
	m.Start()
	m.Stop()
	assert.Empty(t, c.events)
	assert.Equal(t, 0, m.Queue().Length())
}

func TestManager_Alerter(t *testing.T) {
	cfg := testConfig(t)
	cfg.Alerter.Enabled = true
	m, err := NewManager(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Hub().Len(), "the alerter subscribes to the hub")
	m.Start()
	m.Stop()
}

func TestBuildSources(t *testing.T) {
	cfg := testConfig(t)
	sources, err := buildSources(cfg)
	require.NoError(t, err)
	assert.Empty(t, sources)

	cfg.Capture.Source = "nats"
	sources, err = buildSources(cfg)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "nats", sources[0].Name())

	cfg.Capture.Source = "pcap"
	_, err = buildSources(cfg)
	assert.Error(t, err, "pcap without an interface")
}
