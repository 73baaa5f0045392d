package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
scorer:
  model_path: "/srv/model.gob"
  threshold: 0.7
window:
  length: "10s"
  poll_interval: "1s"
capture:
  source: "pcapfile"
  file: "trace.pcap"
sinks:
  kafka:
    enabled: true
    brokers: ["k1:9092", "k2:9092"]
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/model.gob", cfg.Scorer.ModelPath)
	assert.Equal(t, 0.7, cfg.Scorer.AnomalyThreshold())
	window, err := cfg.WindowLength()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, window)
	assert.Equal(t, "pcapfile", cfg.Capture.Source)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Sinks.Kafka.Brokers)

	// Defaults fill the rest.
	assert.Equal(t, 5000, cfg.Window.MaxFlowsPerFlush)
	assert.Equal(t, "csv", cfg.EventLog.Type)
	assert.Equal(t, "data/rt_events.csv", cfg.EventLog.Path)
	assert.Equal(t, ":8000", cfg.API.HttpListenAddr)
	assert.Equal(t, "ns-events-scored", cfg.Sinks.Kafka.Topic)
	assert.Equal(t, cfg.Probe.NATSURL, cfg.Sinks.NATS.URL)
	assert.Equal(t, 5*time.Second, cfg.ShutdownGrace())
}

func TestLoadConfig_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[scorer]
model_path = "m.gob"

[event_log]
type = "clickhouse"

[event_log.clickhouse]
host = "ch"
port = 9000
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "m.gob", cfg.Scorer.ModelPath)
	assert.Equal(t, "clickhouse", cfg.EventLog.Type)
	assert.Equal(t, "ch", cfg.EventLog.ClickHouse.Host)
	assert.Equal(t, 0.5, cfg.Scorer.AnomalyThreshold())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MODEL_PATH", "/env/model.gob")
	t.Setenv("ANOMALY_THRESHOLD", "0.9")
	t.Setenv("WINDOW_SEC", "3")
	t.Setenv("FLUSH_INTERVAL", "0.5")
	t.Setenv("MAX_FLOWS_FLUSH", "42")
	t.Setenv("IFACE", "eth1")

	cfg, err := LoadConfig(writeFile(t, "config.yaml", "scorer:\n  model_path: file.gob\n"))
	require.NoError(t, err)
	assert.Equal(t, "/env/model.gob", cfg.Scorer.ModelPath)
	assert.Equal(t, 0.9, cfg.Scorer.AnomalyThreshold())
	assert.Equal(t, 42, cfg.Window.MaxFlowsPerFlush)
	assert.Equal(t, "eth1", cfg.Capture.Interface)

	window, err := cfg.WindowLength()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, window)
	poll, err := cfg.PollInterval()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, poll)
}

func TestLoadConfig_ZeroThresholdIsKept(t *testing.T) {
	cfg, err := LoadConfig(writeFile(t, "config.yaml", "scorer:\n  threshold: 0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Scorer.AnomalyThreshold())

	cfg, err = LoadConfig(writeFile(t, "config.toml", "[scorer]\nthreshold = 0.0\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Scorer.AnomalyThreshold())

	t.Setenv("ANOMALY_THRESHOLD", "0")
	cfg, err = Default()
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Scorer.AnomalyThreshold())
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"threshold":     "scorer:\n  threshold: 1.5\n",
		"window":        "window:\n  length: soon\n",
		"poll > window": "window:\n  length: 1s\n  poll_interval: 2s\n",
		"capture":       "capture:\n  source: carrier-pigeon\n",
		"event log":     "event_log:\n  type: parquet\n",
		"alerter":       "alerter:\n  enabled: true\n  check_interval: \"-1s\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "config.yaml", body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeFile(t, "config.yaml", "scorer: [unclosed"))
	assert.Error(t, err)
}

func TestShippedConfig(t *testing.T) {
	cfg, err := LoadConfig("../../configs/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, "tshark", cfg.Capture.Source)
	assert.False(t, cfg.Alerter.Enabled)
	assert.Len(t, cfg.API.AllowedOrigins, 3)
}
