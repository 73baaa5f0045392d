package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultThreshold is the anomaly label threshold used when none is configured.
const DefaultThreshold = 0.5

// ScorerConfig describes where the model bundle lives and how scores are labelled.
type ScorerConfig struct {
	ModelPath string   `yaml:"model_path" toml:"model_path" env:"MODEL_PATH"`
	// Threshold is nil until set, so an explicit 0 survives the defaults.
	Threshold *float64 `yaml:"threshold" toml:"threshold" env:"ANOMALY_THRESHOLD"`
}

// AnomalyThreshold returns the label threshold, 0.5 when unset.
func (s ScorerConfig) AnomalyThreshold() float64 {
	if s.Threshold == nil {
		return DefaultThreshold
	}
	return *s.Threshold
}

// WindowConfig controls the flow aggregation window.
type WindowConfig struct {
	Length           string `yaml:"length" toml:"length" env:"WINDOW_SEC"`
	PollInterval     string `yaml:"poll_interval" toml:"poll_interval" env:"FLUSH_INTERVAL"`
	MaxFlowsPerFlush int    `yaml:"max_flows_per_flush" toml:"max_flows_per_flush" env:"MAX_FLOWS_FLUSH"`
	NumWorkers       int    `yaml:"num_workers" toml:"num_workers"`
	SizeOfChannel    int    `yaml:"size_of_packet_channel" toml:"size_of_packet_channel"`
	// ArchiveDir, when set, keeps a gob copy of every flushed window.
	ArchiveDir string `yaml:"archive_dir" toml:"archive_dir" env:"WINDOW_ARCHIVE_DIR"`
}

// CaptureConfig selects the local packet source of the engine.
// Source is one of "", "tshark", "pcap", "pcapfile", "nats" or "none".
type CaptureConfig struct {
	Source     string `yaml:"source" toml:"source" env:"CAPTURE_SOURCE"`
	Interface  string `yaml:"interface" toml:"interface" env:"IFACE"`
	File       string `yaml:"file" toml:"file"`
	TsharkPath string `yaml:"tshark_path" toml:"tshark_path"`
	SnapLen    int32  `yaml:"snaplen" toml:"snaplen"`
}

// ProbeConfig holds the NATS settings used between ns-probe and ns-engine.
type ProbeConfig struct {
	NATSURL string `yaml:"nats_url" toml:"nats_url" env:"NATS_URL"`
	Subject string `yaml:"subject" toml:"subject"`
}

// ClickHouseConfig holds the connection details for ClickHouse.
type ClickHouseConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Database string `yaml:"database" toml:"database"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password" env:"CLICKHOUSE_PASSWORD"`
}

// EventLogConfig selects the append log backend ("csv" or "clickhouse").
type EventLogConfig struct {
	Type       string           `yaml:"type" toml:"type"`
	Path       string           `yaml:"path" toml:"path" env:"EVENT_LOG_PATH"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse" toml:"clickhouse"`
}

// NATSSinkConfig publishes scored events to a NATS subject.
type NATSSinkConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	URL     string `yaml:"url" toml:"url"`
	Subject string `yaml:"subject" toml:"subject"`
}

// KafkaSinkConfig publishes scored events to a Kafka topic.
type KafkaSinkConfig struct {
	Enabled bool     `yaml:"enabled" toml:"enabled"`
	Brokers []string `yaml:"brokers" toml:"brokers"`
	Topic   string   `yaml:"topic" toml:"topic"`
}

// SinksConfig groups the optional scored-event sinks.
type SinksConfig struct {
	NATS  NATSSinkConfig  `yaml:"nats" toml:"nats"`
	Kafka KafkaSinkConfig `yaml:"kafka" toml:"kafka"`
}

// APIConfig holds the listen addresses of the HTTP and gRPC servers.
type APIConfig struct {
	HttpListenAddr string   `yaml:"http_listen_addr" toml:"http_listen_addr" env:"HTTP_LISTEN_ADDR"`
	GrpcListenAddr string   `yaml:"grpc_listen_addr" toml:"grpc_listen_addr"`
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
	ShutdownGrace  string   `yaml:"shutdown_grace" toml:"shutdown_grace"`
}

// SMTPConfig holds the configuration for the email notifier.
type SMTPConfig struct {
	Host     string `yaml:"host" toml:"host"`
	Port     int    `yaml:"port" toml:"port"`
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password" env:"SMTP_PASSWORD"`
	From     string `yaml:"from" toml:"from"`
	To       string `yaml:"to" toml:"to"`
}

// AlerterConfig holds the anomaly digest settings.
type AlerterConfig struct {
	Enabled       bool   `yaml:"enabled" toml:"enabled"`
	CheckInterval string `yaml:"check_interval" toml:"check_interval"`
	MinAnomalies  int    `yaml:"min_anomalies" toml:"min_anomalies"`
	MaxListed     int    `yaml:"max_listed" toml:"max_listed"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" env:"LOG_FORMAT"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Scorer   ScorerConfig   `yaml:"scorer" toml:"scorer"`
	Window   WindowConfig   `yaml:"window" toml:"window"`
	Capture  CaptureConfig  `yaml:"capture" toml:"capture"`
	Probe    ProbeConfig    `yaml:"probe" toml:"probe"`
	EventLog EventLogConfig `yaml:"event_log" toml:"event_log"`
	Sinks    SinksConfig    `yaml:"sinks" toml:"sinks"`
	API      APIConfig      `yaml:"api" toml:"api"`
	Alerter  AlerterConfig  `yaml:"alerter" toml:"alerter"`
	SMTP     SMTPConfig     `yaml:"smtp" toml:"smtp"`
	Log      LogConfig      `yaml:"log" toml:"log"`
}

// LoadConfig reads the configuration from a YAML (or .toml) file, applies
// environment overrides and defaults, and validates the result.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config TOML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
		}
	}

	return finish(&cfg)
}

// Default returns a configuration built only from defaults and the environment.
func Default() (*Config, error) {
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field with the value the service ships with.
func (c *Config) ApplyDefaults() {
	if c.Scorer.ModelPath == "" {
		c.Scorer.ModelPath = "models/isoforest.gob"
	}
	if c.Scorer.Threshold == nil {
		threshold := DefaultThreshold
		c.Scorer.Threshold = &threshold
	}
	if c.Window.Length == "" {
		c.Window.Length = "5s"
	}
	if c.Window.PollInterval == "" {
		c.Window.PollInterval = "2s"
	}
	if c.Window.MaxFlowsPerFlush <= 0 {
		c.Window.MaxFlowsPerFlush = 5000
	}
	if c.Window.NumWorkers <= 0 {
		c.Window.NumWorkers = 2
	}
	if c.Window.SizeOfChannel <= 0 {
		c.Window.SizeOfChannel = 10000
	}
	if c.Capture.TsharkPath == "" {
		c.Capture.TsharkPath = "tshark"
	}
	if c.Capture.SnapLen <= 0 {
		c.Capture.SnapLen = 1600
	}
	if c.Probe.NATSURL == "" {
		c.Probe.NATSURL = "nats://127.0.0.1:4222"
	}
	if c.Probe.Subject == "" {
		c.Probe.Subject = "ns.packets.raw"
	}
	if c.EventLog.Type == "" {
		c.EventLog.Type = "csv"
	}
	if c.EventLog.Path == "" {
		c.EventLog.Path = "data/rt_events.csv"
	}
	if c.Sinks.NATS.URL == "" {
		c.Sinks.NATS.URL = c.Probe.NATSURL
	}
	if c.Sinks.NATS.Subject == "" {
		c.Sinks.NATS.Subject = "ns.events.scored"
	}
	if c.Sinks.Kafka.Topic == "" {
		c.Sinks.Kafka.Topic = "ns-events-scored"
	}
	if c.API.HttpListenAddr == "" {
		c.API.HttpListenAddr = ":8000"
	}
	if c.API.GrpcListenAddr == "" {
		c.API.GrpcListenAddr = ":9090"
	}
	if len(c.API.AllowedOrigins) == 0 {
		c.API.AllowedOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:3000"}
	}
	if c.API.ShutdownGrace == "" {
		c.API.ShutdownGrace = "5s"
	}
	if c.Alerter.CheckInterval == "" {
		c.Alerter.CheckInterval = "1m"
	}
	if c.Alerter.MinAnomalies <= 0 {
		c.Alerter.MinAnomalies = 1
	}
	if c.Alerter.MaxListed <= 0 {
		c.Alerter.MaxListed = 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks value ranges and the cross-field window constraint.
func (c *Config) Validate() error {
	if thr := c.Scorer.AnomalyThreshold(); thr < 0 || thr > 1 {
		return fmt.Errorf("scorer threshold must be within [0,1], got %v", thr)
	}
	window, err := c.WindowLength()
	if err != nil {
		return err
	}
	poll, err := c.PollInterval()
	if err != nil {
		return err
	}
	if poll > window {
		return fmt.Errorf("poll_interval %s must not exceed window length %s", poll, window)
	}
	if _, err := parsePositive("api.shutdown_grace", c.API.ShutdownGrace); err != nil {
		return err
	}
	if c.Alerter.Enabled {
		if _, err := c.AlerterInterval(); err != nil {
			return err
		}
	}
	switch c.Capture.Source {
	case "", "tshark", "pcap", "pcapfile", "nats", "none":
	default:
		return fmt.Errorf("unknown capture source: '%s'", c.Capture.Source)
	}
	switch c.EventLog.Type {
	case "csv", "clickhouse":
	default:
		return fmt.Errorf("unknown event log type: '%s'", c.EventLog.Type)
	}
	return nil
}

// WindowLength returns the parsed aggregation window.
func (c *Config) WindowLength() (time.Duration, error) {
	return parsePositive("window.length", c.Window.Length)
}

// PollInterval returns the parsed flush poll interval.
func (c *Config) PollInterval() (time.Duration, error) {
	return parsePositive("window.poll_interval", c.Window.PollInterval)
}

// ShutdownGrace returns the parsed shutdown grace period.
func (c *Config) ShutdownGrace() time.Duration {
	d, _ := parsePositive("api.shutdown_grace", c.API.ShutdownGrace)
	return d
}

// AlerterInterval returns the parsed alerter check interval.
func (c *Config) AlerterInterval() (time.Duration, error) {
	return parsePositive("alerter.check_interval", c.Alerter.CheckInterval)
}

// parsePositive accepts Go durations ("5s") and bare seconds ("5", "2.5"),
// the latter being how WINDOW_SEC and FLUSH_INTERVAL are usually exported.
func parsePositive(name, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		secs, parseErr := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if parseErr != nil {
			return 0, fmt.Errorf("invalid %s '%s': %w", name, value, err)
		}
		d = time.Duration(secs * float64(time.Second))
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration", name)
	}
	return d, nil
}
