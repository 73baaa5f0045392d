package logging

import (
	"Go2NetSentinel/internal/config"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup configures the process-wide logger from the log section of the config.
// An unknown level falls back to info.
func Setup(cfg config.LogConfig) {
	lvl, err := log.ParseLevel(cfg.Level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)

	if strings.EqualFold(cfg.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	if err != nil && cfg.Level != "" {
		log.Warnf("Unknown log level '%s', using info", cfg.Level)
	}
}
