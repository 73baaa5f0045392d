package eventlog

import (
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/model"
	"context"
	"fmt"
	"strconv"
)

// Bounds of a Recent query.
const (
	MaxRecent     = 5000
	DefaultRecent = 500
)

// ErrInvalidLimit is returned by Recent for n outside 1..MaxRecent.
var ErrInvalidLimit = fmt.Errorf("limit must be between 1 and %d", MaxRecent)

// Columns is the fixed column order of a logged event.
var Columns = []string{"ts", "src_ip", "dst_ip", "protocol", "score", "prediction"}

// Row is one logged event as returned by Recent.
type Row struct {
	TS         string `json:"ts"`
	SrcIP      string `json:"src_ip"`
	DstIP      string `json:"dst_ip"`
	Protocol   string `json:"protocol"`
	Score      string `json:"score"`
	Prediction string `json:"prediction"`
}

// Log is an append-only store of scored events.
type Log interface {
	model.EventWriter
	// Recent returns the n most recently appended rows, oldest first.
	Recent(ctx context.Context, n int) ([]Row, error)
	Close() error
}

// New builds the log backend selected by cfg.
func New(cfg config.EventLogConfig) (Log, error) {
	switch cfg.Type {
	case "", "csv":
		return NewCSVLog(cfg.Path)
	case "clickhouse":
		return NewClickHouseLog(cfg.ClickHouse)
	default:
		return nil, fmt.Errorf("unknown event log type: %q", cfg.Type)
	}
}

func checkLimit(n int) error {
	if n < 1 || n > MaxRecent {
		return fmt.Errorf("%w: got %d", ErrInvalidLimit, n)
	}
	return nil
}

// rowOf flattens an event into the logged columns.
func rowOf(ev model.ScoredEvent) Row {
	return Row{
		TS:         formatFloat(ev.TS),
		SrcIP:      ev.Event.Src,
		DstIP:      ev.Event.Dst,
		Protocol:   ev.Event.Proto,
		Score:      formatFloat(ev.AnomalyScore),
		Prediction: ev.Prediction,
	}
}

func (r Row) fields() []string {
	return []string{r.TS, r.SrcIP, r.DstIP, r.Protocol, r.Score, r.Prediction}
}

// rowFromFields is lenient: short records leave trailing columns empty.
func rowFromFields(f []string) Row {
	get := func(i int) string {
		if i < len(f) {
			return f[i]
		}
		return ""
	}
	return Row{TS: get(0), SrcIP: get(1), DstIP: get(2), Protocol: get(3), Score: get(4), Prediction: get(5)}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
