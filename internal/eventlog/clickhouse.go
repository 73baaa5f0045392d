package eventlog

import (
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/model"
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	log "github.com/sirupsen/logrus"
)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS scored_events (
    Timestamp   DateTime64(3),
    TS          Float64,
    SrcIP       String,
    DstIP       String,
    Protocol    String,
    Score       Float64,
    Prediction  LowCardinality(String),
    Seq         UInt64
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY Seq;
`

const recentQuery = `
SELECT TS, SrcIP, DstIP, Protocol, Score, Prediction
FROM (
    SELECT TS, SrcIP, DstIP, Protocol, Score, Prediction, Seq
    FROM scored_events
    ORDER BY Seq DESC
    LIMIT ?
)
ORDER BY Seq ASC
`

// ClickHouseLog stores scored events in the scored_events table.
type ClickHouseLog struct {
	conn driver.Conn
	// seq is the append order. It starts at the open time in nanoseconds so it
	// keeps growing across restarts.
	seq uint64
}

// NewClickHouseLog connects and ensures the table exists.
func NewClickHouseLog(cfg config.ClickHouseConfig) (*ClickHouseLog, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(context.Background(), createTableStatement); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured scored_events table exists.")

	return newClickHouseLog(conn, uint64(time.Now().UnixNano())), nil
}

func newClickHouseLog(conn driver.Conn, seq uint64) *ClickHouseLog {
	return &ClickHouseLog{conn: conn, seq: seq}
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

// Append inserts one event. The worker is the only writer, so seq needs no lock.
func (l *ClickHouseLog) Append(ev model.ScoredEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, err := l.conn.PrepareBatch(ctx, "INSERT INTO scored_events")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	l.seq++
	err = batch.Append(
		time.UnixMilli(ev.TSMillis),
		ev.TS,
		ev.Event.Src,
		ev.Event.Dst,
		ev.Event.Proto,
		ev.AnomalyScore,
		ev.Prediction,
		l.seq,
	)
	if err != nil {
		return fmt.Errorf("failed to append event to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// Recent returns the n most recently appended events, oldest first. Event
// timestamps are not used for ordering since clients supply them.
func (l *ClickHouseLog) Recent(ctx context.Context, n int) ([]Row, error) {
	if err := checkLimit(n); err != nil {
		return nil, err
	}
	rows, err := l.conn.Query(ctx, recentQuery, n)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	out := make([]Row, 0, n)
	for rows.Next() {
		var (
			ts, score float64
			r         Row
		)
		if err := rows.Scan(&ts, &r.SrcIP, &r.DstIP, &r.Protocol, &score, &r.Prediction); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		r.TS = formatFloat(ts)
		r.Score = formatFloat(score)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event rows: %w", err)
	}
	return out, nil
}

// Close closes the connection.
func (l *ClickHouseLog) Close() error {
	return l.conn.Close()
}
