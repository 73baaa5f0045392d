package model

import (
	"math"
	"time"
)

// Predictions carried by a ScoredEvent.
const (
	PredictionNormal  = "normal"
	PredictionAnomaly = "anomaly"
	PredictionError   = "error"
)

// Kinds carried by a ScoredEvent.
const (
	KindFlow  = "flow"
	KindError = "error"
)

// NetEvent is a single raw telemetry event posted for real-time scoring.
// The radio fields are accepted and passed through but not scored.
type NetEvent struct {
	SrcIP    string   `json:"src_ip"`
	DstIP    string   `json:"dst_ip"`
	Protocol string   `json:"protocol"`
	BytesIn  int64    `json:"bytes_in"`
	BytesOut int64    `json:"bytes_out"`
	Flags    *string  `json:"flags,omitempty"`
	IMSI     *string  `json:"imsi,omitempty"`
	CellID   *string  `json:"cell_id,omitempty"`
	RSRP     *float64 `json:"rsrp,omitempty"`
	RSRQ     *float64 `json:"rsrq,omitempty"`
	SINR     *float64 `json:"sinr,omitempty"`
	TS       *float64 `json:"ts,omitempty"`
}

// Timestamp returns TS in seconds, or now when the event carries none.
func (e NetEvent) Timestamp(now time.Time) float64 {
	if e.TS != nil {
		return *e.TS
	}
	return UnixSeconds(now)
}

// Info projects the event onto the fields streamed to subscribers.
func (e NetEvent) Info() EventInfo {
	return EventInfo{
		Src:      e.SrcIP,
		Dst:      e.DstIP,
		Proto:    e.Protocol,
		BytesIn:  e.BytesIn,
		BytesOut: e.BytesOut,
		Flag:     e.Flags,
	}
}

// EventInfo is the "event" object of a streamed ScoredEvent.
type EventInfo struct {
	Src      string  `json:"src"`
	Dst      string  `json:"dst"`
	Proto    string  `json:"proto"`
	BytesIn  int64   `json:"bytes_in"`
	BytesOut int64   `json:"bytes_out"`
	Flag     *string `json:"flag"`
}

// ScoredEvent is the outcome of scoring one event or flow.
type ScoredEvent struct {
	Kind         string    `json:"kind"`
	TS           float64   `json:"ts"`
	TSMillis     int64     `json:"ts_ms"`
	Event        EventInfo `json:"event"`
	AnomalyScore float64   `json:"anomaly_score"`
	Prediction   string    `json:"prediction"`
	Error        string    `json:"error,omitempty"`
	// Raw is the posted event behind an error outcome, radio fields included.
	Raw          *NetEvent `json:"raw,omitempty"`
}

// NewScoredEvent builds a successful outcome.
func NewScoredEvent(ts float64, info EventInfo, score float64, prediction string) ScoredEvent {
	return ScoredEvent{
		Kind:         KindFlow,
		TS:           ts,
		TSMillis:     int64(math.Floor(ts * 1000)),
		Event:        info,
		AnomalyScore: score,
		Prediction:   prediction,
	}
}

// NewErrorEvent builds an error-classified outcome carrying the original event.
func NewErrorEvent(ts float64, info EventInfo, err error) ScoredEvent {
	return ScoredEvent{
		Kind:         KindError,
		TS:           ts,
		TSMillis:     int64(math.Floor(ts * 1000)),
		Event:        info,
		AnomalyScore: 0,
		Prediction:   PredictionError,
		Error:        err.Error(),
	}
}

// WithRaw attaches the posted event that produced ev.
func (ev ScoredEvent) WithRaw(raw NetEvent) ScoredEvent {
	ev.Raw = &raw
	return ev
}

// UnixSeconds converts t to fractional seconds since the epoch.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// FromUnixSeconds converts fractional epoch seconds to a time.Time.
func FromUnixSeconds(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}
