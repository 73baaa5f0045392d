package model

import (
	"fmt"
	"sort"
	"time"
)

// FlowKey is the identity of a directional flow within one window.
// Protocol holds the protocol class ("tcp", "udp", "icmp" or "other").
type FlowKey struct {
	SrcIP    string
	SrcPort  uint16
	DstIP    string
	DstPort  uint16
	Protocol string
}

// Reverse returns the key of the opposite direction of the same conversation.
func (k FlowKey) Reverse() FlowKey {
	return FlowKey{
		SrcIP:    k.DstIP,
		SrcPort:  k.DstPort,
		DstIP:    k.SrcIP,
		DstPort:  k.SrcPort,
		Protocol: k.Protocol,
	}
}

func (k FlowKey) String() string {
	return fmt.Sprintf("%s:%d->%s:%d/%s", k.SrcIP, k.SrcPort, k.DstIP, k.DstPort, k.Protocol)
}

// Less orders keys field by field. It gives snapshots a stable iteration order.
func (k FlowKey) Less(o FlowKey) bool {
	if k.SrcIP != o.SrcIP {
		return k.SrcIP < o.SrcIP
	}
	if k.SrcPort != o.SrcPort {
		return k.SrcPort < o.SrcPort
	}
	if k.DstIP != o.DstIP {
		return k.DstIP < o.DstIP
	}
	if k.DstPort != o.DstPort {
		return k.DstPort < o.DstPort
	}
	return k.Protocol < o.Protocol
}

// Packet holds the per-packet fields the aggregator consumes.
type Packet struct {
	Timestamp time.Time
	Length    int
	// Flags is the TCP flag summary as letters ("SA") or a hex mask ("0x12"); empty when absent.
	Flags string
}

// FlowRecord is the running aggregate of one flow inside a window.
type FlowRecord struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Bytes     uint64
	Packets   uint64
	LastFlags string
}

// Duration returns LastSeen-FirstSeen, never negative.
func (r FlowRecord) Duration() time.Duration {
	d := r.LastSeen.Sub(r.FirstSeen)
	if d < 0 {
		return 0
	}
	return d
}

// WindowSnapshot is the immutable flow table captured by a flush.
type WindowSnapshot struct {
	flows   map[FlowKey]FlowRecord
	takenAt time.Time
}

// NewWindowSnapshot copies the given table into a snapshot.
func NewWindowSnapshot(flows map[FlowKey]*FlowRecord, takenAt time.Time) WindowSnapshot {
	copied := make(map[FlowKey]FlowRecord, len(flows))
	for k, r := range flows {
		copied[k] = *r
	}
	return WindowSnapshot{flows: copied, takenAt: takenAt}
}

// Lookup returns the record stored for key.
func (s WindowSnapshot) Lookup(key FlowKey) (FlowRecord, bool) {
	r, ok := s.flows[key]
	return r, ok
}

// Len returns the number of flows in the snapshot.
func (s WindowSnapshot) Len() int {
	return len(s.flows)
}

// TakenAt returns the flush time.
func (s WindowSnapshot) TakenAt() time.Time {
	return s.takenAt
}

// Keys returns all flow keys in ascending order.
func (s WindowSnapshot) Keys() []FlowKey {
	keys := make([]FlowKey, 0, len(s.flows))
	for k := range s.flows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// KeysByFirstSeen returns all flow keys ordered by the first packet of each
// flow, ties broken by key order.
func (s WindowSnapshot) KeysByFirstSeen() []FlowKey {
	keys := s.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		return s.flows[keys[i]].FirstSeen.Before(s.flows[keys[j]].FirstSeen)
	})
	return keys
}
