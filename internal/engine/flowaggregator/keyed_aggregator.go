package flowaggregator

import (
	"Go2NetSentinel/internal/metrics"
	"Go2NetSentinel/internal/model"
	"sync"
	"time"
)

// Aggregator holds the live flow table of the current window.
// AddPacket and Flush share one mutex, so every packet lands in exactly one
// window: either the table being swapped out or its empty replacement.
type Aggregator struct {
	mu    sync.Mutex
	flows map[model.FlowKey]*model.FlowRecord
	now   func() time.Time
}

// NewAggregator creates an aggregator with an empty live table.
func NewAggregator() *Aggregator {
	return &Aggregator{
		flows: make(map[model.FlowKey]*model.FlowRecord),
		now:   time.Now,
	}
}

// AddPacket creates or updates the flow for key.
func (a *Aggregator) AddPacket(key model.FlowKey, packet model.Packet) {
	length := uint64(0)
	if packet.Length > 0 {
		length = uint64(packet.Length)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if flow, ok := a.flows[key]; ok {
		// Out-of-order timestamps widen the window instead of shrinking it.
		if packet.Timestamp.After(flow.LastSeen) {
			flow.LastSeen = packet.Timestamp
		}
		if packet.Timestamp.Before(flow.FirstSeen) {
			flow.FirstSeen = packet.Timestamp
		}
		flow.Bytes += length
		flow.Packets++
		if packet.Flags != "" {
			flow.LastFlags = packet.Flags
		}
	} else {
		a.flows[key] = &model.FlowRecord{
			FirstSeen: packet.Timestamp,
			LastSeen:  packet.Timestamp,
			Bytes:     length,
			Packets:   1,
			LastFlags: packet.Flags,
		}
	}
	metrics.PacketsAggregated.Inc()
}

// Flush swaps the live table for an empty one and returns the old table as a snapshot.
// Only the pointer swap happens under the lock; the copy into the snapshot does not.
func (a *Aggregator) Flush() model.WindowSnapshot {
	a.mu.Lock()
	old := a.flows
	a.flows = make(map[model.FlowKey]*model.FlowRecord)
	a.mu.Unlock()

	return model.NewWindowSnapshot(old, a.now())
}

// GetFlowCount returns the number of flows in the live table.
func (a *Aggregator) GetFlowCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.flows)
}

// GetFlow returns a copy of the live record for key.
func (a *Aggregator) GetFlow(key model.FlowKey) (model.FlowRecord, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if flow, ok := a.flows[key]; ok {
		return *flow, true
	}
	return model.FlowRecord{}, false
}
