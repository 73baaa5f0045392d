package hub

import (
	"Go2NetSentinel/internal/metrics"
	"Go2NetSentinel/internal/model"
	"encoding/json"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Subscriber is one live consumer of broadcast messages.
type Subscriber interface {
	ID() string
	Send(payload []byte) error
}

// Delivery is the outcome of sending one message to one subscriber.
type Delivery struct {
	Subscriber Subscriber
	Err        error
}

// Result summarizes one broadcast.
type Result struct {
	Deliveries []Delivery
	Evicted    []string
}

// Failed returns the deliveries that errored.
func (r Result) Failed() []Delivery {
	var failed []Delivery
	for _, d := range r.Deliveries {
		if d.Err != nil {
			failed = append(failed, d)
		}
	}
	return failed
}

// Hub fans messages out to registered subscribers. A subscriber whose send fails
// is removed after the delivery pass; it is never retried or closed by the hub.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]Subscriber
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{subscribers: make(map[string]Subscriber)}
}

// Register adds s, replacing any subscriber with the same ID.
func (h *Hub) Register(s Subscriber) {
	h.mu.Lock()
	h.subscribers[s.ID()] = s
	n := len(h.subscribers)
	h.mu.Unlock()
	metrics.Subscribers.Set(float64(n))
	log.Debugf("Subscriber %s registered (%d active)", s.ID(), n)
}

// Unregister removes s. Unknown subscribers are ignored.
func (h *Hub) Unregister(s Subscriber) {
	h.unregister(s)
}

// unregister only removes the exact handle, so a subscriber that re-registered
// under the same ID is left alone.
func (h *Hub) unregister(s Subscriber) bool {
	h.mu.Lock()
	current, ok := h.subscribers[s.ID()]
	if ok && current == s {
		delete(h.subscribers, s.ID())
	}
	n := len(h.subscribers)
	h.mu.Unlock()
	metrics.Subscribers.Set(float64(n))
	return ok && current == s
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Broadcast serializes msg once and sends it to a point-in-time copy of the
// subscriber set.
func (h *Hub) Broadcast(msg any) (Result, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal broadcast message: %w", err)
	}
	return h.BroadcastRaw(payload), nil
}

// BroadcastRaw sends an already serialized payload. Every subscriber is sent to
// on its own goroutine, so a slow one delays nobody else's delivery; the call
// returns once all sends have finished, which keeps per-subscriber order.
func (h *Hub) BroadcastRaw(payload []byte) Result {
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	var res Result
	if len(targets) == 0 {
		return res
	}
	res.Deliveries = make([]Delivery, len(targets))
	var wg sync.WaitGroup
	for i, s := range targets {
		wg.Add(1)
		go func(i int, s Subscriber) {
			defer wg.Done()
			res.Deliveries[i] = Delivery{Subscriber: s, Err: s.Send(payload)}
		}(i, s)
	}
	wg.Wait()

	for _, d := range res.Failed() {
		if h.unregister(d.Subscriber) {
			res.Evicted = append(res.Evicted, d.Subscriber.ID())
			metrics.SubscribersEvicted.Inc()
			log.Debugf("Subscriber %s evicted: %v", d.Subscriber.ID(), d.Err)
		}
	}
	return res
}

// Publish broadcasts a scored event.
func (h *Hub) Publish(ev model.ScoredEvent) {
	if _, err := h.Broadcast(ev); err != nil {
		log.Warnf("Dropping scored event: %v", err)
	}
}
