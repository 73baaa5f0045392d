package model

// EventWriter defines a generic interface for persisting scored events.
type EventWriter interface {
	// Append stores one scored event. Implementations must be safe to call
	// from the scoring worker while readers query the same store.
	Append(ev ScoredEvent) error
}
