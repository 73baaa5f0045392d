package scorer

import (
	"Go2NetSentinel/internal/features"
	"Go2NetSentinel/internal/metrics"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrModelNotLoaded is returned by scoring calls while no bundle is loaded.
var ErrModelNotLoaded = errors.New("model not loaded")

// Status describes the currently loaded bundle.
type Status struct {
	ModelLoaded bool     `json:"model_loaded"`
	Features    *int     `json:"features,omitempty"`
	ScoreMin    *float64 `json:"score_min,omitempty"`
	ScoreMax    *float64 `json:"score_max,omitempty"`
}

// Holder shares one bundle read-only between all scoring calls and lets it be
// replaced atomically.
type Holder struct {
	path      string
	threshold float64
	bundle    atomic.Pointer[Bundle]
}

// NewHolder creates an empty holder for the bundle at path.
func NewHolder(path string, threshold float64) *Holder {
	return &Holder{path: path, threshold: threshold}
}

// Path returns the configured bundle location.
func (h *Holder) Path() string { return h.path }

// Threshold returns the anomaly label threshold.
func (h *Holder) Threshold() float64 { return h.threshold }

// LoadAtStartup loads the bundle if the file exists. A missing file only logs a
// warning: the service runs and answers scoring requests as unavailable.
func (h *Holder) LoadAtStartup() error {
	if _, err := os.Stat(h.path); errors.Is(err, os.ErrNotExist) {
		log.Warnf("Model not found at %s. Scoring will be unavailable until a reload.", h.path)
		return nil
	}
	return h.Reload()
}

// Reload reads the bundle from the configured path and swaps it in. On failure
// the previous bundle stays in place.
func (h *Holder) Reload() error {
	start := time.Now()
	b, err := LoadBundle(h.path)
	if err != nil {
		return err
	}
	h.Set(b)
	log.Printf("Model loaded from %s: %d features in %v", h.path, len(b.Features), time.Since(start))
	return nil
}

// Set installs b directly.
func (h *Holder) Set(b *Bundle) {
	h.bundle.Store(b)
	if b != nil {
		metrics.ModelLoaded.Set(1)
	} else {
		metrics.ModelLoaded.Set(0)
	}
}

// Get returns the loaded bundle, or ErrModelNotLoaded naming the expected path.
func (h *Holder) Get() (*Bundle, error) {
	b := h.bundle.Load()
	if b == nil {
		return nil, fmt.Errorf("%w: ensure %s exists or reload", ErrModelNotLoaded, h.path)
	}
	return b, nil
}

// Loaded reports whether a bundle is installed.
func (h *Holder) Loaded() bool {
	return h.bundle.Load() != nil
}

// Status reports the loaded bundle's shape and bounds.
func (h *Holder) Status() Status {
	b := h.bundle.Load()
	if b == nil {
		return Status{}
	}
	n := len(b.Features)
	lo, hi := b.ScoreMin, b.ScoreMax
	return Status{ModelLoaded: true, Features: &n, ScoreMin: &lo, ScoreMax: &hi}
}

// ScoreVectors scores vectors as one batch with the current bundle.
func (h *Holder) ScoreVectors(vectors []features.FeatureVector) ([]float64, error) {
	b, err := h.Get()
	if err != nil {
		return nil, err
	}
	start := time.Now()
	scores, err := b.ScoreVectors(vectors)
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	return scores, err
}
