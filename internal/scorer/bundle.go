package scorer

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

func init() {
	// Bundle.Model is an interface; gob needs the concrete types up front.
	gob.Register(&IsolationForest{})
}

// Bundle is the persisted scorer state: a model, the ordered feature columns it
// expects and the statistics of its raw decision values on the training set.
type Bundle struct {
	Model     Model
	Features  []string
	ScoreMin  float64
	ScoreMax  float64
	ScoreMean float64
	ScoreStd  float64
}

// Summary is the human-readable sidecar written next to a bundle.
type Summary struct {
	Features  int     `json:"features"`
	ScoreMin  float64 `json:"score_min"`
	ScoreMax  float64 `json:"score_max"`
	ScoreMean float64 `json:"score_mean"`
	ScoreStd  float64 `json:"score_std"`
	SavedAt   string  `json:"saved_at"`
}

// Validate checks the bundle is usable for scoring.
func (b *Bundle) Validate() error {
	if b.Model == nil {
		return fmt.Errorf("bundle has no model")
	}
	if len(b.Features) == 0 {
		return fmt.Errorf("bundle has no feature columns")
	}
	if f, ok := b.Model.(*IsolationForest); ok {
		if err := f.Validate(len(b.Features)); err != nil {
			return fmt.Errorf("invalid forest: %w", err)
		}
	}
	return nil
}

// LoadBundle reads a gob-encoded bundle from path.
func LoadBundle(path string) (*Bundle, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model bundle '%s': %w", path, err)
	}
	defer file.Close()

	var b Bundle
	if err := gob.NewDecoder(file).Decode(&b); err != nil {
		return nil, fmt.Errorf("failed to decode model bundle '%s': %w", path, err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("model bundle '%s': %w", path, err)
	}
	return &b, nil
}

// SaveBundle writes b to path in gob format, plus a JSON summary at path + ".json".
// The bundle is written to a temporary file first and renamed into place so a
// concurrent reload never sees a partial file.
func SaveBundle(b *Bundle, path string) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create bundle directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".bundle-*")
	if err != nil {
		return fmt.Errorf("failed to create bundle file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(b); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode bundle to gob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move bundle into place: %w", err)
	}

	summary := Summary{
		Features:  len(b.Features),
		ScoreMin:  b.ScoreMin,
		ScoreMax:  b.ScoreMax,
		ScoreMean: b.ScoreMean,
		ScoreStd:  b.ScoreStd,
		SavedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	summaryFile, err := os.Create(path + ".json")
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	jsonEncoder := json.NewEncoder(summaryFile)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	return nil
}
