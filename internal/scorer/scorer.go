package scorer

import (
	"Go2NetSentinel/internal/features"
	"Go2NetSentinel/internal/model"
	"fmt"
	"math"
)

const epsilon = 1e-9

// Reindex projects the matrix onto cols: columns the matrix lacks are filled
// with 0, extra columns are dropped, and the result follows cols' order.
func Reindex(m features.Matrix, cols []string) [][]float64 {
	index := make(map[string]int, len(m.Columns))
	for i, c := range m.Columns {
		index[c] = i
	}
	out := make([][]float64, len(m.Rows))
	for r, row := range m.Rows {
		projected := make([]float64, len(cols))
		for j, c := range cols {
			if i, ok := index[c]; ok && i < len(row) {
				projected[j] = row[i]
			}
		}
		out[r] = projected
	}
	return out
}

// Normalize maps a raw decision value to [0,1] using the training-set bounds,
// 1 being the most suspicious.
func Normalize(raw, scoreMin, scoreMax float64) float64 {
	denom := scoreMax - scoreMin
	if !(denom > epsilon) {
		denom = 1
	}
	return clamp01((scoreMax - raw) / denom)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Label classifies a normalized score.
func Label(score, threshold float64) string {
	if score > threshold {
		return model.PredictionAnomaly
	}
	return model.PredictionNormal
}

// Score returns one normalized anomaly score per matrix row.
func (b *Bundle) Score(m features.Matrix) ([]float64, error) {
	if b == nil || b.Model == nil {
		return nil, ErrModelNotLoaded
	}
	rows := Reindex(m, b.Features)
	scores := make([]float64, len(rows))
	for i, row := range rows {
		raw := b.Model.DecisionFunction(row)
		if math.IsNaN(raw) || math.IsInf(raw, 0) {
			return nil, fmt.Errorf("row %d: model returned non-finite score %v", i, raw)
		}
		scores[i] = Normalize(raw, b.ScoreMin, b.ScoreMax)
	}
	return scores, nil
}

// ScoreVectors expands vectors as one batch and scores them.
func (b *Bundle) ScoreVectors(vectors []features.FeatureVector) ([]float64, error) {
	return b.Score(features.ExpandBatch(vectors))
}
