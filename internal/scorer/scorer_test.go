package scorer

import (
	"Go2NetSentinel/internal/features"
	"Go2NetSentinel/internal/model"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testForest isolates rows whose first feature exceeds 1000 after a single split.
func testForest() *IsolationForest {
	return &IsolationForest{
		SampleSize: 256,
		Offset:     -0.5,
		Trees: []Tree{{Nodes: []Node{
			{Feature: 0, Threshold: 1000, Left: 1, Right: 2},
			{Left: -1, Right: -1, Size: 255},
			{Left: -1, Right: -1, Size: 1},
		}}},
	}
}

func testBundle() *Bundle {
	f := testForest()
	normal := f.DecisionFunction([]float64{10})
	odd := f.DecisionFunction([]float64{5000})
	return &Bundle{
		Model:    f,
		Features: []string{features.ColSrcBytes, "protocol_type_udp"},
		ScoreMin: odd,
		ScoreMax: normal,
	}
}

type constModel float64

func (c constModel) DecisionFunction([]float64) float64 { return float64(c) }

func TestAveragePathLength(t *testing.T) {
	assert.Equal(t, 0.0, averagePathLength(0))
	assert.Equal(t, 0.0, averagePathLength(1))
	assert.Equal(t, 1.0, averagePathLength(2))
	assert.InDelta(t, 10.2448, averagePathLength(256), 1e-3)
}

func TestIsolationForest_ShorterPathIsLessNormal(t *testing.T) {
	f := testForest()
	normal := f.DecisionFunction([]float64{10})
	odd := f.DecisionFunction([]float64{5000})
	assert.Greater(t, normal, odd)

	s := f.ScoreSamples([]float64{5000})
	assert.True(t, s >= -1 && s < 0, "score_samples out of range: %v", s)

	// Missing features read as 0 and follow the left branch.
	assert.Equal(t, normal, f.DecisionFunction(nil))
}

func TestIsolationForest_Validate(t *testing.T) {
	assert.NoError(t, testForest().Validate(1))
	assert.Error(t, testForest().Validate(0), "feature index beyond the column list")
	assert.Error(t, (&IsolationForest{}).Validate(1))

	bad := testForest()
	bad.Trees[0].Nodes[0].Right = 9
	assert.Error(t, bad.Validate(1))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 0.0, Normalize(0.2, -0.2, 0.2))
	assert.Equal(t, 1.0, Normalize(-0.2, -0.2, 0.2))
	assert.InDelta(t, 0.5, Normalize(0, -0.2, 0.2), 1e-12)

	// Raw values outside the training bounds are clamped.
	assert.Equal(t, 0.0, Normalize(7, -0.2, 0.2))
	assert.Equal(t, 1.0, Normalize(-7, -0.2, 0.2))

	// Degenerate bounds fall back to a unit denominator.
	assert.InDelta(t, 0.25, Normalize(0.05, 0.3, 0.3), 1e-12)
	assert.Equal(t, 0.0, Normalize(0.3, 0.3, 0.3))
}

func TestNormalize_AlwaysInUnitInterval(t *testing.T) {
	for _, raw := range []float64{-1e300, -5, -1, -1e-12, 0, 1e-12, 0.3, 2, 1e300, math.Inf(1), math.Inf(-1)} {
		s := Normalize(raw, -0.1, 0.1)
		assert.True(t, s >= 0 && s <= 1, "raw %v gave %v", raw, s)
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, model.PredictionAnomaly, Label(0.51, 0.5))
	assert.Equal(t, model.PredictionNormal, Label(0.5, 0.5), "threshold is exclusive")
	assert.Equal(t, model.PredictionNormal, Label(0, 0.5))
}

func TestReindex(t *testing.T) {
	m := features.Matrix{
		Columns: []string{"a", "b", "extra"},
		Rows:    [][]float64{{1, 2, 3}, {4, 5, 6}},
	}
	out := Reindex(m, []string{"b", "missing", "a"})
	assert.Equal(t, [][]float64{{2, 0, 1}, {5, 0, 4}}, out)
}

func TestBundle_Score(t *testing.T) {
	b := testBundle()
	scores, err := b.ScoreVectors([]features.FeatureVector{
		{SrcBytes: 10, ProtocolType: "tcp"},
		{SrcBytes: 5000, ProtocolType: "udp"},
	})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.InDelta(t, 0.0, scores[0], 1e-12)
	assert.InDelta(t, 1.0, scores[1], 1e-12)
}

func TestBundle_ScoreRejectsNonFinite(t *testing.T) {
	b := &Bundle{Model: constModel(math.NaN()), Features: []string{"duration"}}
	_, err := b.ScoreVectors([]features.FeatureVector{{}})
	assert.ErrorContains(t, err, "non-finite")
}

func TestSaveAndLoadBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "isoforest.gob")
	orig := testBundle()
	orig.ScoreMean, orig.ScoreStd = -0.01, 0.02
	require.NoError(t, SaveBundle(orig, path))

	loaded, err := LoadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, orig.Features, loaded.Features)
	assert.Equal(t, orig.ScoreMin, loaded.ScoreMin)
	assert.Equal(t, orig.ScoreStd, loaded.ScoreStd)
	assert.IsType(t, &IsolationForest{}, loaded.Model)
	assert.Equal(t, orig.Model.DecisionFunction([]float64{5000, 1}), loaded.Model.DecisionFunction([]float64{5000, 1}))

	_, err = os.Stat(path + ".json")
	assert.NoError(t, err, "summary sidecar written")
}

func TestLoadBundle_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadBundle(filepath.Join(dir, "absent.gob"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := filepath.Join(dir, "garbage.gob")
	require.NoError(t, os.WriteFile(garbage, []byte("not a bundle"), 0644))
	_, err = LoadBundle(garbage)
	assert.ErrorContains(t, err, "decode")
}

func TestHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "isoforest.gob")
	h := NewHolder(path, 0.5)

	require.NoError(t, h.LoadAtStartup(), "a missing bundle is not fatal")
	assert.False(t, h.Loaded())
	assert.Equal(t, Status{}, h.Status())

	_, err := h.Get()
	assert.ErrorIs(t, err, ErrModelNotLoaded)
	assert.ErrorContains(t, err, path)
	_, err = h.ScoreVectors([]features.FeatureVector{{}})
	assert.ErrorIs(t, err, ErrModelNotLoaded)

	require.NoError(t, SaveBundle(testBundle(), path))
	require.NoError(t, h.Reload())
	require.True(t, h.Loaded())

	st := h.Status()
	assert.True(t, st.ModelLoaded)
	require.NotNil(t, st.Features)
	assert.Equal(t, 2, *st.Features)

	// A failed reload keeps the previous bundle.
	require.NoError(t, os.WriteFile(path, []byte("corrupt"), 0644))
	assert.Error(t, h.Reload())
	assert.True(t, h.Loaded())

	scores, err := h.ScoreVectors([]features.FeatureVector{{SrcBytes: 5000}})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, scores[0], 1e-12)
}
