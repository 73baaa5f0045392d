package features

import (
	"Go2NetSentinel/internal/model"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Flow is one encoded entry of a window batch.
type Flow struct {
	Key    model.FlowKey
	Vector FeatureVector
}

// BuildBatch encodes a snapshot into a batch. A flow whose reverse key was already
// emitted is skipped, so each conversation appears at most once and is reported in
// the direction that opened it. Keys are visited in first-seen order and at most
// maxFlows entries are returned (maxFlows <= 0 means no limit).
func BuildBatch(snapshot model.WindowSnapshot, maxFlows int) []Flow {
	if snapshot.Len() == 0 {
		return nil
	}
	agg := ComputeAggregates(snapshot)

	batch := make([]Flow, 0, snapshot.Len())
	seen := make(map[model.FlowKey]struct{}, snapshot.Len())
	for _, key := range snapshot.KeysByFirstSeen() {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		rev := key.Reverse()
		if _, ok := snapshot.Lookup(rev); ok {
			seen[rev] = struct{}{}
		}

		rec, _ := snapshot.Lookup(key)
		batch = append(batch, Flow{Key: key, Vector: Encode(snapshot, key, rec, agg)})
		if maxFlows > 0 && len(batch) >= maxFlows {
			break
		}
	}
	return batch
}

// Record is an externally supplied feature record, as decoded from JSON.
type Record map[string]any

// FromRecord normalizes a record into the schema: unknown columns are dropped,
// missing or null numeric columns become 0, missing or null categorical columns
// become "unknown". A numeric column holding a non-numeric value is an error.
func FromRecord(rec Record) (FeatureVector, error) {
	v := FeatureVector{ProtocolType: Unknown, Service: Unknown, Flag: Unknown}

	nums := make(map[string]float64, len(NumericColumns))
	for _, col := range NumericColumns {
		raw, ok := rec[col]
		if !ok || raw == nil {
			continue
		}
		f, err := toFloat(raw)
		if err != nil {
			return FeatureVector{}, fmt.Errorf("column %q: %w", col, err)
		}
		nums[col] = f
	}
	v.Duration = nums[ColDuration]
	v.SrcBytes = nums[ColSrcBytes]
	v.DstBytes = nums[ColDstBytes]
	v.Count = nums[ColCount]
	v.SrvCount = nums[ColSrvCount]
	v.SameSrvRate = nums[ColSameSrvRate]
	v.DstHostCount = nums[ColDstHostCount]
	v.DstHostSrvCount = nums[ColDstHostSrvCount]

	if s, ok := toCategory(rec[ColProtocolType]); ok {
		v.ProtocolType = s
	}
	if s, ok := toCategory(rec[ColService]); ok {
		v.Service = s
	}
	if s, ok := toCategory(rec[ColFlag]); ok {
		v.Flag = s
	}
	return v, nil
}

func toFloat(raw any) (float64, error) {
	var f float64
	switch n := raw.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", n.String())
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("not numeric: %q", n)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("not numeric: %v", raw)
	}
	if math.IsNaN(f) {
		return 0, nil
	}
	return f, nil
}

func toCategory(raw any) (string, bool) {
	switch c := raw.(type) {
	case nil:
		return "", false
	case string:
		return c, true
	default:
		return fmt.Sprint(c), true
	}
}

// Matrix is a batch expanded into numeric columns.
type Matrix struct {
	Columns []string
	Rows    [][]float64
}

// Column returns the index of col, or -1.
func (m Matrix) Column(col string) int {
	for i, c := range m.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// ExpandBatch turns vectors into a numeric matrix. Numeric columns come first in
// schema order; each categorical field then gets one indicator column
// "<field>_<category>" per category observed in the batch, except the
// alphabetically first one.
func ExpandBatch(vectors []FeatureVector) Matrix {
	columns := append([]string(nil), NumericColumns...)

	type indicator struct {
		field    string
		category string
	}
	var indicators []indicator
	for _, field := range CategoricalColumns {
		distinct := make(map[string]struct{})
		for _, v := range vectors {
			c, _ := v.Categorical(field)
			distinct[c] = struct{}{}
		}
		categories := make([]string, 0, len(distinct))
		for c := range distinct {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		if len(categories) > 0 {
			categories = categories[1:]
		}
		for _, c := range categories {
			indicators = append(indicators, indicator{field, c})
			columns = append(columns, field+"_"+c)
		}
	}

	rows := make([][]float64, len(vectors))
	for i, v := range vectors {
		row := make([]float64, len(columns))
		for j, col := range NumericColumns {
			row[j], _ = v.Numeric(col)
		}
		for j, ind := range indicators {
			if c, _ := v.Categorical(ind.field); c == ind.category {
				row[len(NumericColumns)+j] = 1
			}
		}
		rows[i] = row
	}
	return Matrix{Columns: columns, Rows: rows}
}
