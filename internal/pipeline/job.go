package pipeline

import (
	"Go2NetSentinel/internal/features"
	"Go2NetSentinel/internal/model"
)

// Job is one unit of work for the scoring worker: either a single raw event or a
// batch of feature vectors scored together.
type Job struct {
	Event *model.NetEvent
	Batch *Batch
}

// Batch is a set of encoded flows sharing one timestamp.
type Batch struct {
	TS      float64
	Vectors []features.FeatureVector
	Infos   []model.EventInfo
}

// Len returns the number of flows in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Vectors)
}

// EventJob wraps a single raw event.
func EventJob(ev model.NetEvent) Job {
	return Job{Event: &ev}
}

// WindowJob wraps the encoded flows of one window flush.
func WindowJob(ts float64, flows []features.Flow) Job {
	b := &Batch{
		TS:      ts,
		Vectors: make([]features.FeatureVector, len(flows)),
		Infos:   make([]model.EventInfo, len(flows)),
	}
	for i, f := range flows {
		b.Vectors[i] = f.Vector
		b.Infos[i] = features.Info(f.Key, f.Vector)
	}
	return Job{Batch: b}
}

// RecordsJob wraps externally supplied feature records, which carry no addresses.
func RecordsJob(ts float64, vectors []features.FeatureVector) Job {
	b := &Batch{
		TS:      ts,
		Vectors: vectors,
		Infos:   make([]model.EventInfo, len(vectors)),
	}
	for i, v := range vectors {
		b.Infos[i] = features.Info(model.FlowKey{}, v)
	}
	return Job{Batch: b}
}
