package pipeline

import (
	"Go2NetSentinel/internal/features"
	"Go2NetSentinel/internal/metrics"
	"Go2NetSentinel/internal/model"
	"Go2NetSentinel/internal/scorer"
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Scorer scores a batch of vectors.
type Scorer interface {
	ScoreVectors(vectors []features.FeatureVector) ([]float64, error)
	Threshold() float64
}

// Publisher delivers a scored event to live subscribers.
type Publisher interface {
	Publish(ev model.ScoredEvent)
}

// Worker is the single consumer of the job queue. Every job produces outcomes,
// successful or error-classified, which are appended to the log and published.
type Worker struct {
	queue     *Queue[Job]
	scorer    Scorer
	log       model.EventWriter
	publisher Publisher
	now       func() time.Time
}

// NewWorker wires a worker. log and publisher may be nil.
func NewWorker(queue *Queue[Job], s Scorer, w model.EventWriter, p Publisher) *Worker {
	return &Worker{queue: queue, scorer: s, log: w, publisher: p, now: time.Now}
}

// Run processes jobs until ctx is cancelled or the queue is closed and drained.
func (w *Worker) Run(ctx context.Context) error {
	log.Println("Scoring worker started.")
	for {
		job, err := w.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) {
				log.Println("Scoring worker stopped: queue drained.")
				return nil
			}
			log.Printf("Scoring worker stopped: %v", err)
			return err
		}
		w.Process(job)
	}
}

// Process scores one job and delivers its outcomes. It never fails: scoring
// errors become error-classified events.
func (w *Worker) Process(job Job) []model.ScoredEvent {
	outcomes := w.score(job)
	for _, ev := range outcomes {
		metrics.EventsScored.WithLabelValues(ev.Prediction).Inc()
		if w.log != nil {
			if err := w.log.Append(ev); err != nil {
				metrics.LogAppendFailures.Inc()
				log.Debugf("Failed to append event to log: %v", err)
			}
		}
		if w.publisher != nil {
			w.publisher.Publish(ev)
		}
	}
	return outcomes
}

func (w *Worker) score(job Job) []model.ScoredEvent {
	switch {
	case job.Event != nil:
		ev := *job.Event
		ts := ev.Timestamp(w.now())
		info := ev.Info()
		scores, err := w.safeScore([]features.FeatureVector{features.FromNetEvent(ev)})
		if err != nil {
			log.Debugf("Scoring event %s -> %s failed: %v", ev.SrcIP, ev.DstIP, err)
			return []model.ScoredEvent{model.NewErrorEvent(ts, info, err).WithRaw(ev)}
		}
		return []model.ScoredEvent{model.NewScoredEvent(ts, info, scores[0], scorer.Label(scores[0], w.scorer.Threshold()))}

	case job.Batch.Len() > 0:
		b := job.Batch
		out := make([]model.ScoredEvent, len(b.Vectors))
		scores, err := w.safeScore(b.Vectors)
		if err != nil {
			log.Debugf("Scoring batch of %d flows failed: %v", len(b.Vectors), err)
			for i := range b.Vectors {
				out[i] = model.NewErrorEvent(b.TS, b.Infos[i], err)
			}
			return out
		}
		thr := w.scorer.Threshold()
		for i, s := range scores {
			out[i] = model.NewScoredEvent(b.TS, b.Infos[i], s, scorer.Label(s, thr))
		}
		return out
	}
	return nil
}

// safeScore turns a panicking model into an error so one bad job cannot end the loop.
func (w *Worker) safeScore(vectors []features.FeatureVector) (scores []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			scores, err = nil, fmt.Errorf("scoring panicked: %v", r)
		}
	}()
	scores, err = w.scorer.ScoreVectors(vectors)
	if err == nil && len(scores) != len(vectors) {
		err = fmt.Errorf("scorer returned %d scores for %d vectors", len(scores), len(vectors))
	}
	return scores, err
}
