package alerter

import (
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/model"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Alerter collects anomaly-labelled events from the hub and sends one
// consolidated notification per check interval when enough have been seen.
type Alerter struct {
	notifier      model.Notifier
	checkInterval time.Duration
	minAnomalies  int
	maxListed     int

	mu      sync.Mutex
	count   int
	listed  []model.ScoredEvent
	started time.Time
	now     func() time.Time
}

// NewAlerter creates a new Alerter instance checking every interval.
func NewAlerter(interval time.Duration, cfg config.AlerterConfig, notifier model.Notifier) (*Alerter, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid check interval for alerter: %s", interval)
	}
	a := &Alerter{
		notifier:      notifier,
		checkInterval: interval,
		minAnomalies:  max(1, cfg.MinAnomalies),
		maxListed:     max(1, cfg.MaxListed),
		now:           time.Now,
	}
	a.started = a.now()
	return a, nil
}

// ID implements hub.Subscriber.
func (a *Alerter) ID() string { return "alerter" }

// Send implements hub.Subscriber. Only anomaly events are kept; a payload that
// is not a scored event is ignored so the alerter is never evicted.
func (a *Alerter) Send(payload []byte) error {
	var ev model.ScoredEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Debugf("Alerter ignoring message: %v", err)
		return nil
	}
	if ev.Prediction != model.PredictionAnomaly {
		return nil
	}
	a.mu.Lock()
	a.count++
	if len(a.listed) < a.maxListed {
		a.listed = append(a.listed, ev)
	}
	a.mu.Unlock()
	return nil
}

// Run evaluates the collected anomalies every check interval until ctx is
// cancelled, then evaluates once more.
func (a *Alerter) Run(ctx context.Context) {
	log.Println("Alerter started")
	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Evaluate()
		case <-ctx.Done():
			log.Println("Stopping Alerter...")
			a.Evaluate()
			return
		}
	}
}

// Evaluate sends a digest when at least minAnomalies were counted since the
// last digest. It reports whether a notification was attempted.
func (a *Alerter) Evaluate() bool {
	a.mu.Lock()
	count, listed, since := a.count, a.listed, a.started
	if count < a.minAnomalies {
		a.mu.Unlock()
		return false
	}
	a.count, a.listed, a.started = 0, nil, a.now()
	a.mu.Unlock()

	log.Printf("Alerter evaluation completed. %d anomalies since %s.", count, since.Format(time.RFC3339))
	if a.notifier == nil {
		return true
	}
	subject := fmt.Sprintf("Go2NetSentinel Anomaly Summary (%d Detected)", count)
	if err := a.notifier.Send(subject, digest(count, listed, since)); err != nil {
		log.Errorf("Failed to send anomaly notification: %v", err)
	} else {
		log.Info("Anomaly notification sent successfully.")
	}
	return true
}

func digest(count int, listed []model.ScoredEvent, since time.Time) string {
	var b strings.Builder
	b.WriteString("<h1>Go2NetSentinel Anomaly Summary</h1>")
	fmt.Fprintf(&b, "<p>%d anomalous events were scored since %s.</p>", count, since.UTC().Format(time.RFC3339))
	b.WriteString("<table><tr><th>Time</th><th>Source</th><th>Destination</th><th>Protocol</th><th>Score</th></tr>")
	for _, ev := range listed {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%.3f</td></tr>",
			model.FromUnixSeconds(ev.TS).UTC().Format(time.RFC3339),
			html.EscapeString(ev.Event.Src),
			html.EscapeString(ev.Event.Dst),
			html.EscapeString(ev.Event.Proto),
			ev.AnomalyScore)
	}
	b.WriteString("</table>")
	if count > len(listed) {
		fmt.Fprintf(&b, "<p>%d more not listed.</p>", count-len(listed))
	}
	return b.String()
}
