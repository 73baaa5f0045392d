package main

import (
	"Go2NetSentinel/internal/model"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	protocols = []string{"tcp", "udp", "icmp"}
	flags     = []string{"", "S", "SA", "PA", "FA"}
	cells     = []string{"eNB-1123", "gNB-77A2", "gNB-77B4"}
)

func randIP(rng *rand.Rand, a, b int) string {
	return fmt.Sprintf("%d.%d.%d.%d", a, b, rng.Intn(256), rng.Intn(254)+1)
}

func round1(v float64) *float64 {
	r := math.Round(v*10) / 10
	return &r
}

func randomEvent(rng *rand.Rand, now time.Time) model.NetEvent {
	ev := model.NetEvent{
		SrcIP:    randIP(rng, 10, rng.Intn(256)),
		DstIP:    randIP(rng, 172, 16+rng.Intn(16)),
		Protocol: protocols[rng.Intn(len(protocols))],
		BytesIn:  int64(100 + rng.Intn(19901)),
		BytesOut: int64(50 + rng.Intn(14951)),
		RSRP:     round1(-105 + rng.Float64()*30),
		RSRQ:     round1(-20 + rng.Float64()*17),
		SINR:     round1(-5 + rng.Float64()*30),
	}
	if f := flags[rng.Intn(len(flags))]; f != "" {
		ev.Flags = &f
	}
	imsi := fmt.Sprintf("40401%d", 90+rng.Intn(10))
	cell := cells[rng.Intn(len(cells))]
	ts := model.UnixSeconds(now)
	ev.IMSI, ev.CellID, ev.TS = &imsi, &cell, &ts
	return ev
}

func post(ctx context.Context, client *http.Client, url string, ev model.NetEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

func main() {
	base := flag.String("url", "http://localhost:8000", "Base URL of ns-engine.")
	interval := flag.Duration("interval", 150*time.Millisecond, "Delay between events.")
	count := flag.Int("n", 0, "Number of events to send (0 = until interrupted).")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	client := &http.Client{Timeout: 5 * time.Second}
	url := *base + "/ingest"
	log.Printf("Posting events to %s every %s", url, *interval)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	sent := 0
	for *count == 0 || sent < *count {
		select {
		case <-ctx.Done():
			log.Printf("Stopped after %d events.", sent)
			return
		case now := <-ticker.C:
			ev := randomEvent(rng, now)
			if err := post(ctx, client, url, ev); err != nil {
				log.Warnf("post error: %v", err)
				continue
			}
			sent++
			log.Debugf("sent %s -> %s %s", ev.SrcIP, ev.DstIP, ev.Protocol)
		}
	}
	log.Printf("Sent %d events.", sent)
}
