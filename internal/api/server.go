// Package api exposes the scoring pipeline over HTTP, WebSocket and gRPC health.
package api

import (
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/eventlog"
	"Go2NetSentinel/internal/features"
	"Go2NetSentinel/internal/hub"
	"Go2NetSentinel/internal/model"
	"Go2NetSentinel/internal/pipeline"
	"Go2NetSentinel/internal/scorer"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 8 << 20

// Deps are the pipeline components the handlers work on.
type Deps struct {
	Holder *scorer.Holder
	Queue  *pipeline.Queue[pipeline.Job]
	Events eventlog.Log
	Hub    *hub.Hub
	// Health, when set, is refreshed after every reload.
	Health *HealthServer
}

// Server holds the dependencies for API handlers.
type Server struct {
	deps     Deps
	origins  map[string]bool
	upgrader websocket.Upgrader
	now      func() time.Time
}

// NewServer creates the HTTP API over deps.
func NewServer(cfg config.APIConfig, deps Deps) *Server {
	s := &Server{
		deps:    deps,
		origins: make(map[string]bool, len(cfg.AllowedOrigins)),
		now:     time.Now,
	}
	for _, o := range cfg.AllowedOrigins {
		s.origins[o] = true
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the router wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.HandleFunc("/status", s.statusHandler).Methods("GET")
	r.HandleFunc("/score", s.scoreHandler).Methods("POST")
	r.HandleFunc("/ingest", s.ingestHandler).Methods("POST")
	r.HandleFunc("/ingest/batch", s.ingestBatchHandler).Methods("POST")
	r.HandleFunc("/recent", s.recentHandler).Methods("GET")
	r.HandleFunc("/reload", s.reloadHandler).Methods("POST")
	r.HandleFunc("/ws/stream", s.streamHandler)
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return s.cors(r)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Holder.Status())
}

type scoreRequest struct {
	Records []features.Record `json:"records"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
}

func (s *Server) scoreHandler(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	vectors, err := toVectors(req.Records)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(vectors) == 0 {
		if _, err := s.deps.Holder.Get(); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, scoreResponse{Scores: []float64{}})
		return
	}

	scores, err := s.deps.Holder.ScoreVectors(vectors)
	switch {
	case errors.Is(err, scorer.ErrModelNotLoaded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("scoring failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{Scores: scores})
}

func (s *Server) ingestHandler(w http.ResponseWriter, r *http.Request) {
	var ev model.NetEvent
	if err := decodeBody(w, r, &ev); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if ev.SrcIP == "" || ev.DstIP == "" || ev.Protocol == "" {
		writeError(w, http.StatusBadRequest, "src_ip, dst_ip and protocol are required")
		return
	}
	if ev.TS == nil {
		ts := model.UnixSeconds(s.now())
		ev.TS = &ts
	}
	if !s.deps.Queue.Push(pipeline.EventJob(ev)) {
		writeError(w, http.StatusServiceUnavailable, "pipeline is shutting down")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

type batchRequest struct {
	Timestamp *float64          `json:"timestamp"`
	Flows     []features.Record `json:"flows"`
}

func (s *Server) ingestBatchHandler(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	vectors, err := toVectors(req.Flows)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ts := model.UnixSeconds(s.now())
	if req.Timestamp != nil {
		ts = *req.Timestamp
	}
	if len(vectors) > 0 && !s.deps.Queue.Push(pipeline.RecordsJob(ts, vectors)) {
		writeError(w, http.StatusServiceUnavailable, "pipeline is shutting down")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "queued", "flows": len(vectors)})
}

func (s *Server) recentHandler(w http.ResponseWriter, r *http.Request) {
	n := eventlog.DefaultRecent
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid n '%s'", raw))
			return
		}
		n = v
	}
	rows, err := s.deps.Events.Recent(r.Context(), n)
	switch {
	case errors.Is(err, eventlog.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) reloadHandler(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Holder.Reload()
	if s.deps.Health != nil {
		s.deps.Health.Update()
	}
	if err != nil {
		log.Errorf("Model reload failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Holder.Status())
}

// streamHandler upgrades to a WebSocket and keeps the subscriber registered
// until the client goes away or a send fails.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debugf("WebSocket upgrade failed: %v", err)
		return
	}
	sub := hub.NewWSSubscriber(conn, 5*time.Second)
	s.deps.Hub.Register(sub)
	err = sub.ReadLoop()
	log.Debugf("Subscriber %s disconnected: %v", sub.ID(), err)
	s.deps.Hub.Unregister(sub)
	sub.Close()
}

func toVectors(records []features.Record) ([]features.FeatureVector, error) {
	vectors := make([]features.FeatureVector, 0, len(records))
	for i, rec := range records {
		v, err := features.FromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode request: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
