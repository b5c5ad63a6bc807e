package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"glucose-bridge/internal/model"
	"glucose-bridge/internal/relay"
	"glucose-bridge/internal/store"
	"glucose-bridge/internal/trend"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Server struct {
	repo           *store.Repo
	relay          *relay.Relay
	thresholds     trend.Thresholds
	sampleInterval time.Duration
}

func New(repo *store.Repo, rly *relay.Relay, th trend.Thresholds, sampleInterval time.Duration) *Server {
	return &Server{repo: repo, relay: rly, thresholds: th, sampleInterval: sampleInterval}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/glucose/latest", s.handleLatest)
		r.Get("/glucose/recent", s.handleRecent)
		r.Post("/glucose/readings", s.handleCreateReading)
		r.Post("/watch/sync", s.handleWatchSync)
		r.Get("/watch/status", s.handleWatchStatus)
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// handleLatest returns the newest reading, or an explicit null when the
// store is empty. The frontend must never mistake "no data" for 0 mmol/L.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rd, err := s.repo.Latest(r.Context())
	if err != nil {
		slog.Error("latest reading query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not query readings"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reading": rd})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("range")
	within, err := model.ParseTimeRange(label)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	rows, err := s.repo.Recent(r.Context(), within)
	if err != nil {
		slog.Error("recent readings query failed", "range", label, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not query readings"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"range": strings.ToLower(strings.TrimSpace(label)), "readings": rows})
}

type createReadingRequest struct {
	Value     float64    `json:"value"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// handleCreateReading is the manual-entry path. The new value is
// classified against the latest stored reading, same as an automatic sync
// record would be against its predecessor.
func (s *Server) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	var req createReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Value <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value must be positive"})
		return
	}
	ts := time.Now().UTC()
	if req.Timestamp != nil {
		ts = req.Timestamp.UTC()
	}

	var previous *float64
	prev, err := s.repo.Latest(r.Context())
	if err != nil {
		slog.Error("latest reading query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not query readings"})
		return
	}
	if prev != nil {
		previous = &prev.Value
	}

	rd := &model.Reading{
		Source: "manual",
		TS:     ts,
		Value:  req.Value,
		Trend:  trend.Classify(req.Value, previous, s.sampleInterval, s.thresholds),
	}
	if err := s.repo.Append(r.Context(), rd); err != nil {
		if errors.Is(err, store.ErrInvalidReading) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		slog.Error("manual reading append failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not store reading"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"reading": rd})
}

// handleWatchSync triggers a manual send of the latest reading. Transport
// failures come back as a structured result with the error string intact
// for the settings screen to display.
func (s *Server) handleWatchSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.relay.SendLatest(r.Context())
	if err != nil {
		if errors.Is(err, relay.ErrNoReading) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "no readings to sync"})
			return
		}
		slog.Error("manual sync failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not sync"})
		return
	}
	if !res.Success {
		writeJSON(w, http.StatusBadGateway, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleWatchStatus(w http.ResponseWriter, r *http.Request) {
	last, err := s.relay.LastSync(r.Context())
	if err != nil {
		slog.Error("last sync query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not query sync state"})
		return
	}
	dev := s.relay.Device()
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": dev != nil,
		"device":    dev,
		"last_sent": last,
	})
}
