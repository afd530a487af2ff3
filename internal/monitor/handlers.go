// Package monitor serves the read-only status API for the kiosk. It is
// only mounted when server_mode is enabled.
package monitor

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/arkumar/medscan/internal/session"
	"github.com/arkumar/medscan/internal/store"
)

const (
	defaultSessionLimit = 20
	maxSessionLimit     = 200
)

// SessionReader reads archived sessions for the status surface.
type SessionReader interface {
	Recent(limit int) ([]*store.AuditRecord, error)
	Counts() (total, failed int, err error)
}

// StateReporter reports the controller's current state.
type StateReporter interface {
	State() session.State
}

// QueueReporter reports how many audio messages are waiting for playback.
type QueueReporter interface {
	Depth() int
}

type Handlers struct {
	sessions SessionReader
	state    StateReporter
	queue    QueueReporter
	started  time.Time
}

func NewHandlers(sessions SessionReader, state StateReporter, queue QueueReporter) *Handlers {
	return &Handlers{
		sessions: sessions,
		state:    state,
		queue:    queue,
		started:  time.Now(),
	}
}

func (h *Handlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type statusResponse struct {
	State          string             `json:"state"`
	UptimeSeconds  int64              `json:"uptime_seconds"`
	QueueDepth     int                `json:"queue_depth"`
	SessionsTotal  int                `json:"sessions_total"`
	SessionsFailed int                `json:"sessions_failed"`
	LastSession    *store.AuditRecord `json:"last_session,omitempty"`
}

func (h *Handlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	total, failed, err := h.sessions.Counts()
	if err != nil {
		log.Error().Err(err).Msg("failed to count sessions")
		http.Error(w, "Error reading session counts", http.StatusInternalServerError)
		return
	}

	resp := statusResponse{
		State:          string(h.state.State()),
		UptimeSeconds:  int64(time.Since(h.started).Seconds()),
		QueueDepth:     h.queue.Depth(),
		SessionsTotal:  total,
		SessionsFailed: failed,
	}
	recent, err := h.sessions.Recent(1)
	if err != nil {
		log.Error().Err(err).Msg("failed to read last session")
	} else if len(recent) > 0 {
		resp.LastSession = recent[0]
	}

	writeJSON(w, resp)
}

func (h *Handlers) SessionsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	if limit > maxSessionLimit {
		limit = maxSessionLimit
	}

	records, err := h.sessions.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to read sessions")
		http.Error(w, "Error reading sessions", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*store.AuditRecord{}
	}

	writeJSON(w, records)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
