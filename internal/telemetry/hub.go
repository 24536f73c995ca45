package telemetry

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/strigiform/skeeterhawk/internal/logging"
)

const (
	defaultHistoryLimit = 500
	maxHistoryLimit     = 10_000
)

// Hub collects sample history and fans out live updates to subscribers and
// HTTP clients.
type Hub struct {
	mu           sync.RWMutex
	history      []Sample
	historyLimit int
	subscribers  map[chan Sample]struct{}
	reported     uint64

	started time.Time
	logger  logging.Logger
}

// NewHub builds a hub keeping at most historyLimit samples. Out-of-bounds
// limits fall back to the default.
func NewHub(historyLimit int, logger logging.Logger) *Hub {
	if historyLimit <= 0 || historyLimit > maxHistoryLimit {
		historyLimit = defaultHistoryLimit
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Hub{
		historyLimit: historyLimit,
		subscribers:  make(map[chan Sample]struct{}),
		started:      time.Now(),
		logger:       logger.With(logging.F("subsystem", "telemetry")),
	}
}

// Report implements Reporter: it appends to history and pushes to every
// subscriber without blocking. Slow subscribers lose samples.
func (h *Hub) Report(sample Sample) {
	h.mu.Lock()
	h.reported++
	h.history = append(h.history, sample)
	if len(h.history) > h.historyLimit {
		h.history = h.history[len(h.history)-h.historyLimit:]
	}
	for ch := range h.subscribers {
		select {
		case ch <- sample:
		default:
			h.logger.Debug("subscriber lagging, dropping sample", logging.F("cycle", sample.Cycle))
		}
	}
	h.mu.Unlock()
}

// History returns a copy of the stored samples, oldest first.
func (h *Hub) History() []Sample {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Sample, len(h.history))
	copy(out, h.history)
	return out
}

// Latest returns the most recent sample, if any.
func (h *Hub) Latest() (Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.history) == 0 {
		return Sample{}, false
	}
	return h.history[len(h.history)-1], true
}

// Subscribe registers a live listener. The returned cancel must be called
// exactly once.
func (h *Hub) Subscribe() (chan Sample, func()) {
	ch := make(chan Sample, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		close(ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// HealthStatus is the /api/health payload.
type HealthStatus struct {
	Status        string        `json:"status"` // ok once samples flow, idle before
	Samples       uint64        `json:"samples"`
	Uptime        time.Duration `json:"uptime"`
	NumGoroutine  int           `json:"numGoroutine"`
	HistoryLength int           `json:"historyLength"`
}

func (h *Hub) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.History())
}

func (h *Hub) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sample, ok := h.Latest()
	if !ok {
		http.Error(w, "no samples yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sample)
}

func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.mu.RLock()
	status := HealthStatus{
		Status:        "idle",
		Samples:       h.reported,
		Uptime:        time.Since(h.started),
		NumGoroutine:  runtime.NumGoroutine(),
		HistoryLength: len(h.history),
	}
	h.mu.RUnlock()
	if status.Samples > 0 {
		status.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (h *Hub) handleLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := h.Subscribe()
	defer cancel()

	// Replay history so a fresh client has immediate context.
	for _, sample := range h.History() {
		writeEvent(w, sample)
	}
	flusher.Flush()

	for {
		select {
		case sample, ok := <-ch:
			if !ok {
				return
			}
			writeEvent(w, sample)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, sample Sample) {
	payload, err := json.Marshal(sample)
	if err != nil {
		return
	}
	w.Write([]byte("data: "))
	w.Write(payload)
	w.Write([]byte("\n\n"))
}
