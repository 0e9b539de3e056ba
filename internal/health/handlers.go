package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// Check results as they appear in responses.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	CheckOK         = "ok"
	CheckError      = "error"
)

// DefaultCheckTimeout bounds a full readiness evaluation.
const DefaultCheckTimeout = 5 * time.Second

// Checker is anything that can report its own health.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Response is the JSON body of /health and /ready.
type Response struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Timestamp string            `json:"timestamp"`
}

// Handlers serves liveness and readiness probes.
type Handlers struct {
	checkers map[string]Checker
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandlers creates probe handlers with no registered checks.
func NewHandlers(logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		checkers: make(map[string]Checker),
		timeout:  DefaultCheckTimeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Register adds a named readiness check. Registering a name twice replaces
// the earlier checker. Not safe for use once the server is running.
func (h *Handlers) Register(name string, c Checker) {
	h.checkers[name] = c
}

// Names returns the registered check names in sorted order.
func (h *Handlers) Names() []string {
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Health handles GET /health. It answers 200 as long as the process can serve.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.write(w, http.StatusOK, Response{
		Status: StatusHealthy,
		Checks: map[string]string{"runtime": CheckOK},
	})
}

// Ready handles GET /ready. It runs every registered check and answers 503 if
// any of them fails.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := make(map[string]string, len(h.checkers))
	healthy := true
	for _, name := range h.Names() {
		if err := h.checkers[name].HealthCheck(ctx); err != nil {
			checks[name] = CheckError
			healthy = false
			h.logger.WarnContext(ctx, "health check failed",
				slog.String("check", name),
				slog.String("error", err.Error()))
			continue
		}
		checks[name] = CheckOK
	}

	resp := Response{Status: StatusHealthy, Checks: checks}
	code := http.StatusOK
	if !healthy {
		resp.Status = StatusUnhealthy
		code = http.StatusServiceUnavailable
	}
	h.write(w, code, resp)
}

func (h *Handlers) write(w http.ResponseWriter, code int, resp Response) {
	resp.Timestamp = h.now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode health response", slog.String("error", err.Error()))
	}
}
