package ingest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// ErrUnknownWindow is returned for a window name other than detailed or simple.
var ErrUnknownWindow = errors.New("unknown window")

// WindowResponse is the JSON body served for GET /windows/{name}.
type WindowResponse struct {
	Window string   `json:"window"`
	Rows   []string `json:"rows"`
}

// Window returns the persisted rows of the named window, oldest first.
func (p *Pipeline) Window(name string) ([]string, error) {
	switch name {
	case DetailedStore:
		return p.detailed.Rows()
	case SimpleStore:
		return p.simple.Rows()
	default:
		return nil, ErrUnknownWindow
	}
}

// WindowHandler serves GET /windows/{name}. Register it with a pattern that
// binds the {name} wildcard.
func (p *Pipeline) WindowHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		rows, err := p.Window(name)
		switch {
		case errors.Is(err, ErrUnknownWindow):
			http.Error(w, "unknown window", http.StatusNotFound)
			return
		case err != nil:
			p.logger.Error("failed to read window",
				slog.String("window", name),
				slog.String("error", err.Error()))
			http.Error(w, "window unavailable", http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []string{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(WindowResponse{Window: name, Rows: rows}); err != nil {
			p.logger.Error("failed to encode window", slog.String("error", err.Error()))
		}
	})
}
