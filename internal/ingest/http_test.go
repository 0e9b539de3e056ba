package ingest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func TestPipeline_Window(t *testing.T) {
	f := newFixture(t, false)

	if _, err := f.pipeline.Window("bogus"); !errors.Is(err, ErrUnknownWindow) {
		t.Errorf("Window(bogus) error = %v, want %v", err, ErrUnknownWindow)
	}

	rows, err := f.pipeline.Window(SimpleStore)
	if err != nil || len(rows) != 0 {
		t.Errorf("Window(simple) before ingest = %v, %v", rows, err)
	}

	if err := f.pipeline.HandleMessage(t.Context(), []byte(testPayload)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	rows, err = f.pipeline.Window(SimpleStore)
	if err != nil {
		t.Fatalf("Window(simple) error = %v", err)
	}
	if want := []string{"Alpha - Shahed", "Beta - Orlan"}; !reflect.DeepEqual(rows, want) {
		t.Errorf("Window(simple) = %q, want %q", rows, want)
	}
}

func TestPipeline_WindowHandler(t *testing.T) {
	f := newFixture(t, false)
	if err := f.pipeline.HandleMessage(t.Context(), []byte(testPayload)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /windows/{name}", f.pipeline.WindowHandler())

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantRows int
	}{
		{name: "detailed", path: "/windows/detailed", wantCode: http.StatusOK, wantRows: 2},
		{name: "simple", path: "/windows/simple", wantCode: http.StatusOK, wantRows: 2},
		{name: "unknown", path: "/windows/other", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			var resp WindowResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Window != tt.name {
				t.Errorf("window = %q, want %q", resp.Window, tt.name)
			}
			if len(resp.Rows) != tt.wantRows {
				t.Errorf("got %d rows, want %d", len(resp.Rows), tt.wantRows)
			}
		})
	}
}
