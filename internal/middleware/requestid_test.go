package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{name: "generates new id", incoming: "", wantSame: false},
		{name: "reuses caller id", incoming: "existing-request-id-123", wantSame: true},
		{name: "replaces oversized id", incoming: strings.Repeat("x", maxRequestIDLength+1), wantSame: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if captured == "" {
				t.Fatal("expected request ID in context")
			}
			if got := rr.Header().Get(RequestIDHeader); got != captured {
				t.Errorf("response header %q does not match context id %q", got, captured)
			}
			if (captured == tt.incoming) != tt.wantSame {
				t.Errorf("captured %q, incoming %q, wantSame %v", captured, tt.incoming, tt.wantSame)
			}
		})
	}
}

func TestGetRequestID_EmptyContextReturnsEmptyString(t *testing.T) {
	if id := GetRequestID(t.Context()); id != "" {
		t.Errorf("expected empty string, got %q", id)
	}
	if id := GetRequestID(WithRequestID(t.Context(), "batch-1")); id != "batch-1" {
		t.Errorf("expected batch-1, got %q", id)
	}
}
