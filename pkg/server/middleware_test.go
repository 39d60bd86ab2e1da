package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2)
	now := time.Now()

	if !rl.allow("1.2.3.4", now) || !rl.allow("1.2.3.4", now) {
		t.Fatal("requests under the limit were refused")
	}
	if rl.allow("1.2.3.4", now) {
		t.Error("third request in the window allowed")
	}
	if !rl.allow("5.6.7.8", now) {
		t.Error("another address should have its own bucket")
	}

	if !rl.allow("1.2.3.4", now.Add(31*time.Second)) {
		t.Error("request after a refill interval refused")
	}

	later := now.Add(2 * time.Minute)
	if !rl.allow("1.2.3.4", later) || !rl.allow("1.2.3.4", later) {
		t.Error("bucket did not refill")
	}
	rl.cleanup(later)
	rl.mu.Lock()
	n := len(rl.clients)
	rl.mu.Unlock()
	if n != 1 {
		t.Errorf("%d buckets after cleanup, want 1", n)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		url    string
		want   string
		ok     bool
	}{
		{"header", "Bearer abc", "/x", "abc", true},
		{"lowercase scheme", "bearer abc", "/x", "abc", true},
		{"basic auth", "Basic abc", "/x", "", false},
		{"query", "", "/x?token=xyz", "xyz", true},
		{"none", "", "/x", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			got, ok := bearerToken(r)
			if got != tt.want || ok != tt.ok {
				t.Errorf("bearerToken = %q,%v, want %q,%v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := corsMiddleware([]string{"http://ok.example"}, next)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "http://ok.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Header().Get("Access-Control-Allow-Origin") != "http://ok.example" {
		t.Error("allowed origin got no CORS header")
	}
	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want the next handler's", w.Code)
	}

	r = httptest.NewRequest(http.MethodOptions, "/", nil)
	r.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unlisted origin got a CORS header")
	}
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
}
