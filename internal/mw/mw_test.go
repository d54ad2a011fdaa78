package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newEngine(h ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(h...)
	r.POST("/otp", func(c *gin.Context) { c.Status(http.StatusAccepted) })
	return r
}

func post(r http.Handler, remote string) int {
	req := httptest.NewRequest(http.MethodPost, "/otp", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitWindow_SixthRequestRejected(t *testing.T) {
	h, rl := RateLimitWindow(5, 15*time.Minute)
	defer rl.Stop()
	r := newEngine(h)

	for i := 1; i <= 5; i++ {
		if got := post(r, "10.0.0.1:1111"); got != http.StatusAccepted {
			t.Fatalf("request %d status = %d, want 202", i, got)
		}
	}
	if got := post(r, "10.0.0.1:2222"); got != http.StatusTooManyRequests {
		t.Errorf("6th request status = %d, want 429", got)
	}
	if got := post(r, "10.0.0.2:1111"); got != http.StatusAccepted {
		t.Errorf("other source status = %d, want 202", got)
	}
}

func TestWindowLimiter_CountsAcrossWindow(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := t0
	rl := NewWindowLimiter(5, 15*time.Minute)
	rl.now = func() time.Time { return now }

	// 五次请求分散在窗口前段
	for i := 0; i < 5; i++ {
		now = t0.Add(time.Duration(i) * time.Minute)
		if !rl.Allow("k") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	for _, at := range []time.Duration{4 * time.Minute, 10 * time.Minute, 14*time.Minute + 59*time.Second} {
		now = t0.Add(at)
		if rl.Allow("k") {
			t.Errorf("request at +%v accepted, want rejected inside the window", at)
		}
	}
	if !rl.Allow("other") {
		t.Error("other key shares the window")
	}

	now = t0.Add(15 * time.Minute)
	if !rl.Allow("k") {
		t.Error("request after the window rejected")
	}
}

func TestRL_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Minute)
	rl.Stop()
	rl.Stop()
}

func TestClientIP(t *testing.T) {
	tests := []struct{ in, want string }{
		{"192.0.2.1:1234", "192.0.2.1"},
		{"[::1]:80", "::1"},
		{"garbage", "garbage"},
	}
	for _, tt := range tests {
		if got := clientIP(tt.in); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	r := newEngine(RequestLogger())
	req := httptest.NewRequest(http.MethodPost, "/otp", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("X-Request-ID header missing")
	}

	req = httptest.NewRequest(http.MethodPost, "/otp", nil)
	req.Header.Set(RequestIDHeader, "given")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); got != "given" {
		t.Errorf("X-Request-ID = %q, want given", got)
	}
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	r := newEngine(CORS("prod", []string{"https://app.example"}))

	req := httptest.NewRequest(http.MethodOptions, "/otp", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("allowed origin header = %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/otp", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign origin status = %d, want 403", w.Code)
	}
}
