package middleware_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/canlogger/canlogger/internal/middleware"
)

func ok(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func TestAPITokenEmptyConfiguredTokenIsOpenGate(t *testing.T) {
	h := middleware.APIToken("")(http.HandlerFunc(ok))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestAPITokenRejectsMissingToken(t *testing.T) {
	h := middleware.APIToken("secret")(http.HandlerFunc(ok))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestAPITokenAcceptsXApiTokenHeader(t *testing.T) {
	h := middleware.APIToken("secret")(http.HandlerFunc(ok))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-Api-Token", "secret")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestAPITokenAcceptsBearerAuthorizationHeader(t *testing.T) {
	h := middleware.APIToken("secret")(http.HandlerFunc(ok))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}

func TestCORSHandlesPreflightAndSetsHeaders(t *testing.T) {
	h := middleware.CORS()(http.HandlerFunc(ok))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/status", nil)
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want 204", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected Access-Control-Allow-Origin: *")
	}
}

func TestDownloadLimiterRejectsOverCapacity(t *testing.T) {
	l := middleware.NewDownloadLimiter(1)
	block := make(chan struct{})
	h := l.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.WriteHeader(http.StatusOK)
	}))

	done := make(chan struct{})
	go func() {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/files/1/download", nil))
		close(done)
	}()
	// Give the first request time to acquire the single slot.
	deadline := time.Now().Add(time.Second)
	for l.Active() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	rr2 := httptest.NewRecorder()
	h.ServeHTTP(rr2, httptest.NewRequest(http.MethodGet, "/api/files/1/download", nil))
	if rr2.Code != http.StatusServiceUnavailable {
		t.Errorf("second request status = %d, want 503", rr2.Code)
	}

	close(block)
	<-done
}

func TestRequestLogDoesNotPanicOnNormalHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := middleware.RequestLog(logger)(http.HandlerFunc(ok))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id to be set")
	}
}
