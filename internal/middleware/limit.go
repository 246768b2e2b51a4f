package middleware

import (
	"net/http"
	"strconv"
)

const (
	// defaultDownloadConcurrency is the fallback slot count when maxConcurrent ≤ 0.
	defaultDownloadConcurrency = 4

	// retryAfterSeconds is the value of the Retry-After header sent on 503.
	retryAfterSeconds = "5"

	// capacityErrorPayload is the fixed JSON body returned when the limiter rejects a request.
	capacityErrorPayload = `{"error":"server at capacity — retry in 5s"}`
)

// DownloadLimiter caps the number of concurrently active log-file downloads
// using a non-blocking channel semaphore. The SD card backing storage has
// one spindle's worth of sequential-read bandwidth; letting an unbounded
// number of /api/files/<id>/download requests race each other just starves
// every one of them. When the semaphore is full, new requests get HTTP 503 +
// Retry-After immediately rather than queuing.
type DownloadLimiter struct {
	sem chan struct{}
}

// NewDownloadLimiter creates a limiter allowing at most maxConcurrent
// simultaneous downloads.
func NewDownloadLimiter(maxConcurrent int) *DownloadLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultDownloadConcurrency
	}
	return &DownloadLimiter{sem: make(chan struct{}, maxConcurrent)}
}

// Limit wraps a handler so that each request must acquire a slot from the
// semaphore before proceeding. Requests that cannot acquire immediately get 503.
func (l *DownloadLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case l.sem <- struct{}{}:
			defer func() { <-l.sem }()
			next.ServeHTTP(w, r)
		default:
			w.Header().Set("Retry-After", retryAfterSeconds)
			w.Header().Set("X-Active-Downloads", strconv.Itoa(len(l.sem)))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(capacityErrorPayload)) //nolint:errcheck
		}
	})
}

// Active returns the number of download slots currently in use.
func (l *DownloadLimiter) Active() int { return len(l.sem) }

// Cap returns the maximum number of concurrent download slots.
func (l *DownloadLimiter) Cap() int { return cap(l.sem) }
