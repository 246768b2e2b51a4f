// Package handler is the control API (C12): the REST surface for status,
// config, time sync, Wi-Fi scan, CAN/storage/buffer stats, file listing and
// download, and logging control, plus the ambient health/readiness/metrics
// endpoints every long-running service carries alongside its domain routes.
// Routing uses Go 1.22's http.ServeMux method+path patterns directly — no
// external router dependency.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/canlogger/canlogger/internal/catalog"
	"github.com/canlogger/canlogger/internal/clock"
	"github.com/canlogger/canlogger/internal/config"
	"github.com/canlogger/canlogger/internal/errs"
	"github.com/canlogger/canlogger/internal/metrics"
	"github.com/canlogger/canlogger/internal/middleware"
	"github.com/canlogger/canlogger/internal/netsup"
	"github.com/canlogger/canlogger/internal/reclaim"
	"github.com/canlogger/canlogger/internal/store"
	"github.com/canlogger/canlogger/internal/writer"
)

// BusUnit binds one bus's ingest buffer and file manager to its handle, the
// set of things the control API needs to read or reopen per bus. It is the
// same (BusID, BusName, Buffer, Manager) tuple writer.Unit already carries;
// kept as a distinct alias here so handler does not need to reach into
// writer's internals to learn the shape.
type BusUnit = writer.Unit

// Handler holds every subsystem handle the control API reads from or
// commands. One Handler serves the whole process; it is not per-connection.
type Handler struct {
	cfg       *config.Store
	cat       *catalog.Catalog
	backend   *store.Local
	clk       *clock.Source
	units     []BusUnit
	wr        *writer.Writer
	sup       *netsup.Supervisor
	reclaimer *reclaim.Reclaimer
	logger    *slog.Logger
	metrics   *metrics.Registry

	startedAt time.Time
}

// Deps bundles the subsystem handles New needs. Grouped into a struct
// because the constructor otherwise grows an unreadable ten-argument list.
type Deps struct {
	Config    *config.Store
	Catalog   *catalog.Catalog
	Backend   *store.Local
	Clock     *clock.Source
	Units     []BusUnit
	Writer    *writer.Writer
	Supervisor *netsup.Supervisor
	Reclaimer *reclaim.Reclaimer
	Logger    *slog.Logger
	Metrics   *metrics.Registry

	APIToken string
	Limiter  *middleware.DownloadLimiter
}

// New registers every route and returns the root http.Handler.
//
// Middleware stack (outer → inner): RequestLog → CORS → metrics → ServeMux →
// APIToken → DownloadLimiter (download route only) → handler. GET /health is
// the only route left outside the token gate, a bare liveness probe;
// everything else — including /healthz/ready and /metrics — requires the
// token when one is configured.
func New(d Deps) http.Handler {
	h := &Handler{
		cfg:       d.Config,
		cat:       d.Catalog,
		backend:   d.Backend,
		clk:       d.Clock,
		units:     d.Units,
		wr:        d.Writer,
		sup:       d.Supervisor,
		reclaimer: d.Reclaimer,
		logger:    d.Logger,
		metrics:   d.Metrics,
		startedAt: time.Now(),
	}

	auth := middleware.APIToken(d.APIToken)
	limiter := d.Limiter
	if limiter == nil {
		limiter = middleware.NewDownloadLimiter(0)
	}

	mux := http.NewServeMux()

	mux.Handle("GET /api/status", auth(http.HandlerFunc(h.Status)))
	mux.Handle("GET /api/config", auth(http.HandlerFunc(h.GetConfig)))
	mux.Handle("PUT /api/config", auth(http.HandlerFunc(h.PutConfig)))
	mux.Handle("POST /api/config", auth(http.HandlerFunc(h.PutConfig)))
	mux.Handle("POST /api/time", auth(http.HandlerFunc(h.SetTime)))
	mux.Handle("GET /api/wifi/scan", auth(http.HandlerFunc(h.WifiScan)))
	mux.Handle("GET /api/can/stats", auth(http.HandlerFunc(h.CANStats)))
	mux.Handle("GET /api/storage/stats", auth(http.HandlerFunc(h.StorageStats)))
	mux.Handle("GET /api/buffers", auth(http.HandlerFunc(h.Buffers)))
	mux.Handle("GET /api/files", auth(http.HandlerFunc(h.ListFiles)))
	mux.Handle("GET /api/files/{id}/download", auth(limiter.Limit(http.HandlerFunc(h.DownloadFile))))
	mux.Handle("POST /api/files/{id}/mark_downloaded", auth(http.HandlerFunc(h.MarkDownloaded)))
	mux.Handle("POST /api/files/{id}/delete", auth(http.HandlerFunc(h.DeleteFile)))
	mux.Handle("POST /api/control/start_logging", auth(http.HandlerFunc(h.StartLogging)))
	mux.Handle("POST /api/control/stop_logging", auth(http.HandlerFunc(h.StopLogging)))
	mux.Handle("POST /api/control/close_active_file", auth(http.HandlerFunc(h.CloseActiveFile)))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /healthz/ready", auth(http.HandlerFunc(h.Readiness)))
	mux.Handle("GET /metrics", auth(d.Metrics.Handler()))

	return middleware.RequestLog(d.Logger)(middleware.CORS()(d.Metrics.Middleware()(mux)))
}

// Readiness is the readiness probe: 503 only when the storage root reports a
// non-zero total and zero free bytes; 200 otherwise, including when the stats
// are unavailable (total of zero). Gated the same as /metrics —
// only GET /health stays open for orchestration that hasn't learned the
// token yet.
func (h *Handler) Readiness(w http.ResponseWriter, _ *http.Request) {
	stats := h.backend.Stats()
	ok := stats.TotalBytes == 0 || stats.FreeBytes > 0
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ready":       ok,
		"free_bytes":  stats.FreeBytes,
		"total_bytes": stats.TotalBytes,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusForKind maps an errs.Kind to the HTTP status the control API
// responds with, so subsystem errors (logfile.Manager, reclaim.Reclaimer,
// netsup.Supervisor) don't need their own ad-hoc status per call site.
func statusForKind(k errs.Kind) int {
	switch k {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindBadRequest, errs.KindConfigInvalid:
		return http.StatusBadRequest
	case errs.KindStorageFull, errs.KindStorageUnavailable:
		return http.StatusInsufficientStorage
	case errs.KindBusDisabled, errs.KindBufferFull:
		return http.StatusConflict
	case errs.KindFileIOOpenFailed, errs.KindFileIOShortWrite:
		return http.StatusInternalServerError
	case errs.KindWifiAssocTimeout, errs.KindWifiScanFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeSubsystemError classifies err via errs.KindOf and responds with the
// matching status, falling back to 500 for errors the taxonomy doesn't cover.
func writeSubsystemError(w http.ResponseWriter, err error) {
	writeError(w, statusForKind(errs.KindOf(err)), err.Error())
}
