package handler

import (
	"net/http"

	"github.com/canlogger/canlogger/internal/errs"
)

// StartLogging handles POST /api/control/start_logging: opens every bus
// that is enabled and configured for logging and does not already have an
// open file. Idempotent — a bus that is already Active is left alone.
func (h *Handler) StartLogging(w http.ResponseWriter, _ *http.Request) {
	cfg := h.cfg.Get()
	opened := 0
	for i := range h.units {
		u := &h.units[i]
		bc := cfg.Buses[u.BusID]
		if !bc.Enabled || !bc.Logging || u.Manager.IsActive() {
			continue
		}
		if err := u.Manager.Open(bc.Name, h.reclaimer); err != nil {
			h.logger.Error("handler: start_logging open failed", "bus", u.BusID, "kind", errs.KindOf(err), "err", err)
			continue
		}
		opened++
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "opened": opened})
}

// StopLogging handles POST /api/control/stop_logging: an orderly close of
// every currently open file. The writer task itself keeps running — it
// simply has nothing Active left to drain into.
func (h *Handler) StopLogging(w http.ResponseWriter, _ *http.Request) {
	closed := 0
	for i := range h.units {
		u := &h.units[i]
		if !u.Manager.IsActive() {
			continue
		}
		if err := u.Manager.Close(); err != nil {
			h.logger.Error("handler: stop_logging close failed", "bus", u.BusID, "err", err)
			continue
		}
		closed++
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "closed": closed})
}

// CloseActiveFile handles POST /api/control/close_active_file: closes and
// immediately reopens every active file, forcing an out-of-band rotation
// (e.g. right before a download, so the reader gets a finalized CRC).
func (h *Handler) CloseActiveFile(w http.ResponseWriter, _ *http.Request) {
	cfg := h.cfg.Get()
	rotated := 0
	for i := range h.units {
		u := &h.units[i]
		if !u.Manager.IsActive() {
			continue
		}
		bc := cfg.Buses[u.BusID]
		if err := u.Manager.Close(); err != nil {
			h.logger.Error("handler: close_active_file close failed", "bus", u.BusID, "err", err)
			continue
		}
		if err := u.Manager.Open(bc.Name, h.reclaimer); err != nil {
			h.logger.Error("handler: close_active_file reopen failed", "bus", u.BusID, "kind", errs.KindOf(err), "err", err)
			continue
		}
		rotated++
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rotated": rotated})
}
