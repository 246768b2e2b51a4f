package handler

import "net/http"

// CANStats handles GET /api/can/stats: per-bus drops and high-water marks.
func (h *Handler) CANStats(w http.ResponseWriter, _ *http.Request) {
	type busStat struct {
		BusID     int    `json:"bus"`
		Drops     uint64 `json:"drops"`
		HighWater int    `json:"high_water_bytes"`
	}
	out := make([]busStat, 0, len(h.units))
	for _, u := range h.units {
		out = append(out, busStat{
			BusID:     int(u.BusID) + 1,
			Drops:     u.Buffer.Drops(),
			HighWater: u.Buffer.HighWaterBytes(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"buses": out})
}

// StorageStats handles GET /api/storage/stats: ready/total/free.
func (h *Handler) StorageStats(w http.ResponseWriter, _ *http.Request) {
	stats := h.backend.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":       stats.TotalBytes > 0,
		"total_bytes": stats.TotalBytes,
		"free_bytes":  stats.FreeBytes,
	})
}

// Buffers handles GET /api/buffers: the writer task's sampled throughput
// plus each bus's file-manager counters, the same Stats snapshot C7 exposes
// internally.
func (h *Handler) Buffers(w http.ResponseWriter, _ *http.Request) {
	type unitStat struct {
		BusID          int    `json:"bus"`
		State          string `json:"state"`
		Path           string `json:"path"`
		BytesWritten   int64  `json:"bytes_written"`
		WriteFailures  int    `json:"write_failures"`
		ReopenAttempts int    `json:"reopen_attempts"`
		ReopenFailures int    `json:"reopen_failures"`
		PreallocFailed int    `json:"prealloc_failed"`
	}
	out := make([]unitStat, 0, len(h.units))
	for _, u := range h.units {
		s := u.Manager.Stats()
		out = append(out, unitStat{
			BusID:          int(u.BusID) + 1,
			State:          s.State.String(),
			Path:           s.Path,
			BytesWritten:   s.BytesWritten,
			WriteFailures:  s.WriteFailures,
			ReopenAttempts: s.ReopenAttempts,
			ReopenFailures: s.ReopenFailures,
			PreallocFailed: s.PreallocFailed,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bytes_per_sec": h.wr.BytesPerSec(),
		"buses":         out,
	})
}
