package handler

import (
	"net/http"
	"time"

	"github.com/canlogger/canlogger/internal/config"
	"github.com/canlogger/canlogger/internal/logfile"
)

// canStatus is one bus's entry in the /api/status "can" array.
type canStatus struct {
	BusID    int    `json:"bus"`
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	Logging  bool   `json:"logging"`
	State    string `json:"state"`
	Drops    uint64 `json:"drops"`
	HighWater int   `json:"high_water_bytes"`
}

// Status handles GET /api/status: one aggregated snapshot — uptime, wifi,
// logging, storage, can[] — assembled from C2/C6/C7/C8/C10/C11 in one pass,
// each under its own subsystem's guard. The can array always reports exactly
// config.MaxBuses entries, one per slot, so a client never has to guess
// which bus index a sparse array belongs to; a disabled slot reports zeroed
// stats rather than being omitted.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	cfg := h.cfg.Get()
	stats := h.backend.Stats()

	byBusID := make(map[uint8]BusUnit, len(h.units))
	for _, u := range h.units {
		byBusID[u.BusID] = u
	}

	started := false
	can := make([]canStatus, 0, config.MaxBuses)
	for i := 0; i < config.MaxBuses; i++ {
		busID := uint8(i)
		bc := cfg.Buses[i]
		entry := canStatus{
			BusID:   i + 1,
			Name:    bc.Name,
			Enabled: bc.Enabled,
			Logging: bc.Logging,
			State:   "idle",
		}
		if u, ok := byBusID[busID]; ok {
			mstats := u.Manager.Stats()
			entry.State = mstats.State.String()
			entry.Drops = u.Buffer.Drops()
			entry.HighWater = u.Buffer.HighWaterBytes()
			if mstats.State == logfile.StateActive {
				started = true
			}
		}
		can = append(can, entry)
	}

	resp := map[string]any{
		"uptime_sec": int64(time.Since(h.startedAt).Seconds()),
		"wifi": map[string]any{
			"sta_enabled": cfg.Global.WifiSTAEnabled,
			"connected":   h.sup.Connected(),
		},
		"logging": map[string]any{
			"started": started,
		},
		"storage": map[string]any{
			"ready":       stats.TotalBytes > 0,
			"free_bytes":  stats.FreeBytes,
			"total_bytes": stats.TotalBytes,
		},
		"writer": map[string]any{
			"bytes_per_sec": h.wr.BytesPerSec(),
		},
		"can": can,
	}
	writeJSON(w, http.StatusOK, resp)
}
