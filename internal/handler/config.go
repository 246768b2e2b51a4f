package handler

import (
	"encoding/json"
	"net/http"

	"github.com/canlogger/canlogger/internal/config"
)

// GetConfig handles GET /api/config: the full versioned settings record.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.cfg.Get())
}

// PutConfig handles PUT/POST /api/config. The request body is decoded onto
// a copy of the live config rather than a zero value, so any field the
// caller omits keeps its current value — json.Unmarshal only touches fields
// present in the payload, which is what makes this a partial update rather
// than a full replace. Bus names are re-sanitized and the config version is
// stamped by Store.Save. Every write triggers a Wi-Fi resubscribe in C11,
// whether or not the Wifi fields themselves changed.
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	cur := h.cfg.Get()
	if err := json.NewDecoder(r.Body).Decode(&cur); err != nil {
		writeError(w, http.StatusBadRequest, "invalid config body")
		return
	}

	for i := range cur.Buses {
		cur.Buses[i].Name = config.SanitizeName(cur.Buses[i].Name, i)
	}

	h.cfg.Save(cur)
	h.sup.Reassociate()
	writeJSON(w, http.StatusOK, h.cfg.Get())
}

// SetTime handles POST /api/time: {"epoch": <unix seconds>}.
func (h *Handler) SetTime(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Epoch int64 `json:"epoch"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid time body")
		return
	}
	h.clk.SetWall(body.Epoch)
	h.cfg.Mutate(func(c *config.Config) { c.Global.ManualEpoch = body.Epoch })
	writeJSON(w, http.StatusOK, map[string]int64{"epoch": body.Epoch})
}
