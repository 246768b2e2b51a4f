package handler

import "net/http"

// scanEntry is one row of the /api/wifi/scan response.
type scanEntry struct {
	SSID       string `json:"ssid"`
	RSSIDbm    int8   `json:"rssi_dbm"`
	RSSIPercent uint8 `json:"rssi_percent"`
	Channel    uint8  `json:"channel"`
	Secure     bool   `json:"secure"`
}

// WifiScan handles GET /api/wifi/scan: the latest bounded scan-result
// snapshot C11 maintains under its own lock.
func (h *Handler) WifiScan(w http.ResponseWriter, _ *http.Request) {
	results := h.sup.ScanResults()
	out := make([]scanEntry, 0, len(results))
	for _, r := range results {
		out = append(out, scanEntry{
			SSID:        r.SSID,
			RSSIDbm:     r.RSSIDbm,
			RSSIPercent: r.RSSIPercent,
			Channel:     r.Channel,
			Secure:      r.Secure,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out})
}
