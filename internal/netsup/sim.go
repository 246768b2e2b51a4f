package netsup

import (
	"fmt"
	"math/rand"
	"sync"
)

// connectPolls is how many Status() calls a BeginConnect attempt stays in
// StatusConnecting before resolving to Connected or Failed — a poll count
// rather than a wall-clock delay so the supervisor's own tick cadence (which
// tests drive with a synthetic clock) is what paces resolution, not real time.
const connectPolls = 1

// SimDriver is a software stand-in for a Wi-Fi radio: no hardware is
// reachable on the host this logger is developed on, so BeginConnect
// resolves after connectPolls Status() calls based on a simple,
// deterministic rule (any SSID containing "fail" never connects).
type SimDriver struct {
	mu sync.Mutex

	connecting     bool
	connected      bool
	pollsRemaining int
	lastSSID       string

	apActive  bool
	apSSID    string
	apClients int

	rng *rand.Rand
}

// NewSimDriver returns a SimDriver seeded for reproducible scan ordering.
func NewSimDriver(seed int64) *SimDriver {
	return &SimDriver{rng: rand.New(rand.NewSource(seed))}
}

func (d *SimDriver) BeginConnect(ssid, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connecting = true
	d.connected = false
	d.lastSSID = ssid
	d.pollsRemaining = connectPolls
	return nil
}

func (d *SimDriver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.connecting && !d.connected {
		return StatusIdle
	}
	if d.connected {
		return StatusConnected
	}
	if d.pollsRemaining > 0 {
		d.pollsRemaining--
		return StatusConnecting
	}
	d.connecting = false
	if containsFail(d.lastSSID) {
		return StatusFailed
	}
	d.connected = true
	return StatusConnected
}

func containsFail(ssid string) bool {
	for i := 0; i+4 <= len(ssid); i++ {
		if ssid[i:i+4] == "fail" {
			return true
		}
	}
	return false
}

func (d *SimDriver) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connecting = false
	d.connected = false
}

func (d *SimDriver) StartAP(ssid, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apActive = true
	d.apSSID = ssid
	return nil
}

func (d *SimDriver) StopAP() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apActive = false
}

func (d *SimDriver) APClientCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.apClients
}

// SetAPClients lets tests simulate a phone/laptop joining the setup AP.
func (d *SimDriver) SetAPClients(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.apClients = n
}

// Scan returns 2–4 simulated neighboring networks drawn from the driver's
// seeded random source.
func (d *SimDriver) Scan() ([]ScanResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 2 + d.rng.Intn(3)
	out := make([]ScanResult, 0, n)
	for i := 0; i < n; i++ {
		dbm := int8(-40 - d.rng.Intn(55))
		out = append(out, ScanResult{
			SSID:        fmt.Sprintf("sim-net-%d", i),
			RSSIDbm:     dbm,
			RSSIPercent: RSSIToPercent(dbm),
			Channel:     uint8(1 + d.rng.Intn(11)),
			Secure:      d.rng.Intn(2) == 0,
		})
	}
	return out, nil
}

func (d *SimDriver) LocalIP() string {
	return "192.0.2.1" // TEST-NET-1: a stand-in address, never a real route
}
