package netsup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/canlogger/canlogger/internal/config"
)

// MaxScanResults bounds the scan table, matching kMaxScanResults in the
// original.
const MaxScanResults = 12

const (
	connectTimeout = 12 * time.Second
	retryInterval  = 5 * time.Second
	scanInterval   = 30 * time.Second
	scanCooldown   = 10 * time.Second
	tickInterval   = 500 * time.Millisecond

	apSSID     = "canlogger-setup"
	apPassword = ""
	maxFailures = 2
)

// Supervisor is the poll-driven state machine described in package netsup's
// doc comment. One Supervisor owns one Driver.
type Supervisor struct {
	driver Driver
	cfg    *config.Store
	logger *slog.Logger

	mu             sync.Mutex
	ssidIndex      int
	failures       [3]int
	connecting     bool
	attemptStart   time.Time
	nextRetry      time.Time
	staEnabledWas  bool
	scanResults    []ScanResult
	lastScan       time.Time
	lastAPClientAt time.Time
	scanRunning    bool
}

// New returns a Supervisor bound to driver and cfg. cfg.Get().Global's
// Wifi/WifiCount/WifiSTAEnabled fields are read every tick.
func New(driver Driver, cfg *config.Store, logger *slog.Logger) *Supervisor {
	return &Supervisor{driver: driver, cfg: cfg, logger: logger}
}

// Run ticks the state machine every tickInterval until ctx is canceled.
func (s *Supervisor) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	s.Tick(time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

// Tick runs one pass of the state machine. It is exported so tests can drive
// the machine deterministically without waiting on a wall-clock ticker.
func (s *Supervisor) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.cfg.Get()
	staEnabled := cfg.Global.WifiSTAEnabled
	if staEnabled != s.staEnabledWas {
		s.staEnabledWas = staEnabled
		s.resetAttemptsLocked()
		if !staEnabled {
			s.driver.Disconnect()
		}
		s.logger.Info("netsup: station mode changed", "enabled", staEnabled)
	}

	s.driver.StartAP(apSSID, apPassword) //nolint:errcheck

	if !staEnabled {
		s.pollScanLocked(now)
		return
	}

	if s.driver.APClientCount() > 0 {
		s.lastAPClientAt = now
		if s.connecting {
			s.driver.Disconnect()
			s.connecting = false
			s.nextRetry = now.Add(retryInterval)
		}
		return
	}

	switch s.driver.Status() {
	case StatusConnected:
		s.connecting = false
		return
	case StatusConnecting:
		if now.Sub(s.attemptStart) >= connectTimeout {
			s.handleFailureLocked(now, cfg, "timeout")
		}
		return
	case StatusFailed:
		s.handleFailureLocked(now, cfg, "failed")
		return
	}

	if !s.nextRetry.IsZero() && now.Before(s.nextRetry) {
		return
	}
	s.nextRetry = time.Time{}

	if !s.beginNextNetworkLocked(now, cfg) {
		if allExhausted(cfg, s.failures) {
			s.disableStationModeLocked()
		} else {
			s.nextRetry = now.Add(retryInterval)
		}
	}
}

func (s *Supervisor) beginNextNetworkLocked(now time.Time, cfg config.Config) bool {
	count := configuredWifiCount(cfg)
	for s.ssidIndex < count {
		if !isValidSSID(cfg, s.ssidIndex) {
			s.ssidIndex++
			continue
		}
		if s.failures[s.ssidIndex] >= maxFailures {
			s.ssidIndex++
			continue
		}
		wifi := cfg.Global.Wifi[s.ssidIndex]
		s.driver.BeginConnect(wifi.SSID, wifi.Password) //nolint:errcheck
		s.connecting = true
		s.attemptStart = now
		s.logger.Info("netsup: connecting", "ssid", wifi.SSID, "index", s.ssidIndex)
		return true
	}
	return false
}

func (s *Supervisor) handleFailureLocked(now time.Time, cfg config.Config, reason string) {
	count := configuredWifiCount(cfg)
	if count == 0 {
		s.disableStationModeLocked()
		return
	}
	if s.ssidIndex >= count {
		s.ssidIndex = 0
	}
	if s.ssidIndex < len(s.failures) && isValidSSID(cfg, s.ssidIndex) {
		s.failures[s.ssidIndex]++
		s.logger.Warn("netsup: station failure", "reason", reason, "index", s.ssidIndex, "count", s.failures[s.ssidIndex])
		if s.failures[s.ssidIndex] >= maxFailures {
			s.ssidIndex++
		}
	}
	s.connecting = false
	if allExhausted(cfg, s.failures) {
		s.disableStationModeLocked()
		return
	}
	s.nextRetry = now.Add(retryInterval)
}

func (s *Supervisor) disableStationModeLocked() {
	cur := s.cfg.Get()
	if !cur.Global.WifiSTAEnabled {
		return
	}
	s.logger.Info("netsup: disabling station mode, all candidates exhausted")
	s.cfg.Mutate(func(c *config.Config) { c.Global.WifiSTAEnabled = false })
	s.resetAttemptsLocked()
	s.driver.Disconnect()
}

// Reassociate forces the next Tick to re-evaluate the SSID list from index 0
// with failure counters cleared, and drops any in-progress connection. The
// control API calls this after every config write, so a saved config takes
// effect without a process restart.
func (s *Supervisor) Reassociate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetAttemptsLocked()
	s.driver.Disconnect()
}

func (s *Supervisor) resetAttemptsLocked() {
	s.connecting = false
	s.nextRetry = time.Time{}
	s.ssidIndex = 0
	s.attemptStart = time.Time{}
	s.failures = [3]int{}
}

func (s *Supervisor) pollScanLocked(now time.Time) {
	if s.driver.APClientCount() > 0 {
		s.lastAPClientAt = now
		return
	}
	if now.Sub(s.lastAPClientAt) < scanCooldown {
		return
	}
	if now.Sub(s.lastScan) < scanInterval {
		return
	}
	results, err := s.driver.Scan()
	if err != nil {
		s.logger.Warn("netsup: scan failed", "err", err)
		return
	}
	if len(results) > MaxScanResults {
		results = results[:MaxScanResults]
	}
	s.scanResults = results
	s.lastScan = now
}

// ScanResults returns the most recent scan snapshot.
func (s *Supervisor) ScanResults() []ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScanResult, len(s.scanResults))
	copy(out, s.scanResults)
	return out
}

// Connected reports whether the driver currently holds a station connection.
func (s *Supervisor) Connected() bool {
	return s.driver.Status() == StatusConnected
}

func configuredWifiCount(cfg config.Config) int {
	n := int(cfg.Global.WifiCount)
	if n > 3 {
		n = 3
	}
	return n
}

func isValidSSID(cfg config.Config, index int) bool {
	if index < 0 || index >= 3 {
		return false
	}
	return cfg.Global.Wifi[index].SSID != ""
}

func allExhausted(cfg config.Config, failures [3]int) bool {
	count := configuredWifiCount(cfg)
	if count == 0 {
		return true
	}
	for i := 0; i < count; i++ {
		if isValidSSID(cfg, i) && failures[i] < maxFailures {
			return false
		}
	}
	return true
}
