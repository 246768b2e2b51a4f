package netsup_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/canlogger/canlogger/internal/config"
	"github.com/canlogger/canlogger/internal/netsup"
	"github.com/canlogger/canlogger/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCfgStore(t *testing.T) *config.Store {
	t.Helper()
	backend, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return config.Open(backend, testLogger())
}

func withSTA(t *testing.T, cfg *config.Store, ssids ...string) {
	t.Helper()
	cfg.Mutate(func(c *config.Config) {
		c.Global.WifiSTAEnabled = true
		c.Global.WifiCount = uint8(len(ssids))
		for i, ssid := range ssids {
			c.Global.Wifi[i] = config.WifiNetwork{SSID: ssid, Password: "secret"}
		}
	})
}

func TestSupervisorConnectsToGoodSSID(t *testing.T) {
	cfg := newCfgStore(t)
	withSTA(t, cfg, "home-network")
	driver := netsup.NewSimDriver(1)
	sup := netsup.New(driver, cfg, testLogger())

	now := time.Now()
	sup.Tick(now) // starts AP, kicks off connect attempt
	for i := 0; i < 3; i++ {
		now = now.Add(100 * time.Millisecond)
		sup.Tick(now) // each tick polls the sim driver once closer to resolving
	}
	if !sup.Connected() {
		t.Fatal("expected SimDriver to report connected for a non-'fail' SSID")
	}
}

func TestSupervisorExhaustsAndDisablesSTA(t *testing.T) {
	cfg := newCfgStore(t)
	withSTA(t, cfg, "fail-network")
	driver := netsup.NewSimDriver(1)
	sup := netsup.New(driver, cfg, testLogger())

	now := time.Now()
	for i := 0; i < 10; i++ {
		now = now.Add(100 * time.Millisecond)
		sup.Tick(now)
		if i < 2 {
			continue
		}
		now = now.Add(6 * time.Second) // clear the retry backoff between strikes
		sup.Tick(now)
	}

	if cfg.Get().Global.WifiSTAEnabled {
		t.Error("expected station mode to be disabled after the only SSID exhausted its failure budget")
	}
}

func TestSupervisorScansWhileSTADisabled(t *testing.T) {
	cfg := newCfgStore(t) // station mode off by default
	driver := netsup.NewSimDriver(2)
	sup := netsup.New(driver, cfg, testLogger())

	sup.Tick(time.Now())
	results := sup.ScanResults()
	if len(results) == 0 {
		t.Fatal("expected a scan to have populated results on the first idle tick")
	}
	if len(results) > netsup.MaxScanResults {
		t.Errorf("got %d scan results, want <= %d", len(results), netsup.MaxScanResults)
	}
}
