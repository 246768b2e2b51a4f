package catalog_test

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/canlogger/canlogger/internal/catalog"
	"github.com/canlogger/canlogger/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBackend(t *testing.T) *store.Local {
	t.Helper()
	l, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return l
}

func TestOpenWithNoFileStartsEmptyAndSaves(t *testing.T) {
	backend := newBackend(t)
	c := catalog.Open(backend, testLogger())

	if len(c.All()) != 0 {
		t.Fatalf("expected empty table, got %d entries", len(c.All()))
	}
	ok, err := backend.Exists(catalog.Path)
	if err != nil || !ok {
		t.Fatalf("expected a fresh catalog file to have been saved, exists=%v err=%v", ok, err)
	}
}

func TestOpenWithCorruptFileStartsEmpty(t *testing.T) {
	backend := newBackend(t)
	if _, err := backend.Write(catalog.Path, strings.NewReader("not json")); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	c := catalog.Open(backend, testLogger())
	if len(c.All()) != 0 {
		t.Fatalf("expected empty table after corrupt load, got %d", len(c.All()))
	}
}

func TestAllOrdersByStartS(t *testing.T) {
	backend := newBackend(t)
	c := catalog.Open(backend, testLogger())

	// Registered out of StartS order, and with a StartMS that disagrees with
	// StartS (as happens across a monotonic-clock reset) to prove All()
	// really sorts by the wall-clock key and not by registration or StartMS.
	c.RegisterLogFile("log_500_bus1_can0.sav", 0, 500, 30)
	c.RegisterLogFile("log_100_bus1_can0.sav", 0, 100, 10)
	c.RegisterLogFile("log_300_bus1_can0.sav", 0, 300, 20)

	entries := c.All()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].StartS > entries[i].StartS {
			t.Fatalf("entries not sorted by StartS: %+v", entries)
		}
	}
	if entries[0].Path != "log_100_bus1_can0.sav" {
		t.Errorf("expected earliest StartS entry first, got %q", entries[0].Path)
	}
}

func TestRegisterAndFinalizeRoundTrip(t *testing.T) {
	backend := newBackend(t)
	c := catalog.Open(backend, testLogger())

	c.RegisterLogFile("log_1000_bus1_can0.sav", 0, 1000, 10)
	entries := c.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if !e.Active() {
		t.Error("expected newly registered entry to be Active")
	}
	if e.StartMS != 1000 || e.StartS != 10 {
		t.Errorf("got StartMS=%d StartS=%d, want 1000/10", e.StartMS, e.StartS)
	}

	c.FinalizeLogFile("log_1000_bus1_can0.sav", 2000, 4096, 0xDEADBEEF)
	e, ok := c.Find("log_1000_bus1_can0.sav")
	if !ok {
		t.Fatal("expected to find finalized entry")
	}
	if e.Active() {
		t.Error("expected Active flag cleared after finalize")
	}
	// end_ms/size/crc32 are always set on finalize, never omitted.
	if e.EndMS != 2000 || e.Size != 4096 || e.CRC32 != 0xDEADBEEF {
		t.Errorf("got EndMS=%d Size=%d CRC32=%x, want 2000/4096/deadbeef", e.EndMS, e.Size, e.CRC32)
	}
}

func TestSetFlagsSetAndClear(t *testing.T) {
	backend := newBackend(t)
	c := catalog.Open(backend, testLogger())
	c.RegisterLogFile("a.sav", 0, 1, 1)

	if !c.SetFlags("a.sav", catalog.FlagDownloaded, true) {
		t.Fatal("SetFlags(set) returned false for existing entry")
	}
	e, _ := c.Find("a.sav")
	if !e.Downloaded() {
		t.Error("expected Downloaded flag set")
	}

	if !c.SetFlags("a.sav", catalog.FlagDownloaded, false) {
		t.Fatal("SetFlags(clear) returned false for existing entry")
	}
	e, _ = c.Find("a.sav")
	if e.Downloaded() {
		t.Error("expected Downloaded flag cleared")
	}

	if c.SetFlags("missing.sav", catalog.FlagDownloaded, true) {
		t.Error("expected SetFlags to return false for unknown path")
	}
}

func TestRemove(t *testing.T) {
	backend := newBackend(t)
	c := catalog.Open(backend, testLogger())
	c.RegisterLogFile("a.sav", 0, 1, 1)
	c.RegisterLogFile("b.sav", 0, 2, 2)

	if !c.Remove("a.sav") {
		t.Fatal("expected Remove to succeed for existing entry")
	}
	if _, ok := c.Find("a.sav"); ok {
		t.Error("expected a.sav to be gone from the table")
	}
	if len(c.All()) != 1 {
		t.Errorf("expected 1 remaining entry, got %d", len(c.All()))
	}
	if c.Remove("a.sav") {
		t.Error("expected second Remove of the same path to return false")
	}
}

func TestReloadFromDiskSurvivesRestart(t *testing.T) {
	backend := newBackend(t)
	c1 := catalog.Open(backend, testLogger())
	c1.RegisterLogFile("a.sav", 0, 1000, 10)
	c1.FinalizeLogFile("a.sav", 5000, 123, 0x1)

	c2 := catalog.Open(backend, testLogger())
	e, ok := c2.Find("a.sav")
	if !ok {
		t.Fatal("expected entry to survive a fresh Open from disk")
	}
	if e.EndMS != 5000 || e.Size != 123 {
		t.Errorf("got EndMS=%d Size=%d after reload, want 5000/123", e.EndMS, e.Size)
	}
}
