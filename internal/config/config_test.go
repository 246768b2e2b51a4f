package config_test

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/canlogger/canlogger/internal/config"
	"github.com/canlogger/canlogger/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaults(t *testing.T) {
	c := config.Defaults()
	if !c.Buses[0].Enabled || c.Buses[0].Bitrate != 500_000 || !c.Buses[0].Logging {
		t.Errorf("bus 0 defaults = %+v, want enabled 500kbit logging on", c.Buses[0])
	}
	for i := 1; i < config.MaxBuses; i++ {
		if c.Buses[i].Enabled {
			t.Errorf("bus %d should be disabled by default", i)
		}
	}
	if c.Global.MaxFileBytes != config.DefaultMaxFileBytes {
		t.Errorf("MaxFileBytes = %d, want %d", c.Global.MaxFileBytes, config.DefaultMaxFileBytes)
	}
	if c.Global.LowSpaceBytes != config.DefaultLowSpaceBytes {
		t.Errorf("LowSpaceBytes = %d, want %d", c.Global.LowSpaceBytes, config.DefaultLowSpaceBytes)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := config.Defaults()
	c.Global.APIToken = "secret"
	c.Buses[1].Name = "powertrain"
	c.Buses[1].Enabled = true

	data := config.Encode(c)
	got, ok := config.Decode(data)
	if !ok {
		t.Fatal("Decode failed on freshly-encoded blob")
	}
	if got != c {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, c)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"My Bus", "My_Bus"},
		{"weird!@# chars", "weird_chars"},
		{"", "bus3"},
		{"   ", "bus3"},
	}
	for _, tc := range cases {
		if got := config.SanitizeName(tc.in, 2); got != tc.want {
			t.Errorf("SanitizeName(%q, 2) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStoreOpenWithNoBlobInstallsDefaults(t *testing.T) {
	backend, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := config.Open(backend, testLogger())
	c := s.Get()
	if !c.Buses[0].Enabled {
		t.Fatal("expected defaults installed when no blob exists")
	}

	rc, _, err := backend.Read(config.BlobPath)
	if err != nil {
		t.Fatalf("expected defaults to be persisted: %v", err)
	}
	rc.Close()
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	backend, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := testLogger()
	s := config.Open(backend, logger)

	c := s.Get()
	c.Global.APIToken = "tok123"
	s.Save(c)

	s2 := config.Open(backend, logger)
	if got := s2.Get().Global.APIToken; got != "tok123" {
		t.Errorf("APIToken after reload = %q, want tok123", got)
	}
}

func TestStoreMutate(t *testing.T) {
	backend, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := config.Open(backend, testLogger())

	s.Mutate(func(c *config.Config) {
		c.Buses[1].Enabled = true
		c.Buses[1].Name = "chassis"
	})

	c := s.Get()
	if !c.Buses[1].Enabled || c.Buses[1].Name != "chassis" {
		t.Errorf("Mutate did not apply: %+v", c.Buses[1])
	}
}

func TestStoreOpenFallsBackOnUnrecognizedBlobLength(t *testing.T) {
	backend, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := testLogger()

	// A blob whose length matches no known layout (as an unreadable
	// historical layout would) must make Open() fall back to defaults
	// rather than crash.
	_, err = backend.Write(config.BlobPath, bytes.NewReader([]byte{1, 2, 3}))
	if err != nil {
		t.Fatal(err)
	}
	s := config.Open(backend, logger)
	if !s.Get().Buses[0].Enabled {
		t.Fatal("expected fallback to defaults on unrecognized blob length")
	}
}
