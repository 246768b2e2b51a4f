package writer_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/canlogger/canlogger/internal/canbus"
	"github.com/canlogger/canlogger/internal/catalog"
	"github.com/canlogger/canlogger/internal/clock"
	"github.com/canlogger/canlogger/internal/logfile"
	"github.com/canlogger/canlogger/internal/store"
	"github.com/canlogger/canlogger/internal/writer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWriterDrainsReadyBlockIntoFile(t *testing.T) {
	backend, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	cat := catalog.Open(backend, testLogger())
	clk := clock.New()
	clk.SetWall(1_700_000_000)

	buf := canbus.NewBlockBuffer(128)
	mgr := logfile.New(0, backend, clk, cat, testLogger(), 0)
	if err := mgr.Open("can0", nil); err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Force the block Ready by crossing the margin (128 - 96 = 32 bytes).
	line := make([]byte, 40)
	for i := range line {
		line[i] = 'x'
	}
	if !buf.Produce(line) {
		t.Fatal("Produce failed")
	}

	w := writer.New([]writer.Unit{{BusID: 0, BusName: "can0", Buffer: buf, Manager: mgr}}, nil, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	w.Run(ctx)

	if err := mgr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries := cat.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 catalog entry, got %d", len(entries))
	}
	if entries[0].Size == 0 {
		t.Error("expected non-zero file size after writer drained a ready block")
	}
}

func TestWriterIdlesWithoutReadyBlocks(t *testing.T) {
	backend, err := store.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	cat := catalog.Open(backend, testLogger())
	clk := clock.New()

	buf := canbus.NewBlockBuffer(canbus.DefaultBlockSize)
	mgr := logfile.New(0, backend, clk, cat, testLogger(), 0)
	if err := mgr.Open("can0", nil); err != nil {
		t.Fatalf("Open: %v", err)
	}

	w := writer.New([]writer.Unit{{BusID: 0, BusName: "can0", Buffer: buf, Manager: mgr}}, nil, testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	w.Run(ctx) // should return promptly on ctx cancellation without panicking

	if w.BytesPerSec() != 0 {
		t.Errorf("BytesPerSec() = %d, want 0 with nothing drained", w.BytesPerSec())
	}
}
