// Package writer is the log writer task (C10): a single goroutine that
// drains every bus's block buffer into its log file manager, round-robin,
// so one writer (not one per bus) owns all disk I/O contention. It runs as
// a background goroutine driven by buffer readiness rather than a fixed tick.
package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/canlogger/canlogger/internal/canbus"
	"github.com/canlogger/canlogger/internal/logfile"
	"github.com/canlogger/canlogger/internal/reclaim"
)

// idleSleep bounds how long the loop waits after a pass that drained nothing,
// so it never busy-spins while still staying responsive to new blocks.
const idleSleep = 2 * time.Millisecond

// Unit binds one bus's buffer to its file manager and sanitized name, the
// pair the writer needs to drain and, if the file has grown too large,
// rotate.
type Unit struct {
	BusID   uint8
	BusName string
	Buffer  *canbus.BlockBuffer
	Manager *logfile.Manager
}

// Writer drains every registered Unit's ready blocks into its log file.
type Writer struct {
	units     []Unit
	reclaimer *reclaim.Reclaimer
	logger    *slog.Logger

	mu              sync.Mutex
	bytesThisWindow int64
	bytesPerSec     int64
	windowStart     time.Time
}

// New returns a Writer over units. reclaimer may be nil in tests/scenarios
// with no space floor configured.
func New(units []Unit, reclaimer *reclaim.Reclaimer, logger *slog.Logger) *Writer {
	return &Writer{units: units, reclaimer: reclaimer, logger: logger, windowStart: time.Now()}
}

// Run drains in a loop until ctx is canceled. Each pass visits every unit
// once; a pass that moves zero bytes sleeps idleSleep before the next.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		moved := w.passOnce()
		w.sampleRate()

		if moved == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleSleep):
			}
		}
	}
}

// passOnce drains one ready block (if any) from every unit and returns the
// total bytes written this pass.
func (w *Writer) passOnce() int64 {
	var total int64
	for i := range w.units {
		n := w.drainOne(&w.units[i])
		total += n
	}
	return total
}

func (w *Writer) drainOne(u *Unit) int64 {
	idx, data, frames, ok := u.Buffer.AcquireReady()
	if !ok {
		return 0
	}

	if err := u.Manager.RotateIfNeeded(len(data), u.BusName, w.reclaimer); err != nil {
		w.logger.Error("writer: rotate failed", "bus", u.BusID, "err", err)
	}
	if err := u.Manager.WriteBlock(data); err != nil {
		w.logger.Error("writer: block write failed", "bus", u.BusID, "err", err)
		u.Buffer.Release(idx, frames)
		return 0
	}
	u.Buffer.Release(idx, frames)

	w.mu.Lock()
	w.bytesThisWindow += int64(len(data))
	w.mu.Unlock()
	return int64(len(data))
}

// sampleRate rolls bytesThisWindow into bytesPerSec once a second has
// elapsed, a 1 Hz bytes_per_sec sample.
func (w *Writer) sampleRate() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if time.Since(w.windowStart) < time.Second {
		return
	}
	w.bytesPerSec = w.bytesThisWindow
	w.bytesThisWindow = 0
	w.windowStart = time.Now()
}

// BytesPerSec returns the most recently sampled throughput.
func (w *Writer) BytesPerSec() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bytesPerSec
}
