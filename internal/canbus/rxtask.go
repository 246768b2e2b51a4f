package canbus

import (
	"context"
	"log/slog"
	"time"

	"github.com/canlogger/canlogger/internal/clock"
	"github.com/canlogger/canlogger/internal/frame"
)

// RXTask is the per-controller receive loop (C6): timestamp, serialize,
// produce into the bus's block buffer. It never touches storage — that is
// what keeps storage stalls from dropping frames.
type RXTask struct {
	BusID      uint8
	Controller Controller
	Buffer     *BlockBuffer
	Clock      *clock.Source
	Logger     *slog.Logger
}

// Run drains the controller until ctx is canceled. Controller-level errors
// are logged and retried; they never tear down the bus.
func (t *RXTask) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		raw, err := t.Controller.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if _, ok := err.(ErrNoFrame); ok {
				time.Sleep(time.Millisecond)
				continue
			}
			t.Logger.Warn("canbus: controller error", "bus", t.BusID, "err", err)
			continue
		}

		ts := t.Clock.NowUS()
		f := frame.Frame{
			TimestampUS: ts,
			BusID:       t.BusID,
			ID:          raw.ID,
			Extended:    raw.Extended,
			DLC:         raw.DLC,
			Data:        raw.Data,
		}
		line := frame.FormatLine(f)
		if !t.Buffer.Produce(line) {
			t.Logger.Debug("canbus: frame dropped, buffer full", "bus", t.BusID)
		}
	}
}
