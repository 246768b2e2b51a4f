package canbus

import (
	"context"
	"math/rand"
	"time"
)

// SimController is a software stand-in for a physical CAN controller. It
// generates synthetic traffic at a configurable rate, for development and
// load-style testing, the same role original_source/src/dev/rx_load_test.cpp
// played generating traffic against the real hardware driver.
type SimController struct {
	ratePerSec int
	rng        *rand.Rand
	interval   time.Duration
	lastSent   time.Time
}

// NewSimController returns a controller that emits ratePerSec synthetic
// frames per second until its context is canceled.
func NewSimController(ratePerSec int, seed int64) *SimController {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &SimController{
		ratePerSec: ratePerSec,
		rng:        rand.New(rand.NewSource(seed)),
		interval:   time.Second / time.Duration(ratePerSec),
	}
}

// Recv blocks until the next synthetic frame is due or ctx is canceled.
func (s *SimController) Recv(ctx context.Context) (RawFrame, error) {
	wait := s.interval - time.Since(s.lastSent)
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return RawFrame{}, ctx.Err()
		case <-t.C:
		}
	}
	s.lastSent = time.Now()

	f := RawFrame{
		ID:  uint32(s.rng.Intn(0x7FF)),
		DLC: 8,
	}
	s.rng.Read(f.Data[:]) //nolint:errcheck
	return f, nil
}
