// Package clock supplies the monotonic microsecond timestamp and the
// settable wall-clock epoch used throughout the logger. A single Source is
// owned by the top-level runtime and passed to every subsystem that needs
// time — there is no global/package-level clock.
package clock

import (
	"sync/atomic"
	"time"
)

// Source is a monotonic microsecond clock plus a wall-clock epoch that can be
// set at any time (e.g. from the REST time-sync endpoint). NowWall derives
// from an offset captured at the moment SetWall was called. The offset itself
// is not persisted: the control API stores the epoch seconds as manual_epoch,
// and ApplyManualEpoch at boot sets the wall clock to that stored value, so
// the time elapsed between SetWall and the restart is not included.
type Source struct {
	start time.Time // instant NowUS() == 0 is measured against

	// wallOffsetUS is wall_s*1e6 - now_us() at the moment SetWall was last
	// called. now_wall_s() = (wallOffsetUS + now_us()) / 1e6. wallSet records
	// whether it has been set; zero is a valid offset.
	wallOffsetUS atomic.Int64
	wallSet      atomic.Bool
}

// New returns a Source whose monotonic clock starts counting from now.
func New() *Source {
	return &Source{start: time.Now()}
}

// NowUS returns microseconds since the Source was created. Never goes backwards.
func (s *Source) NowUS() int64 {
	return time.Since(s.start).Microseconds()
}

// NowWallS returns seconds since the Unix epoch, or 0 if SetWall has never
// been called (and ApplyManualEpoch found nothing persisted).
func (s *Source) NowWallS() int64 {
	if !s.wallSet.Load() {
		return 0
	}
	return (s.wallOffsetUS.Load() + s.NowUS()) / 1_000_000
}

// NowWallMS is NowWallS at millisecond resolution, used for catalog end_ms.
func (s *Source) NowWallMS() int64 {
	if !s.wallSet.Load() {
		return 0
	}
	return (s.wallOffsetUS.Load() + s.NowUS()) / 1_000
}

// SetWall records epochSeconds as "now" on the wall clock. Subsequent
// NowWallS/NowWallMS calls derive from the offset this captures.
func (s *Source) SetWall(epochSeconds int64) {
	offset := epochSeconds*1_000_000 - s.NowUS()
	s.wallOffsetUS.Store(offset)
	s.wallSet.Store(true)
}

// ApplyManualEpoch reapplies a previously-persisted manual_epoch (seconds)
// read from config at boot. A zero value means "never set" and is a no-op,
// matching §4.1's "reapplied on boot if non-zero".
func (s *Source) ApplyManualEpoch(epochSeconds int64) {
	if epochSeconds == 0 {
		return
	}
	s.SetWall(epochSeconds)
}
