// Package reclaim is storage reclamation (C9): when free space drops below a
// configured floor, it deletes non-active log files — already-exported ones
// (downloaded or uploaded) first, then unexported ones, oldest-first within
// each class, then uncataloged log files — until space is recovered or there
// is nothing left to reclaim. It never deletes an active file.
package reclaim

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"sync/atomic"
	"time"

	"github.com/canlogger/canlogger/internal/catalog"
	"github.com/canlogger/canlogger/internal/store"
)

// maxIterations bounds EnsureSpace so a pathological catalog (or a free-space
// floor that can never be met) cannot loop forever.
const maxIterations = 64

// orphanPattern matches log files on disk that the catalog has no record of
// (e.g. after a crash where the catalog was rebuilt empty but the files
// themselves were never deleted).
var orphanPattern = regexp.MustCompile(`^log_\d+_bus\d+_.*\.sav$`)

// Reclaimer owns the eviction policy. It never touches the active bus files.
// It runs when C7 opens a file (Open, including the reopen inside
// RotateIfNeeded) and on the RunPeriodic background ticker.
type Reclaimer struct {
	backend *store.Local
	catalog *catalog.Catalog
	logger  *slog.Logger

	deletions atomic.Int64
}

// New returns a Reclaimer bound to backend's free-space stats and catalog's table.
func New(backend *store.Local, cat *catalog.Catalog, logger *slog.Logger) *Reclaimer {
	return &Reclaimer{backend: backend, catalog: cat, logger: logger}
}

// EnsureSpace deletes non-active log files in pickVictim's order, then
// uncataloged log files, until Stats().FreeBytes is at least minFree, there
// are no more eligible victims, or maxIterations is reached. It returns the
// number of files removed. A floor of 0 is a no-op.
func (r *Reclaimer) EnsureSpace(minFree uint64) int {
	if minFree == 0 {
		return 0
	}
	removed := 0
	for i := 0; i < maxIterations; i++ {
		if r.backend.Stats().FreeBytes >= minFree {
			return removed
		}
		victim, ok := r.pickVictim()
		if !ok {
			// The catalog has nothing left to evict: remove one uncataloged
			// log file and re-check free space on the next iteration.
			if !r.reclaimOrphan() {
				return removed
			}
			removed++
			continue
		}
		if err := r.evict(victim); err != nil {
			r.logger.Warn("reclaim: evict failed, skipping victim", "path", victim.Path, "err", err)
			// Drop it from the catalog anyway so we don't spin on the same
			// unremovable entry every iteration.
			r.catalog.Remove(victim.Path)
			continue
		}
		removed++
		r.deletions.Add(1)
		r.logger.Info("reclaim: evicted log file", "path", victim.Path, "size", victim.Size)
	}
	r.logger.Warn("reclaim: hit iteration cap without reaching free-space floor", "min_free", minFree)
	return removed
}

// pickVictim returns the best candidate for eviction: every non-active entry
// is eligible, ranked by (exported ? 0 : 1, start_s) so an already-exported
// file is always evicted before an unexported one of the same or later age,
// but an unexported file is still evicted once nothing exported remains.
// start_s — not start_ms — breaks ties within a priority class, since
// start_ms resets across a reboot.
func (r *Reclaimer) pickVictim() (catalog.Entry, bool) {
	entries := r.catalog.All()
	var candidates []catalog.Entry
	for _, e := range entries {
		if e.Active() {
			continue
		}
		candidates = append(candidates, e)
	}
	if len(candidates) == 0 {
		return catalog.Entry{}, false
	}
	priority := func(e catalog.Entry) int {
		if e.Downloaded() || e.Uploaded() {
			return 0
		}
		return 1
	}
	sort.Slice(candidates, func(i, j int) bool {
		pi, pj := priority(candidates[i]), priority(candidates[j])
		if pi != pj {
			return pi < pj
		}
		return candidates[i].StartS < candidates[j].StartS
	})
	return candidates[0], true
}

func (r *Reclaimer) evict(e catalog.Entry) error {
	if err := r.backend.Delete(e.Path); err != nil {
		return err
	}
	r.catalog.Remove(e.Path)
	return nil
}

// reclaimOrphan removes one file on disk matching the log naming pattern
// that the catalog has no entry for at all — the fallback path for the
// crash-survival scenario where the catalog was reset but old files remain.
// It never removes a file the catalog still knows about, active or not.
// It reports whether a file was removed.
func (r *Reclaimer) reclaimOrphan() bool {
	names, err := r.backend.ListDir(".")
	if err != nil {
		return false
	}
	known := make(map[string]bool)
	for _, e := range r.catalog.All() {
		known[e.Path] = true
	}
	for _, name := range names {
		if !orphanPattern.MatchString(name) {
			continue
		}
		if known[name] {
			continue
		}
		if err := r.backend.Delete(name); err != nil {
			r.logger.Warn("reclaim: orphan delete failed", "path", name, "err", err)
			continue
		}
		r.deletions.Add(1)
		r.logger.Info("reclaim: removed orphaned log file", "path", name)
		return true
	}
	return false
}

// Deletions returns the cumulative count of files removed by EnsureSpace,
// victims and orphans alike — the counter C14 publishes on storage-full
// events.
func (r *Reclaimer) Deletions() int64 { return r.deletions.Load() }

// RunPeriodic starts a background goroutine that calls EnsureSpace(minFree)
// immediately, then again on every tick until ctx is cancelled.
func (r *Reclaimer) RunPeriodic(ctx context.Context, minFree uint64, interval time.Duration) {
	go func() {
		r.EnsureSpace(minFree)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.EnsureSpace(minFree)
			case <-ctx.Done():
				return
			}
		}
	}()
}
