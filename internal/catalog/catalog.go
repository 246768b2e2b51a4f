// Package catalog is the status catalog (C8): an in-memory table of log
// files mirrored to /meta/file_status.json using the complete-rewrite
// pattern (the whole table is written to a temp file, then renamed over it),
// generalized from a single owner/file metadata pair to a full table with
// lifecycle flags.
package catalog

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/canlogger/canlogger/internal/store"
)

// Flags is the bitset recorded per entry.
type Flags uint8

const (
	FlagDownloaded Flags = 1 << 0
	FlagUploaded   Flags = 1 << 1
	FlagActive     Flags = 1 << 2
)

// MaxEntries is the nominal size of the in-memory table. RegisterLogFile does
// not enforce it: the table gains one entry per registered file, with no cap.
const MaxEntries = 128

// Path is the fixed on-disk location of the catalog JSON file.
const Path = "meta/file_status.json"

// Entry is one persisted log file record.
type Entry struct {
	Path    string `json:"path"`
	BusID   int    `json:"bus"`
	StartMS int64  `json:"start_ms"`
	// StartS is the wall-clock ordering key that resolves a "reboot resets
	// monotonic ms" problem: reclamation and listing sort by StartS, never
	// by StartMS, even though StartMS remains the file-name timestamp for
	// backward-compatible naming.
	StartS int64 `json:"start_s"`
	EndMS  int64 `json:"end_ms,omitempty"`
	Size   int64 `json:"size"`
	CRC32  uint32 `json:"crc32"`
	Flags  Flags  `json:"flags"`
}

func (e Entry) Active() bool      { return e.Flags&FlagActive != 0 }
func (e Entry) Downloaded() bool  { return e.Flags&FlagDownloaded != 0 }
func (e Entry) Uploaded() bool    { return e.Flags&FlagUploaded != 0 }

type document struct {
	Version int     `json:"version"`
	Files   []Entry `json:"files"`
}

// Catalog owns the table and its persistence. Single-writer via the storage
// subsystem; readers (REST) take the same mutex.
type Catalog struct {
	backend *store.Local
	logger  *slog.Logger

	mu      sync.RWMutex
	entries []Entry
}

// Open loads the catalog from backend. A missing or corrupt file is
// best-effort: the table starts empty and a fresh save follows, so a crash
// mid-write never leaves Open unable to proceed.
func Open(backend *store.Local, logger *slog.Logger) *Catalog {
	c := &Catalog{backend: backend, logger: logger}

	rc, _, err := backend.Read(Path)
	if err != nil {
		logger.Info("catalog: no existing file, starting empty", "err", err)
		c.save()
		return c
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		logger.Warn("catalog: read failed, starting empty", "err", err)
		c.save()
		return c
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		logger.Warn("catalog: parse failed, starting empty", "err", err)
		c.entries = nil
		c.save()
		return c
	}
	c.entries = doc.Files
	return c
}

// All returns every entry sorted by StartS (wall-clock order), the same key
// reclamation's victim selection sorts by — see the field comment on StartS.
func (c *Catalog) All() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	sort.Slice(out, func(i, j int) bool { return out[i].StartS < out[j].StartS })
	return out
}

// Find returns the entry for path, if any.
func (c *Catalog) Find(path string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.Path == path {
			return e, true
		}
	}
	return Entry{}, false
}

// RegisterLogFile inserts a new Active entry for a file just opened by C7.
func (c *Catalog) RegisterLogFile(path string, busID int, startMS, startS int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, Entry{
		Path:    path,
		BusID:   busID,
		StartMS: startMS,
		StartS:  startS,
		Flags:   FlagActive,
	})
	c.saveLocked()
}

// FinalizeLogFile clears Active and records end_ms, size and crc32. Both
// fields are always written, unconditionally.
func (c *Catalog) FinalizeLogFile(path string, endMS, size int64, crc32 uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].Path == path {
			c.entries[i].EndMS = endMS
			c.entries[i].Size = size
			c.entries[i].CRC32 = crc32
			c.entries[i].Flags &^= FlagActive
			break
		}
	}
	c.saveLocked()
}

// SetFlags sets (set=true) or clears (set=false) mask on path's entry.
func (c *Catalog) SetFlags(path string, mask Flags, set bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].Path == path {
			if set {
				c.entries[i].Flags |= mask
			} else {
				c.entries[i].Flags &^= mask
			}
			c.saveLocked()
			return true
		}
	}
	return false
}

// Remove deletes the entry for path from the table (not from disk — callers
// remove the underlying file separately).
func (c *Catalog) Remove(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.entries {
		if c.entries[i].Path == path {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			c.saveLocked()
			return true
		}
	}
	return false
}

func (c *Catalog) save() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saveLocked()
}

// saveLocked rewrites the catalog file completely: store.Local.Write already
// does atomic temp-file + rename, which subsumes a delete-existing/write-new
// pattern while still being crash-safe.
func (c *Catalog) saveLocked() {
	doc := document{Version: 1, Files: c.entries}
	data, err := json.Marshal(doc)
	if err != nil {
		c.logger.Error("catalog: marshal failed", "err", err)
		return
	}
	if _, err := c.backend.Write(Path, bytes.NewReader(data)); err != nil {
		c.logger.Error("catalog: persist failed", "err", err)
	}
}
