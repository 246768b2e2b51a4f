// Package store is the storage substrate (C3): it owns the mounted SD card
// (here, a directory tree on the host filesystem) and exposes free/used
// bytes, generic streaming I/O, and the append/seek primitives the log file
// manager (C7) needs for preallocation and rotation.
package store

import "io"

// Backend is the generic streaming interface used by the catalog and any
// future non-local medium. Local is the only implementation; the interface
// exists so callers do not have to special-case a storage medium they do not
// otherwise care about.
type Backend interface {
	// Write streams r to path, returning bytes written.
	// Implementations must be atomic: either the full write succeeds or nothing is persisted.
	Write(path string, r io.Reader) (int64, error)

	// Read opens path for streaming. Caller must close the returned ReadCloser.
	Read(path string) (rc io.ReadCloser, size int64, err error)

	// Delete removes path. Silently succeeds if path does not exist.
	Delete(path string) error

	// Exists reports whether path exists in the backend.
	Exists(path string) (bool, error)

	// Rename moves src to dst atomically where the backend allows.
	Rename(src, dst string) error

	// MkdirAll creates path and all parents (no-op for object stores).
	MkdirAll(path string) error
}

// Stats is the free/total byte snapshot returned by Local.Stats, used by the
// /api/storage/stats endpoint and by reclamation (C9).
type Stats struct {
	TotalBytes uint64
	FreeBytes  uint64
}
