package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// AppendFile is a raw, seekable handle into a single on-disk log file. It is
// the primitive the log file manager (C7) builds preallocation, rotation and
// reopen on top of — unlike Write/Read above, callers keep the handle open
// across many small appends instead of streaming once and closing.
type AppendFile struct {
	f *os.File
}

// OpenAppend opens path for read/write, creating it if absent, without
// truncating existing content — required by Reopen, which must resume at
// the byte offset it left off at.
func (l *Local) OpenAppend(path string) (*AppendFile, error) {
	abs, err := l.abs(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %q: %w", filepath.Dir(abs), err)
	}
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", abs, err)
	}
	return &AppendFile{f: f}, nil
}

// Write appends data at the current offset.
func (a *AppendFile) Write(p []byte) (int, error) { return a.f.Write(p) }

// Seek repositions the handle, same semantics as os.File.Seek.
func (a *AppendFile) Seek(offset int64, whence int) (int64, error) {
	return a.f.Seek(offset, whence)
}

// Flush forces buffered writes out to the OS (Go's os.File has no userspace
// buffer, so this is a Sync — kept as a named step because the original
// firmware's SD library does buffer and explicitly flushes here).
func (a *AppendFile) Flush() error { return a.f.Sync() }

// Close releases the underlying file descriptor.
func (a *AppendFile) Close() error { return a.f.Close() }

// Preallocate reserves n bytes for the file without shrinking existing
// content: seek to n-1, write one zero byte, flush, seek back to 0. This
// reduces fragmentation on SD/FAT-style media but must never truncate,
// which is exactly why it writes one byte past the end rather than calling
// Truncate.
func (a *AppendFile) Preallocate(n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := a.f.Seek(n-1, 0); err != nil {
		return fmt.Errorf("preallocate seek: %w", err)
	}
	if _, err := a.f.Write([]byte{0}); err != nil {
		return fmt.Errorf("preallocate write: %w", err)
	}
	if err := a.f.Sync(); err != nil {
		return fmt.Errorf("preallocate flush: %w", err)
	}
	if _, err := a.f.Seek(0, 0); err != nil {
		return fmt.Errorf("preallocate seek back: %w", err)
	}
	return nil
}
