package config

import (
	"bytes"
	"io"
	"log/slog"
	"sync"

	"github.com/canlogger/canlogger/internal/store"
)

// BlobPath is the fixed key/value location under the storage root config is
// persisted to — the Go analogue of the firmware's NVS namespace/key.
const BlobPath = "meta/config.bin"

// Store owns the process-wide Config value. Writes are serialized by a
// mutex (the REST layer is the only writer in practice); readers get a
// coherent copy via Get, which takes the read side of the same RWMutex.
type Store struct {
	backend *store.Local
	logger  *slog.Logger

	mu  sync.RWMutex
	cur Config
}

// Open loads (or initializes) the configuration from backend. On any
// decode failure — missing blob, corrupt bytes, unrecognized length —
// defaults are installed and persisted immediately rather than leaving the
// store in an unusable state.
func Open(backend *store.Local, logger *slog.Logger) *Store {
	s := &Store{backend: backend, logger: logger}

	rc, _, err := backend.Read(BlobPath)
	if err != nil {
		logger.Warn("config: no existing blob, installing defaults", "err", err)
		s.cur = Defaults()
		s.persist()
		return s
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		logger.Warn("config: read failed, installing defaults", "err", err)
		s.cur = Defaults()
		s.persist()
		return s
	}

	cfg, ok := Decode(data)
	if !ok {
		logger.Warn("config: blob invalid or unrecognized length, installing defaults", "len", len(data))
		s.cur = Defaults()
		s.persist()
		return s
	}

	if cfg.Version != CurrentVersion {
		logger.Info("config: migrated to current version", "from", cfg.Version, "to", CurrentVersion)
		cfg.Version = CurrentVersion
		s.cur = cfg
		s.persist()
		return s
	}

	s.cur = cfg
	return s
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Save replaces the current configuration and persists it.
func (s *Store) Save(c Config) {
	c.Magic = Magic
	c.Version = CurrentVersion
	s.mu.Lock()
	s.cur = c
	s.mu.Unlock()
	s.persist()
}

// Mutate applies fn to a copy of the current configuration under the write
// lock and persists the result — the only sanctioned way to change
// individual fields without racing another writer.
func (s *Store) Mutate(fn func(*Config)) Config {
	s.mu.Lock()
	c := s.cur
	fn(&c)
	c.Magic = Magic
	c.Version = CurrentVersion
	s.cur = c
	s.mu.Unlock()
	s.persist()
	return s.Get()
}

func (s *Store) persist() {
	data := Encode(s.Get())
	if _, err := s.backend.Write(BlobPath, bytes.NewReader(data)); err != nil {
		s.logger.Error("config: persist failed", "err", err)
	}
}
