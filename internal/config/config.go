// Package config is the configuration store (C2): persistent, versioned
// settings with forward migration. The on-disk layout is an opaque binary
// blob (magic + version + payload) owned by the storage substrate; this file
// defines the in-memory record and its defaults. See store.go for
// load/save/mutate and schema.go for the migration table.
package config

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxBuses is config::kMaxBuses from the original firmware — the logger is
// built for two controllers but the layout always reserves six.
const MaxBuses = 6

// Magic is the configuration blob's leading 4 bytes, 0x43414742 ("CAGB").
const Magic uint32 = 0x43414742

// CurrentVersion is the on-disk layout version this build writes.
const CurrentVersion uint16 = 2

const (
	DefaultMaxFileBytes  = 64 << 20 // 64 MiB
	DefaultLowSpaceBytes = 32 << 20 // 32 MiB
)

// BusConfig is one controller's settings.
type BusConfig struct {
	Enabled  bool   `json:"enabled"`
	Bitrate  uint32 `json:"bitrate"`
	ReadOnly bool   `json:"read_only"` // reserved: TX is not implemented
	Logging  bool   `json:"logging"`
	Name     string `json:"name"`
}

// WifiNetwork is one candidate SSID/password pair.
type WifiNetwork struct {
	SSID     string `json:"ssid"`
	Password string `json:"password,omitempty"`
}

// Global holds settings that are not per-bus.
type Global struct {
	MaxFileBytes   uint32         `json:"max_file_bytes"`
	LowSpaceBytes  uint32         `json:"low_space_bytes"`
	Wifi           [3]WifiNetwork `json:"wifi"`
	WifiCount      uint8          `json:"wifi_count"`
	WifiSTAEnabled bool           `json:"wifi_sta_enabled"`
	UploadURL      string         `json:"upload_url,omitempty"`
	APIToken       string         `json:"api_token,omitempty"`
	CANTimeSync    bool           `json:"can_time_sync"`
	ManualEpoch    int64          `json:"manual_epoch"`
	DBCName        string         `json:"dbc_name,omitempty"`
}

// Config is the full versioned settings record.
type Config struct {
	Magic   uint32              `json:"magic"`
	Version uint16              `json:"version"`
	Buses   [MaxBuses]BusConfig `json:"buses"`
	Global  Global              `json:"global"`
}

// Defaults returns the factory-default configuration: bus 0 enabled at
// 500 kbit/s with logging on, all other buses disabled.
func Defaults() Config {
	var c Config
	c.Magic = Magic
	c.Version = CurrentVersion
	c.Buses[0] = BusConfig{Enabled: true, Bitrate: 500_000, Logging: true, Name: "bus1"}
	for i := 1; i < MaxBuses; i++ {
		c.Buses[i] = BusConfig{Name: defaultBusName(i)}
	}
	c.Global = Global{
		MaxFileBytes:  DefaultMaxFileBytes,
		LowSpaceBytes: DefaultLowSpaceBytes,
	}
	return c
}

var nameSanitizeRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeName maps a user-supplied bus name to the on-disk-safe alphabet:
// [A-Za-z0-9_-], spaces become underscores, and an empty result falls back
// to "bus<N>" (N is 1-based).
func SanitizeName(raw string, busIndex int) string {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "_")
	s = nameSanitizeRe.ReplaceAllString(s, "")
	if s == "" {
		return defaultBusName(busIndex)
	}
	return s
}

func defaultBusName(busIndex int) string {
	return "bus" + strconv.Itoa(busIndex+1)
}
