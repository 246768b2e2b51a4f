// Package bootstrap resolves the handful of process-level settings the
// service needs before the NVS-style Config store (internal/config) can even
// be opened: where the storage root lives, which port to listen on, and a
// bootstrap API token to use until one is configured. It is deliberately not
// the same thing as internal/config.Config — that one is versioned,
// migrated, and owned by the REST layer at runtime; this one is read once,
// at process start, from flags and environment variables, using cobra+viper
// so flags and environment variables bind to the same keys. No config file
// is read.
package bootstrap

import (
	"strings"

	"github.com/spf13/viper"
)

// Settings are the process-level bootstrap values.
type Settings struct {
	Port          string
	StoragePath   string
	BootAPIToken  string
	DefaultBuses  int
	MinFreeBytes  int64
}

// EnvPrefix is the environment-variable prefix, so CANLOGGER_PORT,
// CANLOGGER_STORAGE_PATH, etc. override flags/defaults.
const EnvPrefix = "CANLOGGER"

// Load resolves Settings from v, which the caller has already populated via
// viper.BindPFlag for each key plus viper.AutomaticEnv with EnvPrefix.
func Load(v *viper.Viper) Settings {
	return Settings{
		Port:         v.GetString("port"),
		StoragePath:  v.GetString("storage-path"),
		BootAPIToken: v.GetString("api-token"),
		DefaultBuses: v.GetInt("default-buses"),
		MinFreeBytes: v.GetInt64("min-free-bytes"),
	}
}

// NewViper builds a *viper.Viper pre-configured with this service's
// environment prefix and key defaults.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("port", "8080")
	v.SetDefault("storage-path", "/data/canlogger")
	v.SetDefault("api-token", "")
	v.SetDefault("default-buses", 2)
	v.SetDefault("min-free-bytes", int64(32<<20))
	return v
}
