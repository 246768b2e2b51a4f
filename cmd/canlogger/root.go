package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/canlogger/canlogger/internal/bootstrap"
)

// newRootCmd builds the cobra command tree: a root command carrying the
// bootstrap flags (port, storage-path, api-token, default-buses,
// min-free-bytes) bound through viper per internal/bootstrap's doc comment,
// plus a "serve" subcommand that actually runs the logger.
func newRootCmd() *cobra.Command {
	v := bootstrap.NewViper()

	root := &cobra.Command{
		Use:   "canlogger",
		Short: "Multi-channel CAN bus data logger",
	}

	flags := root.PersistentFlags()
	flags.String("port", v.GetString("port"), "HTTP listen port")
	flags.String("storage-path", v.GetString("storage-path"), "log/config/catalog storage root")
	flags.String("api-token", v.GetString("api-token"), "bootstrap bearer token (used until config sets one)")
	flags.Int("default-buses", v.GetInt("default-buses"), "bootstrap bus count (read into settings; enabled buses come from the stored config)")
	flags.Int64("min-free-bytes", v.GetInt64("min-free-bytes"), "bootstrap free-space value (read into settings; reclamation uses the stored config's low_space_bytes)")

	for _, name := range []string{"port", "storage-path", "api-token", "default-buses", "min-free-bytes"} {
		v.BindPFlag(name, flags.Lookup(name)) //nolint:errcheck
	}

	root.AddCommand(newServeCmd(v))
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version)
		},
	}
}

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
