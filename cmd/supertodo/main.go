package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/supertodo/internal/model"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

var (
	configPath string
	addrFlag   string
	dbFlag     string
)

var rootCmd = &cobra.Command{
	Use:           "supertodo",
	Short:         "Task service with recurring tasks",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "path to config file")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "SQLite database path (overrides store.path)")

	rootCmd.AddCommand(newServeCmd(), newMigrateCmd(), newInitConfigCmd())
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if addrFlag != "" {
		cfg.Server.Addr = addrFlag
	}
	if dbFlag != "" {
		cfg.Store.Path = dbFlag
	}
	return cfg, nil
}

// newLogger builds the process logger: JSON on stderr at the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
