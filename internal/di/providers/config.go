// Package providers contains dependency injection providers for the watch command.
package providers

import (
	"log/slog"
	"os"

	"github.com/samber/do/v2"

	"github.com/listenupapp/watch/internal/config"
	"github.com/listenupapp/watch/internal/logger"
)

// Args is the command line without the program name.
type Args []string

// ProvideConfig provides the configuration parsed from Args and the environment.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	args := do.MustInvoke[Args](i)
	return config.Load(args, os.Getenv, os.Stderr)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	level := logger.ParseLevel(cfg.Logger.Level)
	log := logger.New(logger.Config{
		Format:    cfg.Logger.Format,
		Level:     level,
		AddSource: level == slog.LevelDebug,
		NoColor:   cfg.Logger.NoColor,
	})

	log.Debug("Starting watch",
		"path", cfg.Watch.Path,
		"command", cfg.Command.Line,
		"log_level", cfg.Logger.Level,
		"direct", cfg.Command.Direct,
		"every_write", cfg.Watch.EveryWrite,
	)

	return log, nil
}
