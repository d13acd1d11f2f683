// Package main provides the entry point for the watch command.
//
// watch runs a command every time a file, or any file below a directory, has
// content written to it:
//
//	watch [flags] <path> <command>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/listenupapp/watch/internal/di"
	"github.com/listenupapp/watch/internal/errors"
	"github.com/listenupapp/watch/internal/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit status.
func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create DI container
	injector := di.NewContainer(args)
	defer func() {
		if report := injector.Shutdown(); report != nil && !report.Succeed {
			fmt.Fprintln(os.Stderr, report.Error())
		}
	}()

	s, err := di.Bootstrap(injector)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		return errors.ExitCode(err)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	if err := s.Run(ctx); err != nil {
		log.WithError(err).Error("Watch failed", "exit_code", errors.ExitCode(err))
		return errors.ExitCode(err)
	}

	return 0
}
