// Package trigger runs the user's command when a change matches.
package trigger

import (
	"context"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/listenupapp/watch/internal/errors"
)

// Firer runs the configured command once, synchronously.
type Firer interface {
	Fire(ctx context.Context) error
}

// Options configures how the command is started.
type Options struct {
	// Shell is the interpreter prefix, e.g. "bash -c". Empty selects the
	// platform interpreter.
	Shell string
	// Direct execs the command split into words instead of using a shell.
	Direct bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Trigger runs one command line. The zero value is not usable; use New.
type Trigger struct {
	command string
	argv    []string
	stdin   io.Reader
	stdout  io.Writer
	stderr  io.Writer
}

// New prepares command for repeated execution. The command is parsed once
// here so a broken command line fails at startup, not on the first change.
func New(command string, opts Options) (*Trigger, error) {
	if strings.TrimSpace(command) == "" {
		return nil, errors.Argument("command is empty")
	}

	var argv []string
	if opts.Direct {
		words, err := shellquote.Split(command)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeArgument, "command %q is invalid", command)
		}
		if len(words) == 0 {
			return nil, errors.Argument("command is empty")
		}
		argv = words
	} else {
		shell, err := interpreter(opts.Shell)
		if err != nil {
			return nil, err
		}
		argv = append(shell, command)
	}

	t := &Trigger{
		command: command,
		argv:    argv,
		stdin:   opts.Stdin,
		stdout:  opts.Stdout,
		stderr:  opts.Stderr,
	}
	if t.stdin == nil {
		t.stdin = os.Stdin
	}
	if t.stdout == nil {
		t.stdout = os.Stdout
	}
	if t.stderr == nil {
		t.stderr = os.Stderr
	}
	return t, nil
}

// interpreter returns the shell prefix the command line is appended to.
func interpreter(override string) ([]string, error) {
	if override != "" {
		words, err := shellquote.Split(override)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeArgument, "shell %q is invalid", override)
		}
		if len(words) == 0 {
			return nil, errors.Argument("shell is empty")
		}
		return words, nil
	}
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C"}, nil
	}
	return []string{"/bin/sh", "-c"}, nil
}

// Command returns the command line as given.
func (t *Trigger) Command() string {
	return t.command
}

// Args returns the argv the command is started with.
func (t *Trigger) Args() []string {
	out := make([]string, len(t.argv))
	copy(out, t.argv)
	return out
}

// Fire runs the command and waits for it. The child shares the watcher's
// standard streams. A non-zero exit status is returned for logging only.
// Cancelling ctx kills the child.
func (t *Trigger) Fire(ctx context.Context) error {
	//nolint:gosec // G204: running the user's command is the point
	cmd := exec.CommandContext(ctx, t.argv[0], t.argv[1:]...)
	cmd.Stdin = t.stdin
	cmd.Stdout = t.stdout
	cmd.Stderr = t.stderr
	cmd.WaitDelay = 5 * time.Second
	return cmd.Run()
}
