// Package target resolves the user's path into the watch target and decides
// which change records apply to it.
package target

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/listenupapp/watch/internal/errors"
)

// MaxPathLength bounds the resolved path, in bytes.
const MaxPathLength = 32768

// WorkingDir returns the current directory.
type WorkingDir func() (string, error)

// Target is the immutable description of what is being watched.
type Target struct {
	// AbsolutePath is the cleaned, absolute path given by the user.
	AbsolutePath string
	// WatchedDirectory is where the watch handle is opened: AbsolutePath
	// itself for a directory, its parent otherwise.
	WatchedDirectory string
	// FileName is the base name matched against records. Empty for directories.
	FileName    string
	IsDirectory bool
}

// Resolve turns input into a Target. Relative input is joined onto the
// directory returned by wd (os.Getwd when nil).
func Resolve(input string, wd WorkingDir) (Target, error) {
	if input == "" {
		return Target{}, errors.PathResolution("empty path")
	}
	if wd == nil {
		wd = os.Getwd
	}

	abs := input
	if !filepath.IsAbs(input) {
		cwd, err := wd()
		if err != nil {
			return Target{}, errors.Wrap(err, errors.CodePathResolution, "cannot get current directory")
		}
		abs = filepath.Join(cwd, input)
	}
	abs = filepath.Clean(abs)

	if len(abs) >= MaxPathLength {
		return Target{}, errors.PathResolutionf("path is too long (%d bytes, limit %d)", len(abs), MaxPathLength-1)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return Target{}, errors.Wrapf(err, errors.CodePathResolution, "invalid path %s", abs)
	}

	if info.IsDir() {
		return Target{
			AbsolutePath:     abs,
			WatchedDirectory: abs,
			IsDirectory:      true,
		}, nil
	}

	return Target{
		AbsolutePath:     abs,
		WatchedDirectory: filepath.Dir(abs),
		FileName:         filepath.Base(abs),
	}, nil
}

// Subtree reports whether the watch should cover everything below the
// watched directory. Only directory targets do.
func (t Target) Subtree() bool {
	return t.IsDirectory
}

// LogValue implements slog.LogValuer.
func (t Target) LogValue() slog.Value {
	kind := "file"
	if t.IsDirectory {
		kind = "directory"
	}
	return slog.GroupValue(
		slog.String("path", t.AbsolutePath),
		slog.String("kind", kind),
		slog.String("dir", t.WatchedDirectory),
	)
}
