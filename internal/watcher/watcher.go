package watcher

import (
	"log/slog"
	"runtime"

	"github.com/listenupapp/watch/internal/target"
)

// Open acquires a notification handle on the target's watched directory.
// The channel automatically selects the backend for the current platform:
// - Linux: inotify read straight into the batch buffer.
// - Others: fsnotify, with events re-encoded into the same batch format.
//
// A failure is an OpenError.
func Open(logger *slog.Logger, t target.Target, opts Options) (Channel, error) {
	opts.setDefaults()

	if runtime.GOOS == "linux" {
		logger.Debug("using inotify channel", "buffer", opts.BufferSize)
		ch, err := newInotifyChannel(logger, t, opts)
		if err != nil {
			return nil, err
		}
		return ch, nil
	}

	logger.Debug("using fsnotify channel", "platform", runtime.GOOS, "buffer", opts.BufferSize)
	ch, err := newFallbackChannel(logger, t, opts)
	if err != nil {
		return nil, err
	}
	return ch, nil
}
