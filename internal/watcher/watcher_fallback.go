//go:build !linux

package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	apperrors "github.com/listenupapp/watch/internal/errors"
	"github.com/listenupapp/watch/internal/notify"
	"github.com/listenupapp/watch/internal/target"
)

// fallbackChannel implements Channel using fsnotify. Write events are
// re-encoded into the inotify record layout so the watch loop decodes them
// exactly like native batches.
type fallbackChannel struct {
	logger  *slog.Logger
	target  target.Target
	opts    Options
	watcher *fsnotify.Watcher
	buf     []byte

	pending bool
	armed   bool
	closed  bool
}

// newFallbackChannel creates a fallback channel watching the target directory.
func newFallbackChannel(logger *slog.Logger, t target.Target, opts Options) (*fallbackChannel, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeOpen, "failed to create fsnotify watcher")
	}

	if err := w.Add(t.WatchedDirectory); err != nil {
		_ = w.Close()
		return nil, apperrors.Wrapf(err, apperrors.CodeOpen, "error creating handle to path [%s]", t.WatchedDirectory)
	}

	return &fallbackChannel{
		logger:  logger,
		target:  t,
		opts:    opts,
		watcher: w,
		buf:     make([]byte, 0, opts.BufferSize),
	}, nil
}

// armTree watches every directory below dir.
func (c *fallbackChannel) armTree(dir string) {
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			c.logger.Warn("failed to access path", "path", p, "error", err)
			return nil
		}
		if !d.IsDir() || p == c.target.WatchedDirectory {
			return nil
		}
		if err := c.watcher.Add(p); err != nil {
			c.logger.Warn("failed to add watch", "path", p, "error", err)
			return nil
		}
		c.logger.Debug("added watch", "path", p)
		return nil
	})
}

// Request arms the watch for the next batch.
func (c *fallbackChannel) Request() error {
	if c.closed {
		return apperrors.Issue("channel is closed")
	}
	if c.pending {
		return apperrors.Issue("a change request is already outstanding")
	}
	if c.target.Subtree() && !c.armed {
		c.armTree(c.target.WatchedDirectory)
		c.armed = true
	}
	c.pending = true
	return nil
}

// Await blocks for the first event, then drains whatever else is already
// queued into the same batch.
func (c *fallbackChannel) Await(ctx context.Context) (notify.Batch, error) {
	if !c.pending {
		return notify.Batch{}, apperrors.Issue("no change request outstanding")
	}
	defer func() { c.pending = false }()

	data := c.buf[:0]
	var err error

	select {
	case <-ctx.Done():
		return notify.Batch{}, apperrors.Wrap(ctx.Err(), apperrors.CodeWait, "wait interrupted")
	case event, ok := <-c.watcher.Events:
		if !ok {
			return notify.Batch{}, apperrors.Wrap(fsnotify.ErrClosed, apperrors.CodeWait, "error waiting for changes")
		}
		if data, err = c.appendEvent(data, event); err != nil {
			return notify.Batch{}, err
		}
	case werr, ok := <-c.watcher.Errors:
		if !ok {
			return notify.Batch{}, apperrors.Wrap(fsnotify.ErrClosed, apperrors.CodeWait, "error waiting for changes")
		}
		return notify.Batch{}, c.classify(werr)
	}

	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return notify.Batch{Data: data}, nil
			}
			if data, err = c.appendEvent(data, event); err != nil {
				return notify.Batch{}, err
			}
		default:
			return notify.Batch{Data: data}, nil
		}
	}
}

// appendEvent encodes a write event. Events that would not fit into the
// buffer turn the whole batch into an overflow.
func (c *fallbackChannel) appendEvent(data []byte, event fsnotify.Event) ([]byte, error) {
	if event.Has(fsnotify.Create) && c.target.Subtree() {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			c.armTree(event.Name)
			return data, nil
		}
	}

	if !event.Has(fsnotify.Write) {
		return data, nil
	}

	rel, ok := relDir(c.target.WatchedDirectory, event.Name)
	if !ok || rel == "" {
		return data, nil
	}

	if len(data)+notify.RecordSize(rel) > cap(c.buf) {
		return data, ErrOverflow
	}
	return notify.AppendRecord(data, 0, notify.MaskCloseWrite, rel), nil
}

// classify maps an fsnotify error onto the channel's failure classes.
func (c *fallbackChannel) classify(err error) error {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		return ErrOverflow
	}
	return apperrors.Wrap(err, apperrors.CodeRecordRetrieval, "error retrieving change records")
}

// Close stops the fsnotify watcher.
func (c *fallbackChannel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.watcher.Close()
}

// newInotifyChannel is a stub that should never be called on non-Linux platforms.
// It exists only to satisfy the compiler when watcher.go references it.
func newInotifyChannel(_ *slog.Logger, _ target.Target, _ Options) (Channel, error) {
	return nil, apperrors.Wrap(errors.ErrUnsupported, apperrors.CodeOpen, "inotify channel not available on this platform")
}
