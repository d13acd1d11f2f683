//go:build linux

package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"

	apperrors "github.com/listenupapp/watch/internal/errors"
	"github.com/listenupapp/watch/internal/notify"
	"github.com/listenupapp/watch/internal/target"
)

// inotifyChannel implements Channel on top of one inotify instance.
//
// The root watch is the handle; with a subtree request every directory below
// it gets its own watch descriptor, mapped back to its relative path in dirs.
type inotifyChannel struct {
	logger  *slog.Logger
	target  target.Target
	opts    Options
	buf     []byte
	dirs    map[int32]string // wd -> directory relative to the root
	watches map[string]int32 // relative directory -> wd
	stale   []int32          // descriptors to forget before the next request
	fd      int
	wake    [2]int
	rootWd  int32
	mu      sync.Mutex // guards wake and closed against the cancellation callback

	pending     bool
	armed       bool
	invalidated bool
	closed      bool
}

// newInotifyChannel initialises inotify and watches the target directory.
func newInotifyChannel(logger *slog.Logger, t target.Target, opts Options) (*inotifyChannel, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeOpen, "failed to initialize inotify")
	}

	c := &inotifyChannel{
		logger:  logger,
		target:  t,
		opts:    opts,
		buf:     make([]byte, opts.BufferSize),
		dirs:    make(map[int32]string),
		watches: make(map[string]int32),
		fd:      fd,
		wake:    [2]int{-1, -1},
	}

	if err := unix.Pipe2(c.wake[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		_ = unix.Close(fd)
		return nil, apperrors.Wrap(err, apperrors.CodeOpen, "failed to create wake pipe")
	}

	if err := c.addWatch(""); err != nil {
		_ = c.Close()
		return nil, apperrors.Wrapf(err, apperrors.CodeOpen, "error creating handle to path [%s]", t.WatchedDirectory)
	}

	return c, nil
}

// mask returns the inotify event mask for every watch.
// IN_CLOSE_WRITE: a writer closed the file (the default "content written").
// IN_MODIFY: every write(2), when EveryWrite is set.
// IN_CREATE: only in subtree mode, so new directories can be armed.
func (c *inotifyChannel) mask() uint32 {
	mask := uint32(unix.IN_CLOSE_WRITE | unix.IN_ONLYDIR)
	if c.opts.EveryWrite {
		mask |= unix.IN_MODIFY
	}
	if c.target.Subtree() {
		mask |= unix.IN_CREATE
	}
	return mask
}

// addWatch watches the directory rel (relative to the watched directory).
func (c *inotifyChannel) addWatch(rel string) error {
	path := filepath.Join(c.target.WatchedDirectory, filepath.FromSlash(rel))

	wd, err := unix.InotifyAddWatch(c.fd, path, c.mask())
	if err != nil {
		return fmt.Errorf("inotify_add_watch %s: %w", path, err)
	}

	//nolint:gosec // G115: wd is always a small non-negative int from inotify
	w := int32(wd)
	c.dirs[w] = rel
	c.watches[rel] = w
	if rel == "" {
		c.rootWd = w
	}
	c.logger.Debug("added watch", "path", path, "wd", wd)
	return nil
}

// armTree watches every directory below rel. Unreadable directories are
// logged and skipped.
func (c *inotifyChannel) armTree(rel string) {
	root := filepath.Join(c.target.WatchedDirectory, filepath.FromSlash(rel))
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			c.logger.Warn("failed to access path", "path", p, "error", err)
			return nil // Continue walking
		}
		if !d.IsDir() {
			return nil
		}
		sub, ok := relDir(c.target.WatchedDirectory, p)
		if !ok {
			return filepath.SkipDir
		}
		if _, exists := c.watches[sub]; exists {
			return nil
		}
		if err := c.addWatch(sub); err != nil {
			c.logger.Warn("failed to add watch", "path", p, "error", err)
		}
		return nil
	})
}

// Request arms the watch for the next batch.
func (c *inotifyChannel) Request() error {
	if c.closed {
		return apperrors.Issue("channel is closed")
	}
	if c.pending {
		return apperrors.Issue("a change request is already outstanding")
	}

	for _, wd := range c.stale {
		if rel, ok := c.dirs[wd]; ok {
			delete(c.dirs, wd)
			if c.watches[rel] == wd {
				delete(c.watches, rel)
			}
		}
	}
	c.stale = c.stale[:0]

	if c.invalidated {
		// The kernel dropped the root watch; the handle is dead even if a
		// directory of the same name comes back.
		return apperrors.Issuef("error watching changes: watched directory [%s] is gone", c.target.WatchedDirectory)
	}

	if c.target.Subtree() && !c.armed {
		c.armTree("")
		c.armed = true
	}

	c.pending = true
	return nil
}

// Await blocks until the kernel has records for us, then reads them into the
// shared buffer.
func (c *inotifyChannel) Await(ctx context.Context) (notify.Batch, error) {
	if !c.pending {
		return notify.Batch{}, apperrors.Issue("no change request outstanding")
	}
	defer func() { c.pending = false }()

	stop := context.AfterFunc(ctx, c.interrupt)
	defer stop()

	if err := c.wait(ctx); err != nil {
		return notify.Batch{}, err
	}

	n, err := c.read()
	if err != nil {
		return notify.Batch{}, err
	}

	batch := notify.Batch{Data: c.buf[:n], Dirs: c.dirs}
	return c.inspect(batch)
}

// wait polls the inotify descriptor and the wake pipe without a timeout.
func (c *inotifyChannel) wait(ctx context.Context) error {
	for {
		fds := []unix.PollFd{
			{Fd: int32(c.fd), Events: unix.POLLIN},      //nolint:gosec // G115: fds are small
			{Fd: int32(c.wake[0]), Events: unix.POLLIN}, //nolint:gosec // G115: fds are small
		}

		_, err := unix.Poll(fds, -1)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue // Interrupted, try again
			}
			return apperrors.Wrap(err, apperrors.CodeWait, "error waiting for changes")
		}

		if fds[1].Revents != 0 {
			c.drainWake()
			if ctx.Err() != nil {
				return apperrors.Wrap(ctx.Err(), apperrors.CodeWait, "wait interrupted")
			}
		}

		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return apperrors.Wrapf(unix.EBADF, apperrors.CodeWait, "inotify descriptor failed (revents %#x)", fds[0].Revents)
		}
		if fds[0].Revents&unix.POLLIN != 0 {
			return nil
		}
	}
}

// read fills the buffer with whatever the kernel has queued.
func (c *inotifyChannel) read() (int, error) {
	for {
		n, err := unix.Read(c.fd, c.buf)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			// Someone else drained the queue; report an empty batch.
			return 0, nil
		default:
			return 0, apperrors.Wrap(err, apperrors.CodeRecordRetrieval, "error retrieving change records")
		}
	}
}

// inspect does the channel's own bookkeeping on a fresh batch: overflow
// detection, dropped watches and new subdirectories.
func (c *inotifyChannel) inspect(batch notify.Batch) (notify.Batch, error) {
	var created []string
	overflow := false

	cur := notify.NewCursor(batch)
	for cur.Next() {
		rec := cur.Record()
		switch {
		case rec.Overflow():
			overflow = true
		case rec.Mask&notify.MaskIgnored != 0:
			if rec.Watch == c.rootWd {
				c.logger.Warn("watched directory is gone", "path", c.target.WatchedDirectory)
				c.invalidated = true
			}
			// The name may come back in this same batch under a new wd;
			// dirs keeps the old entry until the batch has been decoded.
			if rel, ok := c.dirs[rec.Watch]; ok && c.watches[rel] == rec.Watch {
				delete(c.watches, rel)
			}
			c.stale = append(c.stale, rec.Watch)
		case rec.Mask&notify.MaskCreate != 0 && rec.Mask&notify.MaskIsDir != 0 && c.target.Subtree():
			created = append(created, rec.Name)
		}
	}
	if err := cur.Err(); err != nil {
		return notify.Batch{}, apperrors.Wrap(err, apperrors.CodeRecordRetrieval, "error retrieving change records")
	}

	for _, rel := range created {
		c.armTree(rel)
	}

	if overflow {
		// Directories created during the gap were never seen; walk again.
		c.armed = false
		return notify.Batch{}, ErrOverflow
	}

	return batch, nil
}

// interrupt wakes a blocked Await. It runs on the context's goroutine.
func (c *inotifyChannel) interrupt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	_, _ = unix.Write(c.wake[1], []byte{1})
}

func (c *inotifyChannel) drainWake() {
	var scratch [64]byte
	for {
		if _, err := unix.Read(c.wake[0], scratch[:]); err != nil {
			return
		}
	}
}

// Close releases the inotify instance and the wake pipe.
func (c *inotifyChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var closeErr error
	if c.fd >= 0 {
		closeErr = unix.Close(c.fd)
	}
	for _, p := range c.wake {
		if p >= 0 {
			_ = unix.Close(p)
		}
	}
	return closeErr
}

// newFallbackChannel is a stub that should never be called on Linux.
// It exists only to satisfy the compiler when watcher.go references it.
func newFallbackChannel(_ *slog.Logger, _ target.Target, _ Options) (Channel, error) {
	return nil, apperrors.Wrap(errors.ErrUnsupported, apperrors.CodeOpen, "fallback channel not available on Linux")
}
