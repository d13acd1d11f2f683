package watcher

import (
	"path/filepath"
	"strings"

	"github.com/listenupapp/watch/internal/notify"
)

// Options configures the notification channel.
type Options struct {
	// BufferSize is the batch buffer size in bytes (default: BufferSize).
	BufferSize int
	// EveryWrite also reports writes that have not been closed yet
	// (IN_MODIFY). By default only a writer closing the file counts.
	EveryWrite bool
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = BufferSize
	}
	// Every record needs at least a header; keep room for one full name.
	if minSize := notify.HeaderSize + 256; o.BufferSize < minSize {
		o.BufferSize = minSize
	}
}

// relDir returns dir relative to root in slash form, "" for root itself.
func relDir(root, dir string) (string, bool) {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}
