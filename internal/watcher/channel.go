package watcher

import (
	"context"
	"errors"

	"github.com/listenupapp/watch/internal/notify"
)

// ErrOverflow is returned by Await when the OS dropped changes because its
// queue or the batch buffer filled up. It is the only recoverable failure.
var ErrOverflow = errors.New("change notification overflow")

// BufferSize is the size of the single batch buffer.
const BufferSize = 64 * 1024

// Channel is the platform-specific notification channel.
//
// Exactly one request may be outstanding: Request arms it, Await blocks until
// it completes. The batch returned by Await aliases the channel's buffer and
// is overwritten by the next Request/Await pair.
type Channel interface {
	// Request issues the next change request.
	Request() error

	// Await blocks until the outstanding request completes. It is the only
	// suspension point of the watch loop.
	Await(ctx context.Context) (notify.Batch, error)

	// Close releases the handle.
	Close() error
}
