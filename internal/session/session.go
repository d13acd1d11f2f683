// Package session drives the watch loop: request a batch, wait for it, match
// its records against the target and fire the command for each match.
package session

import (
	"context"
	"errors"
	"log/slog"

	apperrors "github.com/listenupapp/watch/internal/errors"
	"github.com/listenupapp/watch/internal/notify"
	"github.com/listenupapp/watch/internal/target"
	"github.com/listenupapp/watch/internal/trigger"
	"github.com/listenupapp/watch/internal/watcher"
)

// Session owns one notification channel and fires the trigger for every
// matching change. It is not safe for concurrent use.
type Session struct {
	target  target.Target
	channel watcher.Channel
	trigger trigger.Firer
	logger  *slog.Logger

	state State
	stats Stats
}

// New creates a session in the Idle state.
func New(t target.Target, ch watcher.Channel, fire trigger.Firer, logger *slog.Logger) *Session {
	return &Session{
		target:  t,
		channel: ch,
		trigger: fire,
		logger:  logger,
		state:   Idle,
	}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Stats returns a snapshot of the counters.
func (s *Session) Stats() Stats {
	return s.stats
}

// Run executes cycles until one fails or ctx is cancelled. Cancellation is a
// clean stop and returns nil.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("watching", "target", s.target)

	for {
		if err := s.Step(ctx); err != nil {
			if ctx.Err() != nil {
				st := s.stats
				s.logger.Info("watch stopped",
					"batches", st.Batches,
					"records", st.Records,
					"fires", st.Fires,
					"overflows", st.Overflows,
				)
				return nil
			}
			return err
		}
	}
}

// Step performs one full cycle: issue a request, wait for its completion and
// handle the batch. On failure the session stays in Failed and the coded
// error is returned.
func (s *Session) Step(ctx context.Context) error {
	if err := s.channel.Request(); err != nil {
		return s.fail(err, apperrors.CodeIssue, "error watching changes")
	}
	s.transition(RequestIssued)

	batch, err := s.channel.Await(ctx)
	switch {
	case errors.Is(err, watcher.ErrOverflow):
		s.transition(Overflowed)
		s.stats.Overflows++
		s.logger.Warn("change records overflowed, firing once")
		if s.target.MatchesOverflow() {
			s.fire(ctx, "")
		}
	case err != nil:
		return s.fail(err, apperrors.CodeWait, "error waiting for changes")
	default:
		s.transition(Completed)
		if err := s.handle(ctx, batch); err != nil {
			return s.fail(err, apperrors.CodeRecordRetrieval, "error retrieving change records")
		}
	}

	s.transition(Idle)
	return nil
}

// handle decodes the batch and fires once per matching record, in order.
func (s *Session) handle(ctx context.Context, batch notify.Batch) error {
	s.stats.Batches++

	cur := notify.NewCursor(batch)
	for cur.Next() {
		rec := cur.Record()
		s.stats.Records++
		if !s.target.Matches(rec) {
			s.logger.Debug("ignoring record", "name", rec.Name, "mask", rec.Mask)
			continue
		}
		s.fire(ctx, rec.Name)
	}
	return cur.Err()
}

func (s *Session) fire(ctx context.Context, name string) {
	s.stats.Fires++
	s.logger.Debug("firing", "name", name)

	if err := s.trigger.Fire(ctx); err != nil {
		s.stats.FireErrors++
		s.logger.Warn("command failed", "name", name, "error", err)
	}
}

// fail records the Failed state. Errors that already carry a class keep it;
// anything else is classified with code.
func (s *Session) fail(err error, code apperrors.Code, msg string) error {
	s.transition(Failed)

	var coded *apperrors.Error
	if errors.As(err, &coded) {
		return err
	}
	return apperrors.Wrap(err, code, msg)
}

func (s *Session) transition(next State) {
	s.logger.Debug("state change", "from", s.state, "to", next)
	s.state = next
}
