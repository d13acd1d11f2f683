package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/listenupapp/watch/internal/errors"
	"github.com/listenupapp/watch/internal/logger"
	"github.com/listenupapp/watch/internal/notify"
	"github.com/listenupapp/watch/internal/target"
	"github.com/listenupapp/watch/internal/watcher"
)

// result is what one Await call of fakeChannel returns.
type result struct {
	batch notify.Batch
	err   error
}

// fakeChannel replays scripted results, one per request. When the script
// runs out, Await blocks until ctx is done.
type fakeChannel struct {
	results    []result
	requests   int
	requestErr error
	pending    bool
}

func (c *fakeChannel) Request() error {
	if c.requestErr != nil {
		return c.requestErr
	}
	if c.pending {
		return apperrors.Issue("a change request is already outstanding")
	}
	c.requests++
	c.pending = true
	return nil
}

func (c *fakeChannel) Await(ctx context.Context) (notify.Batch, error) {
	c.pending = false
	if len(c.results) == 0 {
		<-ctx.Done()
		return notify.Batch{}, apperrors.Wrap(ctx.Err(), apperrors.CodeWait, "wait interrupted")
	}
	r := c.results[0]
	c.results = c.results[1:]
	return r.batch, r.err
}

func (c *fakeChannel) Close() error { return nil }

// fakeFirer counts fires.
type fakeFirer struct {
	fires  int
	err    error
	onFire func()
}

func (f *fakeFirer) Fire(context.Context) error {
	f.fires++
	if f.onFire != nil {
		f.onFire()
	}
	return f.err
}

func batchOf(names ...string) notify.Batch {
	var data []byte
	for _, n := range names {
		data = notify.AppendRecord(data, 1, notify.MaskCloseWrite, n)
	}
	return notify.Batch{Data: data}
}

func dirTarget() target.Target {
	return target.Target{AbsolutePath: "/srv/w", WatchedDirectory: "/srv/w", IsDirectory: true}
}

func fileTarget() target.Target {
	return target.Target{AbsolutePath: "/srv/w/x.txt", WatchedDirectory: "/srv/w", FileName: "x.txt"}
}

func newTestSession(t target.Target, ch *fakeChannel, f *fakeFirer) *Session {
	return New(t, ch, f, logger.Discard().Logger)
}

func TestStep_DirectoryFiresPerRecord(t *testing.T) {
	ch := &fakeChannel{results: []result{{batch: batchOf("a.txt", "b.txt")}}}
	f := &fakeFirer{}
	s := newTestSession(dirTarget(), ch, f)

	require.NoError(t, s.Step(context.Background()))

	assert.Equal(t, 2, f.fires)
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, Stats{Batches: 1, Records: 2, Fires: 2}, s.Stats())
}

func TestStep_FileMatchesOnlyItsName(t *testing.T) {
	tests := []struct {
		name  string
		batch notify.Batch
		want  int
	}{
		{"target written", batchOf("x.txt"), 1},
		{"sibling written", batchOf("y.txt"), 0},
		{"mixed", batchOf("y.txt", "x.txt", "X.TXT", "x.txt"), 2},
		{"empty batch", notify.Batch{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{results: []result{{batch: tt.batch}}}
			f := &fakeFirer{}
			s := newTestSession(fileTarget(), ch, f)

			require.NoError(t, s.Step(context.Background()))
			assert.Equal(t, tt.want, f.fires)
		})
	}
}

func TestStep_OverflowFiresOnceAndReissues(t *testing.T) {
	ch := &fakeChannel{results: []result{
		{err: watcher.ErrOverflow},
		{batch: notify.Batch{}},
	}}
	f := &fakeFirer{}
	s := newTestSession(fileTarget(), ch, f)

	require.NoError(t, s.Step(context.Background()))
	assert.Equal(t, 1, f.fires)
	assert.Equal(t, 1, s.Stats().Overflows)
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, 1, ch.requests)

	require.NoError(t, s.Step(context.Background()))
	assert.Equal(t, 2, ch.requests, "exactly one new request after an overflow")
	assert.Equal(t, 1, f.fires)
}

func TestStep_MalformedBatch(t *testing.T) {
	b := batchOf("a.txt")
	b.Data = b.Data[:len(b.Data)-2]

	ch := &fakeChannel{results: []result{{batch: b}}}
	f := &fakeFirer{}
	s := newTestSession(dirTarget(), ch, f)

	err := s.Step(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, notify.ErrMalformed)
	assert.Equal(t, 6, apperrors.ExitCode(err))
	assert.Equal(t, Failed, s.State())
}

func TestStep_RecordsBeforeCorruptionStillFire(t *testing.T) {
	good := batchOf("a.txt")
	b := batchOf("a.txt", "b.txt")
	b.Data = b.Data[:len(good.Data)+4]

	ch := &fakeChannel{results: []result{{batch: b}}}
	f := &fakeFirer{}
	s := newTestSession(dirTarget(), ch, f)

	err := s.Step(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, f.fires)
}

func TestStep_RequestFailure(t *testing.T) {
	ch := &fakeChannel{requestErr: errors.New("watch descriptor gone")}
	s := newTestSession(dirTarget(), ch, &fakeFirer{})

	err := s.Step(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrIssue))
	assert.Equal(t, 4, apperrors.ExitCode(err))
	assert.Equal(t, Failed, s.State())
}

func TestStep_AwaitFailure(t *testing.T) {
	ch := &fakeChannel{results: []result{{err: errors.New("poll failed")}}}
	s := newTestSession(dirTarget(), ch, &fakeFirer{})

	err := s.Step(context.Background())
	require.Error(t, err)
	assert.Equal(t, 5, apperrors.ExitCode(err))
}

func TestStep_KeepsExistingClass(t *testing.T) {
	ch := &fakeChannel{results: []result{{err: apperrors.Wrap(errors.New("read"), apperrors.CodeRecordRetrieval, "read failed")}}}
	s := newTestSession(dirTarget(), ch, &fakeFirer{})

	err := s.Step(context.Background())
	assert.Equal(t, 6, apperrors.ExitCode(err))
}

func TestStep_FiresInRecordOrder(t *testing.T) {
	ch := &fakeChannel{results: []result{{batch: batchOf("1", "2", "3")}}}

	var seen []int
	f := &fakeFirer{}
	f.onFire = func() { seen = append(seen, f.fires) }
	s := newTestSession(dirTarget(), ch, f)

	require.NoError(t, s.Step(context.Background()))
	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestStep_CommandFailureDoesNotStop(t *testing.T) {
	ch := &fakeChannel{results: []result{{batch: batchOf("a.txt", "b.txt")}}}
	f := &fakeFirer{err: errors.New("exit status 1")}
	s := newTestSession(dirTarget(), ch, f)

	require.NoError(t, s.Step(context.Background()))
	assert.Equal(t, 2, f.fires)
	assert.Equal(t, 2, s.Stats().FireErrors)
}

func TestRun_CancelReturnsNil(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	ch := &fakeChannel{results: []result{{batch: batchOf("a.txt")}}}
	f := &fakeFirer{}
	f.onFire = cancel
	s := newTestSession(dirTarget(), ch, f)

	assert.NoError(t, s.Run(ctx))
	assert.Equal(t, 1, f.fires)
	assert.Equal(t, 2, ch.requests)
}

func TestRun_StopsOnFailure(t *testing.T) {
	ch := &fakeChannel{results: []result{
		{batch: batchOf("a.txt")},
		{err: errors.New("poll failed")},
	}}
	f := &fakeFirer{}
	s := newTestSession(dirTarget(), ch, f)

	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 5, apperrors.ExitCode(err))
	assert.Equal(t, 1, f.fires)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "request_issued", RequestIssued.String())
	assert.Equal(t, "completed", Completed.String())
	assert.Equal(t, "overflowed", Overflowed.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", State(42).String())
}
