package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

const streamBuffer = 32

// Stream delivers the updates of one request. The Updates channel is
// closed once the request and all of its child tasks have finished.
type Stream struct {
	updates chan Update
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
	done    chan struct{}

	mu        sync.Mutex
	cancelled bool
}

func newStream(parent context.Context) *Stream {
	ctx, cancel := context.WithCancel(parent)
	group, gctx := errgroup.WithContext(ctx)
	return &Stream{
		updates: make(chan Update, streamBuffer),
		ctx:     gctx,
		cancel:  cancel,
		group:   group,
		done:    make(chan struct{}),
	}
}

// Updates returns the update channel.
func (s *Stream) Updates() <-chan Update {
	return s.updates
}

// Done is closed when the stream has been fully drained of producers.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Cancel stops the request and its child tasks. No update is sent after
// Cancel returns.
func (s *Stream) Cancel() {
	s.cancel()
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

// Cancelled reports whether Cancel was called.
func (s *Stream) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// emit sends u unless the stream is cancelled. It reports whether u was
// delivered.
func (s *Stream) emit(u Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled || s.ctx.Err() != nil {
		return false
	}
	select {
	case s.updates <- u:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// spawn runs fn as a child task of the request.
func (s *Stream) spawn(fn func(ctx context.Context)) {
	s.group.Go(func() error {
		fn(s.ctx)
		return nil
	})
}

// finish waits for child tasks and closes the update channel.
func (s *Stream) finish() {
	_ = s.group.Wait()
	s.cancel()
	close(s.updates)
	close(s.done)
}
