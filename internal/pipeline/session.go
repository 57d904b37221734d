package pipeline

import (
	"context"
	"sync"

	"codeberg.org/snonux/translateassist/internal/translation"
)

// SessionState is what a front end shows for the current request.
type SessionState struct {
	Term          string
	Candidates    []translation.SenseCandidate
	Chosen        string
	Alternatives  []string
	Explanation   string
	Confidence    float64
	Examples      []translation.Example
	Banner        string
	IsTranslating bool
}

// Session runs one request at a time and folds its updates into a
// SessionState. Starting a new request cancels the previous one.
type Session struct {
	orch *Orchestrator

	mu       sync.RWMutex
	state    SessionState
	stream   *Stream
	onChange func(SessionState)
	wg       sync.WaitGroup
}

// NewSession creates a session on orch.
func NewSession(orch *Orchestrator) *Session {
	return &Session{orch: orch}
}

// OnChange registers a callback invoked with a copy of the state after
// every applied update.
func (s *Session) OnChange(fn func(SessionState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Start cancels any running request and starts req.
func (s *Session) Start(ctx context.Context, req Request) {
	s.Cancel()

	stream := s.orch.Translate(ctx, req)
	s.mu.Lock()
	s.stream = stream
	s.state = SessionState{Term: req.Term, IsTranslating: true}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for u := range stream.Updates() {
			s.apply(stream, u)
		}
		s.mu.Lock()
		if s.stream == stream {
			s.state.IsTranslating = false
		}
		s.mu.Unlock()
	}()
}

// Cancel stops the running request, if any, and clears IsTranslating.
func (s *Session) Cancel() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.state.IsTranslating = false
	s.mu.Unlock()

	if stream != nil {
		stream.Cancel()
	}
}

// Wait blocks until every started request has drained.
func (s *Session) Wait() {
	s.wg.Wait()
}

// State returns a copy of the current state.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyState()
}

// IsTranslating reports whether a request is waiting for its outcome.
func (s *Session) IsTranslating() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsTranslating
}

func (s *Session) apply(stream *Stream, u Update) {
	s.mu.Lock()
	if s.stream != stream {
		s.mu.Unlock()
		return
	}
	switch u.Kind {
	case UpdateMT:
		s.state.Candidates = u.MT.Candidates
	case UpdateFinal:
		s.state.Chosen = u.Outcome.Chosen
		s.state.Alternatives = u.Outcome.Alternatives
		s.state.Explanation = u.Outcome.Explanation
		s.state.Confidence = u.Outcome.Confidence
		s.state.IsTranslating = false
	case UpdateExamples:
		s.state.Examples = u.Examples
	case UpdateNotice:
		s.state.Banner = u.Notice
	}
	state := s.copyState()
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}

func (s *Session) copyState() SessionState {
	st := s.state
	st.Candidates = append([]translation.SenseCandidate(nil), s.state.Candidates...)
	st.Alternatives = append([]string(nil), s.state.Alternatives...)
	st.Examples = append([]translation.Example(nil), s.state.Examples...)
	return st
}
