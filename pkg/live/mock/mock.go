// Package mock provides scripted implementations of the live session types
// for tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/MrWong99/sketchmentor/pkg/live"
)

// Compile-time interface assertion.
var _ live.SessionHandle = (*Session)(nil)

// Session is a scripted [live.SessionHandle]. Tests feed inbound events with
// [Session.Emit] and inspect recorded outbound traffic.
type Session struct {
	mu          sync.Mutex
	events      chan live.Event
	audio       [][]byte
	images      [][]byte
	toolResults [][]live.FunctionResponse
	err         error
	closed      bool
	closeOnce   sync.Once
}

// NewSession creates an open mock session.
func NewSession() *Session {
	return &Session{events: make(chan live.Event, 64)}
}

// SendAudio records the chunk.
func (s *Session) SendAudio(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock: session closed")
	}
	s.audio = append(s.audio, pcm)
	return nil
}

// SendImage records the frame.
func (s *Session) SendImage(jpeg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock: session closed")
	}
	s.images = append(s.images, jpeg)
	return nil
}

// SendToolResults records the batch.
func (s *Session) SendToolResults(results []live.FunctionResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock: session closed")
	}
	s.toolResults = append(s.toolResults, results)
	return nil
}

// Events returns the scripted event channel.
func (s *Session) Events() <-chan live.Event {
	return s.events
}

// Err returns the scripted terminal error.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close marks the session closed and closes the event channel. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.events)
	})
	return nil
}

// Emit delivers one inbound event to the consumer.
func (s *Session) Emit(ev live.Event) {
	s.events <- ev
}

// Fail records err and closes the event channel, simulating a remote
// failure.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.Close()
}

// Audio returns the recorded outbound audio chunks.
func (s *Session) Audio() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.audio...)
}

// Images returns the recorded outbound image frames.
func (s *Session) Images() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.images...)
}

// ToolResults returns the recorded outbound tool result batches.
func (s *Session) ToolResults() [][]live.FunctionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]live.FunctionResponse(nil), s.toolResults...)
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Dialer hands out a scripted session on Connect.
type Dialer struct {
	mu         sync.Mutex
	session    *Session
	connectErr error
	configs    []live.SessionConfig
}

// NewDialer creates a dialer returning session from Connect.
func NewDialer(session *Session) *Dialer {
	return &Dialer{session: session}
}

// SetSession replaces the session handed out by subsequent Connect calls.
func (d *Dialer) SetSession(s *Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session = s
}

// FailConnect makes the next Connect call return err.
func (d *Dialer) FailConnect(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connectErr = err
}

// Connect returns the scripted session and records the config.
func (d *Dialer) Connect(_ context.Context, cfg live.SessionConfig) (live.SessionHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connectErr != nil {
		return nil, d.connectErr
	}
	d.configs = append(d.configs, cfg)
	return d.session, nil
}

// Configs returns every session config passed to Connect.
func (d *Dialer) Configs() []live.SessionConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]live.SessionConfig(nil), d.configs...)
}
