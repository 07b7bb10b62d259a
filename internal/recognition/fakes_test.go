package recognition

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
)

type fakeCapture struct {
	err          error
	availableErr error

	mu       sync.Mutex
	sessions []*fakeAudio
	cfgs     []ports.AudioConfig
}

func (f *fakeCapture) Start(_ context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfgs = append(f.cfgs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	session := newFakeAudio()
	f.sessions = append(f.sessions, session)
	return session, nil
}

func (f *fakeCapture) Available() error { return f.availableErr }

func (f *fakeCapture) last() *fakeAudio {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sessions) == 0 {
		return nil
	}
	return f.sessions[len(f.sessions)-1]
}

type fakeAudio struct {
	data    chan []byte
	endErr  error
	stopped chan struct{}

	stopOnce sync.Once
}

func newFakeAudio() *fakeAudio {
	return &fakeAudio{data: make(chan []byte, 8), stopped: make(chan struct{})}
}

// Read drains buffered chunks before honoring Stop, like a pipe would.
func (f *fakeAudio) Read(p []byte) (int, error) {
	select {
	case chunk, ok := <-f.data:
		return f.chunk(p, chunk, ok)
	default:
	}
	select {
	case chunk, ok := <-f.data:
		return f.chunk(p, chunk, ok)
	case <-f.stopped:
		return 0, io.EOF
	}
}

func (f *fakeAudio) chunk(p []byte, chunk []byte, ok bool) (int, error) {
	if !ok {
		if f.endErr != nil {
			return 0, f.endErr
		}
		return 0, io.EOF
	}
	return copy(p, chunk), nil
}

func (f *fakeAudio) Close() error { return f.Stop() }

func (f *fakeAudio) Stop() error {
	f.stopOnce.Do(func() { close(f.stopped) })
	return nil
}

func (f *fakeAudio) isStopped() bool {
	select {
	case <-f.stopped:
		return true
	default:
		return false
	}
}

type fakeProvider struct {
	err        error
	configured bool
	// hold keeps CloseSend from finishing the stream.
	hold bool
	// gate, when set, delays StartStreaming until it is closed.
	gate chan struct{}

	mu      sync.Mutex
	cfgs    []ports.StreamingConfig
	started chan *fakeSession
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{configured: true, started: make(chan *fakeSession, 4)}
}

func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) StartStreaming(_ context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	f.mu.Lock()
	f.cfgs = append(f.cfgs, cfg)
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	session := newFakeSession()
	session.hold = f.hold
	f.started <- session
	return session, nil
}

func (f *fakeProvider) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cfgs)
}

func (f *fakeProvider) config(i int) ports.StreamingConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfgs[i]
}

func (f *fakeProvider) session(t *testing.T) *fakeSession {
	t.Helper()
	select {
	case session := <-f.started:
		return session
	case <-time.After(2 * time.Second):
		t.Fatalf("provider session was never started")
		return nil
	}
}

type fakeSession struct {
	events chan domain.TranscriptEvent
	hold   bool

	mu         sync.Mutex
	sent       []byte
	sendErr    error
	waitErr    error
	closeSends int
	closes     int
	closeOnce  sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan domain.TranscriptEvent, 16)}
}

func (f *fakeSession) SendAudio(chunk []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, chunk...)
	return nil
}

func (f *fakeSession) CloseSend() error {
	f.mu.Lock()
	f.closeSends++
	hold := f.hold
	f.mu.Unlock()
	if !hold {
		f.finish(nil)
	}
	return nil
}

func (f *fakeSession) Events() <-chan domain.TranscriptEvent { return f.events }

func (f *fakeSession) Wait() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.waitErr
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	f.finish(nil)
	return f.Wait()
}

// finish ends the provider stream, recording err as the Wait result.
func (f *fakeSession) finish(err error) {
	f.closeOnce.Do(func() {
		f.mu.Lock()
		if err != nil {
			f.waitErr = err
		}
		f.mu.Unlock()
		close(f.events)
	})
}

func (f *fakeSession) sentBytes() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.sent)
}

func (f *fakeSession) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *fakeSession) closeSendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeSends
}

func nextEvent(t *testing.T, st ports.RecognitionStream) domain.RecognitionEvent {
	t.Helper()
	select {
	case event, ok := <-st.Events():
		if !ok {
			t.Fatalf("events channel closed unexpectedly")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for recognition event")
		return domain.RecognitionEvent{}
	}
}

// drain collects events until the channel closes.
func drain(t *testing.T, st ports.RecognitionStream) []domain.RecognitionEvent {
	t.Helper()
	var out []domain.RecognitionEvent
	deadline := time.After(3 * time.Second)
	for {
		select {
		case event, ok := <-st.Events():
			if !ok {
				return out
			}
			out = append(out, event)
		case <-deadline:
			t.Fatalf("events channel never closed, got %s", describe(out))
			return nil
		}
	}
}

func describe(events []domain.RecognitionEvent) string {
	parts := make([]string, 0, len(events))
	for _, event := range events {
		parts = append(parts, string(event.Type)+":"+string(event.ErrorCode))
	}
	return strings.Join(parts, ",")
}
