package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
)

type harness struct {
	controller *SessionController
	surface    *fakeSurface
	recognizer *fakeRecognizer
	probe      *fakeProbe
	clipboard  *fakeClipboard
	fallback   *fakeClipboard
	exporter   *fakeExporter
	clock      *fakeClock
}

func newHarness(t *testing.T, configure ...func(*harness, *Dependencies)) *harness {
	t.Helper()

	h := &harness{
		surface:    &fakeSurface{},
		recognizer: &fakeRecognizer{},
		probe:      &fakeProbe{availability: domain.Availability{Supported: true}},
		clipboard:  &fakeClipboard{},
		fallback:   &fakeClipboard{},
		exporter:   &fakeExporter{dir: "/downloads"},
		clock:      newFakeClock(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
	}
	deps := Dependencies{
		Recognizer: h.recognizer,
		Probe:      h.probe,
		Surface:    h.surface,
		Clipboard:  h.clipboard,
		Fallback:   h.fallback,
		Exporter:   h.exporter,
		Clock:      h.clock,
		Logger:     zerolog.New(io.Discard),
	}
	for _, fn := range configure {
		fn(h, &deps)
	}

	h.controller = NewSessionController(deps, Config{Language: "en-US"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.controller.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

// startRecording opens a stream and confirms capture.
func (h *harness) startRecording(t *testing.T) *fakeStream {
	t.Helper()

	if err := h.controller.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	stream := h.recognizer.last()
	if stream == nil {
		t.Fatalf("expected an opened stream")
	}
	stream.emit(domain.RecognitionEvent{Type: domain.RecognitionEventStart})
	h.waitForState(t, domain.SessionStateRecording)
	return stream
}

func (h *harness) waitForState(t *testing.T, state domain.SessionState) {
	t.Helper()
	eventually(t, func() bool {
		status, err := h.controller.Status(context.Background())
		return err == nil && status.State == state
	})
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func results(segments ...domain.ResultSegment) domain.RecognitionEvent {
	return domain.RecognitionEvent{Type: domain.RecognitionEventResult, Segments: segments}
}

func final(text string) domain.ResultSegment {
	return domain.ResultSegment{Text: text, IsFinal: true}
}

func interim(text string) domain.ResultSegment {
	return domain.ResultSegment{Text: text}
}

type fakeRecognizer struct {
	mu      sync.Mutex
	err     error
	configs []ports.RecognitionConfig
	streams []*fakeStream
}

func (f *fakeRecognizer) Open(_ context.Context, cfg ports.RecognitionConfig) (ports.RecognitionStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	stream := newFakeStream()
	f.streams = append(f.streams, stream)
	return stream, nil
}

func (f *fakeRecognizer) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.configs)
}

func (f *fakeRecognizer) config(i int) ports.RecognitionConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.configs[i]
}

func (f *fakeRecognizer) last() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

type fakeStream struct {
	events chan domain.RecognitionEvent

	mu         sync.Mutex
	stopCalls  int
	abortCalls int
	closed     bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan domain.RecognitionEvent, 16)}
}

func (f *fakeStream) Events() <-chan domain.RecognitionEvent { return f.events }

func (f *fakeStream) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *fakeStream) Abort() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.abortCalls++
	f.closeLocked()
	return nil
}

func (f *fakeStream) emit(event domain.RecognitionEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.events <- event
}

func (f *fakeStream) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
}

func (f *fakeStream) closeLocked() {
	if !f.closed {
		close(f.events)
		f.closed = true
	}
}

func (f *fakeStream) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

func (f *fakeStream) aborts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.abortCalls
}

type fakeProbe struct {
	availability domain.Availability
}

func (f *fakeProbe) Probe(_ context.Context) domain.Availability { return f.availability }

type fakeClipboard struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeClipboard) SetText(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.err
}

func (f *fakeClipboard) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.texts))
	copy(out, f.texts)
	return out
}

type fakeExporter struct {
	mu    sync.Mutex
	dir   string
	err   error
	names []string
	data  [][]byte
}

func (f *fakeExporter) Save(_ context.Context, name string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, name)
	f.data = append(f.data, append([]byte(nil), data...))
	if f.err != nil {
		return "", f.err
	}
	return f.dir + "/" + name, nil
}

func (f *fakeExporter) saves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.names)
}

type statusCall struct {
	state domain.SessionState
	text  string
}

type interimCall struct {
	text   string
	active bool
}

type fakeSurface struct {
	mu sync.Mutex

	statuses      []statusCall
	controls      domain.Controls
	transcript    string
	interims      []interimCall
	notifications []domain.Notification
	hidden        []uint64
	notices       []string
}

func (f *fakeSurface) SetStatus(state domain.SessionState, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, statusCall{state: state, text: text})
}

func (f *fakeSurface) SetControls(controls domain.Controls) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.controls = controls
}

func (f *fakeSurface) SetTranscript(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcript = text
}

func (f *fakeSurface) SetInterim(text string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interims = append(f.interims, interimCall{text: text, active: active})
}

func (f *fakeSurface) ShowNotification(notification domain.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, notification)
}

func (f *fakeSurface) HideNotification(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden = append(f.hidden, id)
}

func (f *fakeSurface) ShowCompatibilityNotice(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, message)
}

func (f *fakeSurface) lastNotification() (domain.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.notifications) == 0 {
		return domain.Notification{}, false
	}
	return f.notifications[len(f.notifications)-1], true
}

func (f *fakeSurface) lastInterim() (interimCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.interims) == 0 {
		return interimCall{}, false
	}
	return f.interims[len(f.interims)-1], true
}

func (f *fakeSurface) interimHistory() []interimCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]interimCall, len(f.interims))
	copy(out, f.interims)
	return out
}

func (f *fakeSurface) currentTranscript() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transcript
}

func (f *fakeSurface) currentControls() domain.Controls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.controls
}

func (f *fakeSurface) hiddenIDs() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint64, len(f.hidden))
	copy(out, f.hidden)
	return out
}

func (f *fakeSurface) compatibilityNotices() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.notices))
	copy(out, f.notices)
	return out
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) ports.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, timer)
	return timer
}

// Advance moves time forward and fires due timers on the caller goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, timer := range c.timers {
		if timer.stopped || timer.fired || timer.at.After(c.now) {
			continue
		}
		timer.fired = true
		due = append(due, timer.fn)
	}
	c.mu.Unlock()

	for _, fn := range due {
		fn()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, timer := range c.timers {
		if !timer.stopped && !timer.fired {
			count++
		}
	}
	return count
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

var errBoom = errors.New("boom")
