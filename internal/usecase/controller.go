package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"livescribe/internal/domain"
	"livescribe/internal/logging"
	"livescribe/internal/ports"
	"livescribe/internal/telemetry"
)

var (
	ErrAlreadyRunning  = errors.New("session controller is already running")
	ErrInvalidLanguage = errors.New("language code must not be empty")
)

const defaultLanguage = "en-US"

// Config controls session controller behavior.
type Config struct {
	Language  string
	InboxSize int
}

// Dependencies are the collaborators the controller drives.
type Dependencies struct {
	Recognizer ports.RecognitionService
	Probe      ports.CapabilityProbe
	Surface    ports.Presentation
	Clipboard  ports.Clipboard
	Fallback   ports.Clipboard
	Exporter   ports.Exporter
	Clock      ports.Clock
	Logger     zerolog.Logger
	Metrics    *telemetry.Metrics
}

// SessionController coordinates recognition sessions, the transcript buffer
// and the presentation surface. All state changes happen on the goroutine
// running Run; public methods enqueue work there and wait for the outcome.
type SessionController struct {
	recognizer ports.RecognitionService
	probe      ports.CapabilityProbe
	surface    ports.Presentation
	copier     transcriptCopier
	exporter   ports.Exporter
	clock      ports.Clock
	log        zerolog.Logger
	metrics    *telemetry.Metrics

	inbox   chan func()
	stopped chan struct{}
	runOnce sync.Once

	// Loop-owned.
	loopCtx   context.Context
	available domain.Availability
	language  string
	state     domain.SessionState
	current   *activeSession
	buffer    *transcriptBuffer
	notices   *notifier
}

func NewSessionController(deps Dependencies, cfg Config) *SessionController {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 64
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = defaultLanguage
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	log := logging.Component(deps.Logger, "session")

	c := &SessionController{
		recognizer: deps.Recognizer,
		probe:      deps.Probe,
		surface:    deps.Surface,
		copier:     newTranscriptCopier(deps.Clipboard, deps.Fallback, log, deps.Metrics),
		exporter:   deps.Exporter,
		clock:      deps.Clock,
		log:        log,
		metrics:    deps.Metrics,
		inbox:      make(chan func(), cfg.InboxSize),
		stopped:    make(chan struct{}),
		language:   strings.TrimSpace(cfg.Language),
		state:      domain.SessionStateReady,
		buffer:     newTranscriptBuffer(),
	}
	c.notices = newNotifier(deps.Surface, deps.Clock, c.post)
	return c
}

// Run probes for recognition support and then processes messages until ctx
// is cancelled. Commands issued before Run starts wait in the inbox.
func (c *SessionController) Run(ctx context.Context) error {
	first := false
	c.runOnce.Do(func() { first = true })
	if !first {
		return ErrAlreadyRunning
	}
	defer close(c.stopped)

	c.loopCtx = ctx
	c.initialize(ctx)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case task := <-c.inbox:
			task()
		}
	}
}

// Start opens a recognition stream. The recording state follows later, when
// the service confirms capture.
func (c *SessionController) Start(ctx context.Context) error {
	return c.exec(ctx, c.start)
}

// Stop asks the service to end the stream. It does not wait for the end.
func (c *SessionController) Stop(ctx context.Context) error {
	return c.exec(ctx, c.stop)
}

// Toggle stops an active session or starts a new one.
func (c *SessionController) Toggle(ctx context.Context) error {
	return c.exec(ctx, func() error {
		if c.isActive() {
			return c.stop()
		}
		return c.start()
	})
}

// Clear empties the transcript. It is allowed mid-session.
func (c *SessionController) Clear(ctx context.Context) error {
	return c.exec(ctx, func() error {
		c.buffer.Reset()
		c.surface.SetTranscript("")
		c.surface.SetInterim("", false)
		c.notices.Success(msgCleared)
		return nil
	})
}

// Copy writes the displayed transcript to the clipboard.
func (c *SessionController) Copy(ctx context.Context) error {
	return c.submit(ctx, func(finish func(error)) {
		text := c.buffer.Display()
		if text == "" {
			c.notices.Error(msgNothingToCopy)
			finish(domain.NewError(domain.ErrorCodeEmptyContent, msgNothingToCopy))
			return
		}

		opCtx := c.loopCtx
		go func() {
			err := c.copier.Copy(opCtx, text)
			c.post(func() {
				c.metrics.Copy(opCtx, err == nil)
				if err != nil {
					c.log.Error().Err(err).Msg("transcript copy failed")
					c.notices.Error(msgCopyFailed)
				} else {
					c.notices.Success(msgCopied)
				}
				finish(err)
			})
		}()
	})
}

// Download exports the displayed transcript as a text file and returns the
// saved location.
func (c *SessionController) Download(ctx context.Context) (string, error) {
	var saved string
	err := c.submit(ctx, func(finish func(error)) {
		text := c.buffer.Display()
		if text == "" {
			c.notices.Error(msgNothingToDownload)
			finish(domain.NewError(domain.ErrorCodeEmptyContent, msgNothingToDownload))
			return
		}
		if c.exporter == nil {
			c.notices.Error(msgDownloadFailed)
			finish(domain.NewError(domain.ErrorCodeExport, msgDownloadFailed))
			return
		}

		name := transcriptFileName(c.clock.Now())
		opCtx := c.loopCtx
		go func() {
			path, err := c.exporter.Save(opCtx, name, []byte(text))
			c.post(func() {
				c.metrics.Download(opCtx, err == nil)
				if err != nil {
					c.log.Error().Err(err).Str("file", name).Msg("transcript download failed")
					c.notices.Error(msgDownloadFailed)
					finish(domain.NewError(domain.ErrorCodeExport, msgDownloadFailed).WithCause(err))
					return
				}
				c.log.Info().Str("path", path).Msg("transcript downloaded")
				c.notices.Success(msgDownloaded)
				saved = path
				finish(nil)
			})
		}()
	})
	if err != nil {
		return "", err
	}
	return saved, nil
}

// SetLanguage changes the language used for the next session. A running
// stream keeps the language it was opened with.
func (c *SessionController) SetLanguage(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrInvalidLanguage
	}
	return c.exec(ctx, func() error {
		c.language = code
		c.log.Debug().Str(logging.FieldLanguage, code).Bool("deferred", c.current != nil).Msg("language changed")
		return nil
	})
}

// EditTranscript replaces the finalized text with a user edit.
func (c *SessionController) EditTranscript(ctx context.Context, text string) error {
	return c.exec(ctx, func() error {
		c.buffer.Replace(text)
		return nil
	})
}

// HandleShortcut runs the action bound to key and reports whether the key
// was consumed, in which case the UI must suppress its default behavior.
func (c *SessionController) HandleShortcut(ctx context.Context, key domain.KeyPress) (bool, error) {
	switch matchShortcut(key) {
	case shortcutToggle:
		return true, c.Toggle(ctx)
	case shortcutCopy:
		return true, c.Copy(ctx)
	case shortcutDownload:
		_, err := c.Download(ctx)
		return true, err
	default:
		return false, nil
	}
}

// Status returns the current session status.
func (c *SessionController) Status(ctx context.Context) (domain.Status, error) {
	var status domain.Status
	err := c.exec(ctx, func() error {
		status = domain.Status{
			State:     c.state,
			Active:    c.isActive(),
			Available: c.available.Supported,
			Language:  c.language,
		}
		if !c.available.Supported {
			status.Notice = compatibilityNotice(c.available.Reason)
		}
		if c.current != nil {
			status.SessionID = c.current.id
		}
		return nil
	})
	return status, err
}

// Transcript returns what the transcript regions currently show.
func (c *SessionController) Transcript(ctx context.Context) (domain.TranscriptView, error) {
	var view domain.TranscriptView
	err := c.exec(ctx, func() error {
		view = c.buffer.View()
		return nil
	})
	return view, err
}

func (c *SessionController) initialize(ctx context.Context) {
	c.available = c.probeAvailability(ctx)
	if !c.available.Supported {
		c.log.Warn().Str("reason", c.available.Reason).Msg("speech recognition unavailable")
		c.surface.ShowCompatibilityNotice(compatibilityNotice(c.available.Reason))
		c.notices.Error(unsupportedMessage(c.available.Reason))
	}
	c.setState(domain.SessionStateReady)
}

func (c *SessionController) probeAvailability(ctx context.Context) domain.Availability {
	if c.recognizer == nil {
		return domain.Availability{Supported: false, Reason: "No recognition service is configured."}
	}
	if c.probe == nil {
		return domain.Availability{Supported: true}
	}
	return c.probe.Probe(ctx)
}

func (c *SessionController) start() error {
	if !c.available.Supported {
		c.notices.Error(msgServiceUnavailable)
		return domain.ErrServiceUnavailable
	}
	if c.isActive() {
		c.log.Debug().Str(logging.FieldSessionID, c.current.id).Msg("start ignored, session already active")
		return nil
	}
	if c.current != nil {
		// An errored session still draining; drop it.
		c.abortCurrent()
	}

	c.setState(domain.SessionStateListening)

	cfg := ports.RecognitionConfig{Continuous: true, InterimResults: true, Language: c.language}
	stream, err := c.recognizer.Open(c.loopCtx, cfg)
	if err != nil {
		c.log.Error().Err(err).Str(logging.FieldLanguage, cfg.Language).Msg("failed to start recognition")
		c.notices.Error(msgStartFailed)
		c.setState(domain.SessionStateReady)
		return domain.NewError(domain.ErrorCodeStartFailed, msgStartFailed).WithCause(err)
	}

	active := newActiveSession(stream, cfg.Language, c.clock.Now())
	c.current = active
	c.surface.SetControls(c.controls())
	go c.forwardRecognitionEvents(active)

	c.log.Info().Str(logging.FieldSessionID, active.id).Str(logging.FieldLanguage, active.language).Msg("recognition session opened")
	return nil
}

func (c *SessionController) stop() error {
	if !c.isActive() {
		return nil
	}
	if err := c.current.stream.Stop(); err != nil {
		c.log.Warn().Err(err).Str(logging.FieldSessionID, c.current.id).Msg("recognition stop request failed")
	}
	return nil
}

func (c *SessionController) forwardRecognitionEvents(active *activeSession) {
	for event := range active.stream.Events() {
		event := event
		c.post(func() { c.handleRecognitionEvent(active, event) })
	}
	c.post(func() { c.onEnd(active) })
}

func (c *SessionController) handleRecognitionEvent(active *activeSession, event domain.RecognitionEvent) {
	if c.current != active {
		c.log.Debug().Str(logging.FieldSessionID, active.id).Str("event", string(event.Type)).Msg("dropping event from stale stream")
		return
	}

	switch event.Type {
	case domain.RecognitionEventStart:
		c.onStart(active)
	case domain.RecognitionEventResult:
		c.onResult(event.Segments)
	case domain.RecognitionEventError:
		c.onError(active, event.ErrorCode, event.Detail)
	case domain.RecognitionEventEnd:
		c.onEnd(active)
	}
}

func (c *SessionController) onStart(active *activeSession) {
	if active.closing {
		return
	}
	c.metrics.SessionStarted(c.loopCtx, active.language)
	c.log.Info().Str(logging.FieldSessionID, active.id).Dur("startup", c.clock.Now().Sub(active.openedAt)).Msg("recording")
	c.setState(domain.SessionStateRecording)
}

func (c *SessionController) onResult(segments []domain.ResultSegment) {
	if c.buffer.Apply(segments) {
		c.surface.SetTranscript(c.buffer.Display())
	}
	c.surface.SetInterim(c.buffer.Pending(), c.buffer.PendingActive())
}

// onError treats every recognition error as terminal for the session.
func (c *SessionController) onError(active *activeSession, code domain.RecognitionErrorCode, detail string) {
	c.metrics.RecognitionError(c.loopCtx, string(code))
	c.log.Error().
		Str(logging.FieldSessionID, active.id).
		Str(logging.FieldCode, string(code)).
		Str("detail", detail).
		Msg("speech recognition error")
	c.notices.Error(recognitionErrorMessage(code))

	if active.closing {
		return
	}
	active.closing = true
	if err := active.stream.Stop(); err != nil {
		c.log.Warn().Err(err).Str(logging.FieldSessionID, active.id).Msg("recognition stop request failed")
	}
	c.clearInterim()
	c.setState(domain.SessionStateReady)
}

// onEnd is the single authoritative session-closed signal.
func (c *SessionController) onEnd(active *activeSession) {
	if c.current != active {
		return
	}
	c.current = nil
	c.clearInterim()
	c.setState(domain.SessionStateReady)
	c.log.Info().Str(logging.FieldSessionID, active.id).Dur("duration", c.clock.Now().Sub(active.openedAt)).Msg("recognition session ended")
}

func (c *SessionController) clearInterim() {
	c.buffer.ClearPending()
	c.surface.SetInterim("", false)
}

func (c *SessionController) isActive() bool {
	return c.current != nil && !c.current.closing
}

func (c *SessionController) abortCurrent() {
	if c.current == nil {
		return
	}
	if err := c.current.stream.Abort(); err != nil {
		c.log.Warn().Err(err).Str(logging.FieldSessionID, c.current.id).Msg("recognition abort failed")
	}
	c.current = nil
}

func (c *SessionController) setState(state domain.SessionState) {
	c.state = state
	c.surface.SetStatus(state, state.StatusText())
	c.surface.SetControls(c.controls())
}

func (c *SessionController) controls() domain.Controls {
	return domain.Controls{
		StartEnabled: c.available.Supported && !c.isActive(),
		StopEnabled:  c.isActive(),
		Recording:    c.isActive() && c.state == domain.SessionStateRecording,
	}
}

func (c *SessionController) shutdown() {
	c.abortCurrent()
	c.notices.Close()
}

// submit runs task on the loop goroutine and waits until it calls finish,
// which may happen in a later loop iteration.
func (c *SessionController) submit(ctx context.Context, task func(finish func(error))) error {
	result := make(chan error, 1)
	run := func() {
		task(func(err error) { result <- err })
	}

	select {
	case c.inbox <- run:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return domain.ErrControllerClosed
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		select {
		case err := <-result:
			return err
		default:
			return domain.ErrControllerClosed
		}
	}
}

func (c *SessionController) exec(ctx context.Context, fn func() error) error {
	return c.submit(ctx, func(finish func(error)) { finish(fn()) })
}

// post queues fn from a background goroutine. It is dropped once the loop
// has exited. Never call it from the loop goroutine itself.
func (c *SessionController) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.stopped:
	}
}

func transcriptFileName(now time.Time) string {
	stamp := now.UTC().Format("2006-01-02T15:04:05")
	return "transcript-" + strings.ReplaceAll(stamp, ":", "-") + ".txt"
}
