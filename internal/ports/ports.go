package ports

import (
	"context"
	"io"
	"time"

	"livescribe/internal/domain"
)

// RecognitionConfig is fixed for the lifetime of one stream.
type RecognitionConfig struct {
	Continuous     bool
	InterimResults bool
	Language       string
}

// RecognitionStream is one continuous recognition session.
type RecognitionStream interface {
	// Events is closed after the end event.
	Events() <-chan domain.RecognitionEvent
	// Stop asks the service to finish; an end event follows later.
	Stop() error
	// Abort tears the stream down without waiting for pending results.
	Abort() error
}

// RecognitionService opens recognition streams. Open returns before the
// microphone is acquired; a start event confirms capture.
type RecognitionService interface {
	Open(ctx context.Context, cfg RecognitionConfig) (RecognitionStream, error)
}

// CapabilityProbe reports whether recognition can work on this system.
type CapabilityProbe interface {
	Probe(ctx context.Context) domain.Availability
}

// Presentation renders controller state. Calls are never polled.
type Presentation interface {
	SetStatus(state domain.SessionState, text string)
	SetControls(controls domain.Controls)
	SetTranscript(text string)
	SetInterim(text string, active bool)
	ShowNotification(notification domain.Notification)
	HideNotification(id uint64)
	ShowCompatibilityNotice(message string)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// Exporter stores a downloaded transcript and returns where it went.
type Exporter interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

// Clock abstracts time for notification expiry and export names.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	Language       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}
