package recognition

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
)

var (
	errNoSpeech       = errors.New("no speech recognized before timeout")
	errRecorderExited = errors.New("audio recorder stopped unexpectedly")
)

// stream is one recognition session. Its events always finish with an end
// event followed by channel close, unless the stream was aborted.
type stream struct {
	events   chan domain.RecognitionEvent
	stopCh   chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc

	capture  ports.AudioCapture
	provider ports.TranscriptionProvider
	cfg      Config
	rec      ports.RecognitionConfig
	log      zerolog.Logger
}

func (s *stream) Events() <-chan domain.RecognitionEvent { return s.events }

// Stop stops capture and lets the provider flush its last results.
func (s *stream) Stop() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

// Abort drops the provider connection and capture immediately.
func (s *stream) Abort() error {
	s.cancel()
	return nil
}

func (s *stream) run(ctx context.Context) {
	defer close(s.events)
	defer s.cancel()

	s.transcribe(ctx)
	s.emit(ctx, domain.RecognitionEvent{Type: domain.RecognitionEventEnd})
}

func (s *stream) transcribe(ctx context.Context) {
	capture, err := s.capture.Start(ctx, s.cfg.Audio)
	if err != nil {
		if ctx.Err() == nil {
			s.fail(ctx, captureErrorCode(err), err)
		}
		return
	}
	defer func() {
		if err := capture.Stop(); err != nil {
			s.log.Debug().Err(err).Msg("audio capture stop reported an error")
		}
	}()
	if s.stopRequested() {
		return
	}

	session, err := s.provider.StartStreaming(ctx, ports.StreamingConfig{
		SampleRate:     s.cfg.Audio.SampleRate,
		Channels:       s.cfg.Audio.Channels,
		Encoding:       "linear16",
		Language:       s.rec.Language,
		InterimResults: s.rec.InterimResults,
	})
	if err != nil {
		if ctx.Err() == nil {
			s.fail(ctx, domain.RecognitionErrorNetwork, err)
		}
		return
	}
	defer session.Close()

	// A stop during connect ends the stream without it ever starting.
	if s.stopRequested() {
		s.log.Debug().Msg("recognition stopped before start")
		return
	}
	if !s.emit(ctx, domain.RecognitionEvent{Type: domain.RecognitionEventStart}) {
		return
	}
	s.log.Debug().Msg("recognition stream started")

	pumpDone := make(chan error, 1)
	go func() { pumpDone <- pumpAudioChunks(capture, session, s.cfg.ChunkSize) }()

	var noSpeech <-chan time.Time
	if s.cfg.NoSpeechTimeout > 0 {
		timer := time.NewTimer(s.cfg.NoSpeechTimeout)
		defer timer.Stop()
		noSpeech = timer.C
	}

	var drain <-chan time.Time
	stopCh := s.stopCh
	stopping := false
	failed := false

	beginStop := func() {
		if stopping {
			return
		}
		stopping = true
		stopCh = nil
		noSpeech = nil
		if err := capture.Stop(); err != nil {
			s.log.Debug().Err(err).Msg("audio capture stop reported an error")
		}
		timer := time.NewTimer(s.cfg.DrainTimeout)
		drain = timer.C
	}

	providerEvents := session.Events()
	for providerEvents != nil {
		select {
		case <-ctx.Done():
			return

		case <-stopCh:
			s.log.Debug().Msg("recognition stop requested")
			beginStop()

		case <-noSpeech:
			failed = true
			s.fail(ctx, domain.RecognitionErrorNoSpeech, errNoSpeech)
			beginStop()

		case <-drain:
			drain = nil
			s.log.Warn().Dur("timeout", s.cfg.DrainTimeout).Msg("provider did not finish in time, closing")
			_ = session.Close()

		case err := <-pumpDone:
			pumpDone = nil
			if !stopping && !failed {
				if err == nil {
					err = errRecorderExited
				}
				failed = true
				code := failureCode(err, domain.RecognitionErrorAudioCapture)
				s.fail(ctx, code, err)
				if code == domain.RecognitionErrorNetwork {
					_ = session.Close()
				}
			}
			beginStop()
			_ = session.CloseSend()

		case event, ok := <-providerEvents:
			if !ok {
				providerEvents = nil
				continue
			}
			// Blank results are forwarded so a blank final still replaces
			// the interim text, but they do not count as speech.
			if strings.TrimSpace(event.Text) != "" {
				noSpeech = nil
			}
			segment := domain.ResultSegment{Text: event.Text, IsFinal: event.Kind == domain.TranscriptKindFinal}
			if !s.emit(ctx, domain.RecognitionEvent{Type: domain.RecognitionEventResult, Segments: []domain.ResultSegment{segment}}) {
				return
			}
		}
	}

	if err := session.Wait(); err != nil && !failed && ctx.Err() == nil {
		s.fail(ctx, domain.RecognitionErrorNetwork, err)
	}
}

func (s *stream) stopRequested() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *stream) fail(ctx context.Context, code domain.RecognitionErrorCode, err error) {
	s.log.Warn().Err(err).Str(logging.FieldCode, string(code)).Msg("recognition stream failed")
	s.emit(ctx, domain.RecognitionEvent{
		Type:      domain.RecognitionEventError,
		ErrorCode: code,
		Detail:    err.Error(),
	})
}

// emit delivers event unless the stream has been aborted.
func (s *stream) emit(ctx context.Context, event domain.RecognitionEvent) bool {
	select {
	case s.events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}
