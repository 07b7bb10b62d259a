package recognition

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"livescribe/internal/domain"
	"livescribe/internal/logging"
	"livescribe/internal/ports"
)

const defaultDrainTimeout = 5 * time.Second

var errNotConfigured = errors.New("recognition service is missing audio capture or transcription provider")

// Config controls how recognition streams capture and forward audio.
type Config struct {
	Audio     ports.AudioConfig
	ChunkSize int
	// NoSpeechTimeout ends a stream with a no-speech error when nothing is
	// recognized in time. Zero disables it.
	NoSpeechTimeout time.Duration
	// DrainTimeout bounds how long a stopped stream waits for the provider
	// to deliver its last results.
	DrainTimeout time.Duration
}

// Service is a ports.RecognitionService backed by microphone capture and a
// streaming transcription provider.
type Service struct {
	capture  ports.AudioCapture
	provider ports.TranscriptionProvider
	cfg      Config
	log      zerolog.Logger
}

func NewService(capture ports.AudioCapture, provider ports.TranscriptionProvider, cfg Config, log zerolog.Logger) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	return &Service{
		capture:  capture,
		provider: provider,
		cfg:      cfg,
		log:      logging.Component(log, "recognition"),
	}
}

// Probe checks the pieces recognition needs without opening a stream.
func (s *Service) Probe(_ context.Context) domain.Availability {
	if s.capture == nil || s.provider == nil {
		return domain.Availability{Supported: false, Reason: "No recognition backend is configured."}
	}
	if p, ok := s.provider.(interface{ Configured() bool }); ok && !p.Configured() {
		return domain.Availability{Supported: false, Reason: "No Deepgram API key is configured."}
	}
	if c, ok := s.capture.(interface{ Available() error }); ok {
		if err := c.Available(); err != nil {
			s.log.Warn().Err(err).Msg("audio recorder unavailable")
			return domain.Availability{Supported: false, Reason: "The audio recorder (ffmpeg) could not be found."}
		}
	}
	return domain.Availability{Supported: true}
}

// Open returns immediately. Capture and provider connection happen in the
// background and a start event is emitted once both are up.
func (s *Service) Open(ctx context.Context, cfg ports.RecognitionConfig) (ports.RecognitionStream, error) {
	if s.capture == nil || s.provider == nil {
		return nil, errNotConfigured
	}

	runCtx, cancel := context.WithCancel(ctx)
	st := &stream{
		events:   make(chan domain.RecognitionEvent, 32),
		stopCh:   make(chan struct{}),
		cancel:   cancel,
		capture:  s.capture,
		provider: s.provider,
		cfg:      s.cfg,
		rec:      cfg,
		log:      s.log.With().Str(logging.FieldLanguage, cfg.Language).Logger(),
	}
	go st.run(runCtx)
	return st, nil
}
