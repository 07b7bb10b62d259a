package bootstrap

import (
	"fmt"

	"github.com/rs/zerolog"

	"livescribe/internal/audio"
	"livescribe/internal/clipboard"
	"livescribe/internal/config"
	"livescribe/internal/export"
	"livescribe/internal/logging"
	"livescribe/internal/ports"
	"livescribe/internal/providers/deepgram"
	"livescribe/internal/recognition"
	"livescribe/internal/telemetry"
	"livescribe/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
	Logger     zerolog.Logger
	ExportDir  string
}

// Build wires all backend dependencies for the current runtime. primary is
// the shell's clipboard; the system clipboard backs it up.
func Build(surface ports.Presentation, primary ports.Clipboard, opts ...config.Option) (Services, error) {
	cfg, err := config.Load(opts...)
	if err != nil {
		return Services{}, err
	}

	log := logging.New(cfg.Log)

	metrics, err := telemetry.NewMetrics(nil)
	if err != nil {
		return Services{}, fmt.Errorf("failed to register metrics: %w", err)
	}

	exporter, err := export.NewFileExporter(cfg.Export.Dir, log)
	if err != nil {
		return Services{}, err
	}

	provider := deepgram.NewProvider(deepgram.Config{
		APIKey:            cfg.Deepgram.APIKey,
		APIBaseURL:        cfg.Deepgram.APIBaseURL,
		Model:             cfg.Deepgram.Model,
		Language:          cfg.Language,
		SmartFormat:       cfg.Deepgram.SmartFormat,
		KeepAliveInterval: cfg.Deepgram.KeepAlive,
		Logger:            log,
	})

	recognizer := recognition.NewService(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		provider,
		recognition.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			ChunkSize:       cfg.Session.ChunkSize,
			NoSpeechTimeout: cfg.Session.NoSpeechTimeout,
			DrainTimeout:    cfg.Session.DrainTimeout,
		},
		log,
	)

	controller := usecase.NewSessionController(
		usecase.Dependencies{
			Recognizer: recognizer,
			Probe:      recognizer,
			Surface:    surface,
			Clipboard:  primary,
			Fallback:   clipboard.NewSystemClipboard(log),
			Exporter:   exporter,
			Logger:     log,
			Metrics:    metrics,
		},
		usecase.Config{Language: cfg.Language},
	)

	log.Info().
		Str(logging.FieldLanguage, cfg.Language).
		Str("model", cfg.Deepgram.Model).
		Str("export_dir", exporter.Dir()).
		Msg("services ready")

	return Services{Controller: controller, Config: cfg, Logger: log, ExportDir: exporter.Dir()}, nil
}
