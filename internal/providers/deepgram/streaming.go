package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
)

const (
	defaultBaseURL           = "https://api.deepgram.com/v1"
	defaultModel             = "nova-2"
	defaultKeepAliveInterval = 8 * time.Second
	defaultHandshakeTimeout  = 10 * time.Second
)

var (
	// ErrMissingAPIKey is returned before dialing when no key is configured.
	ErrMissingAPIKey = errors.New("deepgram api key is not configured")
	// ErrUnauthorized is returned when Deepgram rejects the key during the handshake.
	ErrUnauthorized = errors.New("deepgram rejected the api key")
	// ErrSendClosed is returned by SendAudio after CloseSend.
	ErrSendClosed = errors.New("audio stream is already closed")
)

// TransportError is a connection level failure talking to Deepgram.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("deepgram %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError is an error message Deepgram sent over an open stream.
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string {
	return "deepgram error: " + e.Message
}

// Config controls Deepgram websocket settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool

	// KeepAliveInterval is how often a KeepAlive message is sent while no
	// audio is flowing. Zero uses the default.
	KeepAliveInterval time.Duration
	HandshakeTimeout  time.Duration
	Logger            zerolog.Logger
}

// Provider implements ports.TranscriptionProvider for Deepgram.
type Provider struct {
	cfg    Config
	dialer *websocket.Dialer
	log    zerolog.Logger
}

func NewProvider(cfg Config) *Provider {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = defaultKeepAliveInterval
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = cfg.HandshakeTimeout
	return &Provider{
		cfg:    cfg,
		dialer: &dialer,
		log:    cfg.Logger.With().Str("component", "deepgram").Logger(),
	}
}

// Configured reports whether an API key is present.
func (p *Provider) Configured() bool {
	return strings.TrimSpace(p.cfg.APIKey) != ""
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if !p.Configured() {
		return nil, ErrMissingAPIKey
	}

	wsURL, err := buildListenURL(p.cfg, cfg)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.cfg.APIKey)

	conn, resp, err := p.dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w (status %d)", ErrUnauthorized, resp.StatusCode)
		}
		return nil, &TransportError{Op: "connect", Err: err}
	}
	p.log.Debug().Str("language", languageFor(p.cfg, cfg)).Msg("deepgram stream connected")

	session := &streamingSession{
		conn:      conn,
		events:    make(chan domain.TranscriptEvent, 64),
		audio:     make(chan []byte, 32),
		done:      make(chan struct{}),
		closed:    make(chan struct{}),
		readerOut: make(chan struct{}),
		writerOut: make(chan struct{}),
		keepAlive: p.cfg.KeepAliveInterval,
		log:       p.log,
	}

	session.wg.Add(2)
	go session.readLoop()
	go session.writeLoop()
	go func() {
		session.wg.Wait()
		close(session.events)
		close(session.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = session.Close()
		case <-session.done:
		}
	}()

	return session, nil
}

type streamingSession struct {
	conn *websocket.Conn

	events chan domain.TranscriptEvent
	audio  chan []byte
	done   chan struct{}
	// closed is closed by Close; readerOut and writerOut when the
	// respective loop exits.
	closed    chan struct{}
	readerOut chan struct{}
	writerOut chan struct{}

	keepAlive time.Duration
	log       zerolog.Logger

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

func (s *streamingSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return ErrSendClosed
	}

	copied := append([]byte(nil), chunk...)
	select {
	case s.audio <- copied:
		return nil
	case <-s.closed:
	case <-s.writerOut:
	}
	if err := s.waitErr(); err != nil {
		return err
	}
	return &TransportError{Op: "send", Err: errors.New("session closed")}
}

// CloseSend flushes queued audio and asks Deepgram to finalize the stream.
func (s *streamingSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *streamingSession) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *streamingSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *streamingSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *streamingSession) setErr(err error) {
	if err == nil {
		return
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && websocket.IsCloseError(closeErr,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *streamingSession) writeLoop() {
	defer s.wg.Done()
	defer close(s.writerOut)

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	idle := true

	for {
		select {
		case chunk, ok := <-s.audio:
			if !ok {
				if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`)); err != nil {
					s.setErr(&TransportError{Op: "close stream", Err: err})
				}
				return
			}
			idle = false
			if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				s.setErr(&TransportError{Op: "send", Err: err})
				return
			}
		case <-s.readerOut:
			return
		case <-ticker.C:
			if idle {
				if err := s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`)); err != nil {
					s.setErr(&TransportError{Op: "keep alive", Err: err})
					return
				}
				s.log.Trace().Msg("deepgram keep alive sent")
			}
			idle = true
		}
	}
}

func (s *streamingSession) readLoop() {
	defer s.wg.Done()
	defer close(s.readerOut)

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isClosed() {
				s.setErr(&TransportError{Op: "read", Err: err})
			}
			return
		}

		var response deepgramResponse
		if err := json.Unmarshal(payload, &response); err != nil {
			s.log.Debug().Err(err).Msg("skipping undecodable deepgram message")
			continue
		}

		if strings.EqualFold(response.Type, "Error") {
			message := strings.TrimSpace(response.Message)
			if message == "" {
				message = strings.TrimSpace(response.Description)
			}
			if message == "" {
				message = "unknown error"
			}
			s.setErr(&ProviderError{Message: message})
			return
		}

		// Empty results still count: a blank final closes the utterance.
		transcript, ok := extractTranscript(response)
		if !ok {
			continue
		}

		event := domain.TranscriptEvent{Text: transcript}
		if response.IsFinal || response.SpeechFinal {
			event.Kind = domain.TranscriptKindFinal
		} else {
			event.Kind = domain.TranscriptKindPartial
		}
		s.emit(event)
	}
}

// emit waits for the consumer so finals are never dropped, unless the
// session is being torn down.
func (s *streamingSession) emit(event domain.TranscriptEvent) {
	select {
	case s.events <- event:
	case <-s.closed:
	}
}

type deepgramResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Description string `json:"description"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`

	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string `json:"transcript"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// extractTranscript reports false for messages that carry no alternatives,
// such as Metadata or SpeechStarted.
func extractTranscript(response deepgramResponse) (string, bool) {
	if len(response.Channel.Alternatives) > 0 {
		return strings.TrimSpace(response.Channel.Alternatives[0].Transcript), true
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript), true
	}
	return "", false
}

// languageFor prefers the per-stream language over the provider default.
func languageFor(providerCfg Config, streamCfg ports.StreamingConfig) string {
	if lang := strings.TrimSpace(streamCfg.Language); lang != "" {
		return lang
	}
	return strings.TrimSpace(providerCfg.Language)
}

func buildListenURL(providerCfg Config, streamCfg ports.StreamingConfig) (string, error) {
	base := strings.TrimSpace(providerCfg.APIBaseURL)
	if base == "" {
		base = defaultBaseURL
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	listenURL, err := url.Parse(base + "/listen")
	if err != nil {
		return "", fmt.Errorf("invalid Deepgram API base URL: %w", err)
	}

	if streamCfg.Encoding == "" {
		streamCfg.Encoding = "linear16"
	}
	if streamCfg.SampleRate <= 0 {
		streamCfg.SampleRate = 16000
	}
	if streamCfg.Channels <= 0 {
		streamCfg.Channels = 1
	}

	query := listenURL.Query()
	query.Set("model", providerCfg.Model)
	query.Set("encoding", streamCfg.Encoding)
	query.Set("sample_rate", strconv.Itoa(streamCfg.SampleRate))
	query.Set("channels", strconv.Itoa(streamCfg.Channels))
	query.Set("interim_results", strconv.FormatBool(streamCfg.InterimResults))
	query.Set("smart_format", strconv.FormatBool(providerCfg.SmartFormat))
	if lang := languageFor(providerCfg, streamCfg); lang != "" {
		query.Set("language", lang)
	}
	listenURL.RawQuery = query.Encode()
	return listenURL.String(), nil
}
