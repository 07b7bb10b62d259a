package main

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"livescribe/internal/bootstrap"
	"livescribe/internal/config"
	"livescribe/internal/domain"
	"livescribe/internal/usecase"
)

const (
	eventStatus           = "livescribe:status"
	eventControls         = "livescribe:controls"
	eventTranscript       = "livescribe:transcript"
	eventInterim          = "livescribe:interim"
	eventNotification     = "livescribe:notification"
	eventNotificationHide = "livescribe:notification-hide"
	eventCompatibility    = "livescribe:compatibility"
)

var errNotInitialized = errors.New("application is not initialized")

// Language is a recognition language offered in the picker.
type Language struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var supportedLanguages = []Language{
	{Code: "en-US", Label: "English (US)"},
	{Code: "en-GB", Label: "English (UK)"},
	{Code: "es-ES", Label: "Spanish"},
	{Code: "fr-FR", Label: "French"},
	{Code: "de-DE", Label: "German"},
	{Code: "it-IT", Label: "Italian"},
	{Code: "pt-BR", Label: "Portuguese (Brazil)"},
	{Code: "nl-NL", Label: "Dutch"},
	{Code: "ja-JP", Label: "Japanese"},
	{Code: "ko-KR", Label: "Korean"},
	{Code: "zh-CN", Label: "Chinese (Mandarin)"},
}

// Shortcut documents a keyboard binding for the help panel.
type Shortcut struct {
	Keys   string `json:"keys"`
	Action string `json:"action"`
}

// App is the Wails application root. It renders controller output by
// emitting runtime events and forwards bound calls to the controller.
type App struct {
	ctx  context.Context
	emit func(ctx context.Context, name string, data ...interface{})

	controller *usecase.SessionController
	cfg        config.Config
	log        zerolog.Logger
	exportDir  string
	bootErr    error

	stop context.CancelFunc
	done chan error
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit, log: zerolog.Nop()}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, &wailsClipboard{})
	if err != nil {
		a.bootErr = err
		a.log.Error().Err(err).Msg("startup failed")
		a.ShowCompatibilityNotice(startupNotice(err))
		return
	}

	a.cfg = services.Config
	a.log = services.Logger
	a.exportDir = services.ExportDir
	a.controller = services.Controller

	runCtx, cancel := context.WithCancel(ctx)
	a.stop = cancel
	a.done = make(chan error, 1)
	go func() { a.done <- a.controller.Run(runCtx) }()
}

func (a *App) shutdown(_ context.Context) {
	if a.stop == nil {
		return
	}
	a.stop()
	if err := <-a.done; err != nil {
		a.log.Error().Err(err).Msg("session controller stopped with error")
	}
}

// Start begins a recognition session.
func (a *App) Start() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Start(a.ctx)
}

// Stop asks the current session to finish.
func (a *App) Stop() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Stop(a.ctx)
}

// Toggle starts or stops recording.
func (a *App) Toggle() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Toggle(a.ctx)
}

// Clear empties the transcript.
func (a *App) Clear() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Clear(a.ctx)
}

// Copy puts the transcript on the clipboard.
func (a *App) Copy() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Copy(a.ctx)
}

// Download saves the transcript and returns the file path.
func (a *App) Download() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	return a.controller.Download(a.ctx)
}

// SetLanguage selects the language for the next session.
func (a *App) SetLanguage(code string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.SetLanguage(a.ctx, code)
}

// EditTranscript stores text the user typed into the transcript region.
func (a *App) EditTranscript(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.EditTranscript(a.ctx, text)
}

// HandleShortcut reports whether the frontend must suppress the key's
// default behavior.
func (a *App) HandleShortcut(key domain.KeyPress) (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	return a.controller.HandleShortcut(a.ctx, key)
}

// GetStatus returns the current session status. The frontend renders its
// initial state from it, since events emitted during startup arrive before
// the page subscribes. A failed startup is reported as an unavailable status.
func (a *App) GetStatus() (domain.Status, error) {
	if a.bootErr != nil {
		return domain.Status{State: domain.SessionStateReady, Notice: startupNotice(a.bootErr)}, nil
	}
	if err := a.requireReady(); err != nil {
		return domain.Status{State: domain.SessionStateReady}, err
	}
	return a.controller.Status(a.ctx)
}

// GetTranscript returns what the transcript regions show.
func (a *App) GetTranscript() (domain.TranscriptView, error) {
	if err := a.requireReady(); err != nil {
		return domain.TranscriptView{}, err
	}
	return a.controller.Transcript(a.ctx)
}

// GetLanguages lists the languages offered in the picker.
func (a *App) GetLanguages() []Language {
	out := make([]Language, len(supportedLanguages))
	copy(out, supportedLanguages)
	return out
}

// GetShortcuts lists the keyboard bindings.
func (a *App) GetShortcuts() []Shortcut {
	return []Shortcut{
		{Keys: "Ctrl/Cmd + Enter", Action: "Start/Stop recording"},
		{Keys: "Ctrl/Cmd + Shift + C", Action: "Copy transcript"},
		{Keys: "Ctrl/Cmd + Shift + D", Action: "Download transcript"},
	}
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"provider":         "Deepgram",
		"model":            a.cfg.Deepgram.Model,
		"language":         a.cfg.Language,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
		"exportDir":        a.exportDir,
	}
}

func startupNotice(err error) string {
	return "Startup failed: " + err.Error()
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return errNotInitialized
	}
	return nil
}

// SetStatus renders the status dot and label.
func (a *App) SetStatus(state domain.SessionState, text string) {
	a.send(eventStatus, map[string]string{"state": string(state), "text": text})
}

func (a *App) SetControls(controls domain.Controls) {
	a.send(eventControls, controls)
}

func (a *App) SetTranscript(text string) {
	a.send(eventTranscript, map[string]string{"text": text})
}

func (a *App) SetInterim(text string, active bool) {
	a.send(eventInterim, map[string]interface{}{"text": text, "active": active})
}

func (a *App) ShowNotification(notification domain.Notification) {
	a.send(eventNotification, map[string]interface{}{
		"id":        notification.ID,
		"message":   notification.Message,
		"kind":      string(notification.Kind),
		"expiresAt": notification.ExpiresAt.UnixMilli(),
	})
}

func (a *App) HideNotification(id uint64) {
	a.send(eventNotificationHide, map[string]uint64{"id": id})
}

func (a *App) ShowCompatibilityNotice(message string) {
	a.send(eventCompatibility, map[string]string{"message": message})
}

func (a *App) send(name string, payload interface{}) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

// wailsClipboard writes through the Wails runtime. ctx must descend from
// the context Wails passed to startup.
type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
