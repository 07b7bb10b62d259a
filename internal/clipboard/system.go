package clipboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"

	"livescribe/internal/logging"
)

const defaultTimeout = 3 * time.Second

// ErrUnsupported means no clipboard utility is available on this host.
var ErrUnsupported = errors.New("system clipboard is not supported on this host")

// SystemClipboard writes through the platform clipboard utilities
// (wl-copy, xclip, xsel, pbcopy or the Windows API). It backs up the
// webview clipboard.
type SystemClipboard struct {
	write     func(string) error
	supported func() bool
	timeout   time.Duration
	log       zerolog.Logger
}

func NewSystemClipboard(log zerolog.Logger) *SystemClipboard {
	return &SystemClipboard{
		write:     clipboard.WriteAll,
		supported: func() bool { return !clipboard.Unsupported },
		timeout:   defaultTimeout,
		log:       logging.Component(log, "clipboard"),
	}
}

// Available reports whether a clipboard utility was found at init.
func (c *SystemClipboard) Available() bool {
	return c.supported()
}

func (c *SystemClipboard) SetText(ctx context.Context, text string) error {
	if !c.supported() {
		return ErrUnsupported
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.write(text) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("system clipboard write failed: %w", err)
		}
		c.log.Debug().Int("bytes", len(text)).Msg("copied via system clipboard")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("system clipboard write abandoned: %w", ctx.Err())
	}
}
