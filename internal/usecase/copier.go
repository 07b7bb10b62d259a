package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"livescribe/internal/domain"
	"livescribe/internal/ports"
	"livescribe/internal/telemetry"
)

var errNoClipboard = errors.New("no clipboard available")

// transcriptCopier writes to the primary clipboard and falls back to the
// secondary one when the primary is missing or rejects the write.
type transcriptCopier struct {
	primary  ports.Clipboard
	fallback ports.Clipboard
	log      zerolog.Logger
	metrics  *telemetry.Metrics
}

func newTranscriptCopier(primary ports.Clipboard, fallback ports.Clipboard, log zerolog.Logger, metrics *telemetry.Metrics) transcriptCopier {
	return transcriptCopier{primary: primary, fallback: fallback, log: log, metrics: metrics}
}

func (c transcriptCopier) Copy(ctx context.Context, text string) error {
	primaryErr := errNoClipboard
	if c.primary != nil {
		primaryErr = c.primary.SetText(ctx, text)
		if primaryErr == nil {
			return nil
		}
	}
	c.log.Warn().Err(primaryErr).Msg("primary clipboard write failed, using fallback")

	if c.fallback == nil {
		return domain.NewError(domain.ErrorCodeClipboard, msgCopyFailed).WithCause(primaryErr)
	}

	c.metrics.ClipboardFallback(ctx)
	if err := c.fallback.SetText(ctx, text); err != nil {
		return domain.NewError(domain.ErrorCodeClipboard, msgCopyFailed).WithCause(errors.Join(primaryErr, err))
	}
	return nil
}
