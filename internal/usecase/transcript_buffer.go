package usecase

import (
	"strings"

	"github.com/samber/lo"

	"livescribe/internal/domain"
)

// transcriptBuffer holds committed and in-flight recognition text. It is
// owned by the controller loop and never shared.
type transcriptBuffer struct {
	finalized string
	pending   string
}

func newTranscriptBuffer() *transcriptBuffer {
	return &transcriptBuffer{}
}

// Apply consumes one result batch and reports whether any final segment was
// committed. Interim text is replaced, never accumulated across batches, so
// a batch holding only a blank final still clears it.
func (b *transcriptBuffer) Apply(segments []domain.ResultSegment) bool {
	committed := false
	for _, segment := range segments {
		if segment.IsFinal && strings.TrimSpace(segment.Text) != "" {
			b.finalized += segment.Text + " "
			committed = true
		}
	}

	interim := strings.Join(lo.FilterMap(segments, func(segment domain.ResultSegment, _ int) (string, bool) {
		return segment.Text, !segment.IsFinal
	}), "")
	if strings.TrimSpace(interim) == "" {
		interim = ""
	}
	b.pending = interim
	return committed
}

// Display is the finalized text as the transcript region shows it.
func (b *transcriptBuffer) Display() string {
	return strings.TrimSpace(b.finalized)
}

func (b *transcriptBuffer) Finalized() string { return b.finalized }

func (b *transcriptBuffer) Pending() string { return b.pending }

func (b *transcriptBuffer) PendingActive() bool { return b.pending != "" }

// Replace makes a user edit the authoritative finalized text.
func (b *transcriptBuffer) Replace(text string) {
	b.finalized = text
}

func (b *transcriptBuffer) ClearPending() {
	b.pending = ""
}

func (b *transcriptBuffer) Reset() {
	b.finalized = ""
	b.pending = ""
}

func (b *transcriptBuffer) View() domain.TranscriptView {
	return domain.TranscriptView{
		Finalized:     b.Display(),
		Pending:       b.pending,
		PendingActive: b.PendingActive(),
	}
}
