package usecase

import (
	"time"

	"github.com/google/uuid"

	"livescribe/internal/ports"
)

// activeSession is the stream whose events the controller accepts.
type activeSession struct {
	id       string
	stream   ports.RecognitionStream
	language string
	openedAt time.Time

	// closing is set once an error has forced the session inactive; the
	// stream may still flush results before its end event.
	closing bool
}

func newActiveSession(stream ports.RecognitionStream, language string, now time.Time) *activeSession {
	return &activeSession{
		id:       uuid.NewString(),
		stream:   stream,
		language: language,
		openedAt: now,
	}
}
