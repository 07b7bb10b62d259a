package domain

import "time"

// SessionState models the recognition session lifecycle.
type SessionState string

const (
	SessionStateReady     SessionState = "ready"
	SessionStateListening SessionState = "listening"
	SessionStateRecording SessionState = "recording"
)

// StatusText returns the label shown next to the status dot.
func (s SessionState) StatusText() string {
	switch s {
	case SessionStateListening:
		return "Listening..."
	case SessionStateRecording:
		return "Recording..."
	default:
		return "Ready to record"
	}
}

// RecognitionEventType identifies what a recognition service is reporting.
type RecognitionEventType string

const (
	RecognitionEventStart  RecognitionEventType = "start"
	RecognitionEventResult RecognitionEventType = "result"
	RecognitionEventError  RecognitionEventType = "error"
	RecognitionEventEnd    RecognitionEventType = "end"
)

// RecognitionErrorCode is the service-reported failure reason.
type RecognitionErrorCode string

const (
	RecognitionErrorNoSpeech     RecognitionErrorCode = "no-speech"
	RecognitionErrorAudioCapture RecognitionErrorCode = "audio-capture"
	RecognitionErrorNotAllowed   RecognitionErrorCode = "not-allowed"
	RecognitionErrorNetwork      RecognitionErrorCode = "network"
)

// ResultSegment is one piece of recognized speech.
type ResultSegment struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// RecognitionEvent is delivered by a recognition stream. Result batches only
// carry segments that are new since the previous event.
type RecognitionEvent struct {
	Type      RecognitionEventType
	Segments  []ResultSegment
	ErrorCode RecognitionErrorCode
	Detail    string
}

// TranscriptEvent represents incremental transcription output from a provider.
type TranscriptEvent struct {
	Kind TranscriptKind `json:"kind"`
	Text string         `json:"text"`
}

// TranscriptKind identifies whether a provider event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// NotificationKind selects the banner style.
type NotificationKind string

const (
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

// Notification is a transient banner message.
type Notification struct {
	ID        uint64           `json:"id"`
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"kind"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// Controls is the enabled state of the start/stop buttons.
type Controls struct {
	StartEnabled bool `json:"startEnabled"`
	StopEnabled  bool `json:"stopEnabled"`
	Recording    bool `json:"recording"`
}

// KeyPress is a keyboard event forwarded by the UI.
type KeyPress struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrl"`
	Meta  bool   `json:"meta"`
	Shift bool   `json:"shift"`
}

// Availability is the result of probing for recognition support.
type Availability struct {
	Supported bool   `json:"supported"`
	Reason    string `json:"reason,omitempty"`
}

// Status summarizes the current runtime status. Notice is the persistent
// compatibility message and is empty while recognition is available.
type Status struct {
	State     SessionState `json:"state"`
	Active    bool         `json:"active"`
	Available bool         `json:"available"`
	Language  string       `json:"language"`
	SessionID string       `json:"sessionId,omitempty"`
	Notice    string       `json:"notice,omitempty"`
}

// TranscriptView is what the transcript regions currently show.
type TranscriptView struct {
	Finalized     string `json:"finalized"`
	Pending       string `json:"pending"`
	PendingActive bool   `json:"pendingActive"`
}
