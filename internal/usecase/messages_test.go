package usecase

import (
	"testing"

	"livescribe/internal/domain"
)

func TestRecognitionErrorMessage(t *testing.T) {
	t.Parallel()

	tests := map[domain.RecognitionErrorCode]string{
		domain.RecognitionErrorNoSpeech:     "No speech detected. Please try again.",
		domain.RecognitionErrorAudioCapture: "Audio capture failed. Please check your microphone.",
		domain.RecognitionErrorNotAllowed:   "Microphone access denied. Please allow microphone access.",
		domain.RecognitionErrorNetwork:      "Network error occurred. Please check your connection.",
		"service-not-allowed":               "An error occurred during speech recognition.",
		"":                                  "An error occurred during speech recognition.",
	}
	for code, want := range tests {
		if got := recognitionErrorMessage(code); got != want {
			t.Fatalf("recognitionErrorMessage(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestUnsupportedMessageIncludesReason(t *testing.T) {
	t.Parallel()

	if got := unsupportedMessage(""); got != "Speech recognition is not supported on this system." {
		t.Fatalf("unexpected message: %q", got)
	}
	if got := unsupportedMessage(" ffmpeg missing "); got != "Speech recognition is not supported on this system. ffmpeg missing" {
		t.Fatalf("unexpected message: %q", got)
	}
}
