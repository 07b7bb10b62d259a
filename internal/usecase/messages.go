package usecase

import (
	"strings"

	"livescribe/internal/domain"
)

const (
	msgServiceUnavailable = "Speech recognition not available"
	msgStartFailed        = "Failed to start recording"
	msgCleared            = "Transcript cleared"
	msgNothingToCopy      = "No text to copy"
	msgCopied             = "Text copied to clipboard"
	msgCopyFailed         = "Failed to copy text"
	msgNothingToDownload  = "No text to download"
	msgDownloaded         = "Transcript downloaded"
	msgDownloadFailed     = "Failed to download transcript"
)

func recognitionErrorMessage(code domain.RecognitionErrorCode) string {
	switch code {
	case domain.RecognitionErrorNoSpeech:
		return "No speech detected. Please try again."
	case domain.RecognitionErrorAudioCapture:
		return "Audio capture failed. Please check your microphone."
	case domain.RecognitionErrorNotAllowed:
		return "Microphone access denied. Please allow microphone access."
	case domain.RecognitionErrorNetwork:
		return "Network error occurred. Please check your connection."
	default:
		return "An error occurred during speech recognition."
	}
}

func unsupportedMessage(reason string) string {
	return joinSentences("Speech recognition is not supported on this system.", reason)
}

func compatibilityNotice(reason string) string {
	return joinSentences("This application requires a working speech recognition service.", reason)
}

func joinSentences(head string, tail string) string {
	tail = strings.TrimSpace(tail)
	if tail == "" {
		return head
	}
	return head + " " + tail
}
