package recognition

import (
	"errors"
	"fmt"
	"io"

	"livescribe/internal/audio"
	"livescribe/internal/domain"
	"livescribe/internal/ports"
)

const defaultChunkSize = 4096

// failure is a stream-ending problem already classified for the UI.
type failure struct {
	code domain.RecognitionErrorCode
	err  error
}

func (f *failure) Error() string {
	return fmt.Sprintf("%s: %v", f.code, f.err)
}

func (f *failure) Unwrap() error { return f.err }

// pumpAudioChunks copies microphone audio into the provider until the
// recorder reaches EOF or something fails. A nil return means EOF.
func pumpAudioChunks(capture ports.AudioSession, stream ports.StreamingSession, chunkSize int) error {
	if chunkSize < 256 {
		chunkSize = defaultChunkSize
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := capture.Read(buf)
		if n > 0 {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				return &failure{code: domain.RecognitionErrorNetwork, err: fmt.Errorf("failed to stream audio: %w", sendErr)}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return &failure{code: captureErrorCode(err), err: fmt.Errorf("audio capture error: %w", err)}
		}
	}
}

func captureErrorCode(err error) domain.RecognitionErrorCode {
	if errors.Is(err, audio.ErrPermissionDenied) {
		return domain.RecognitionErrorNotAllowed
	}
	return domain.RecognitionErrorAudioCapture
}

func failureCode(err error, fallback domain.RecognitionErrorCode) domain.RecognitionErrorCode {
	var f *failure
	if errors.As(err, &f) {
		return f.code
	}
	return fallback
}
