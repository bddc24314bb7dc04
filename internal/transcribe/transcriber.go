// Package transcribe turns audio chunks into text. Three engines implement
// Transcriber (Google Cloud Speech, OpenAI, a local Whisper sidecar) and are
// chosen by configuration; TranscribeAll and Combine reassemble a voicemail's
// transcript from its chunks by index.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/vmrelay/vmrelay/internal/apierr"
	"github.com/vmrelay/vmrelay/internal/audio"
)

// Backend names accepted by transcription.backend.
const (
	BackendGoogle  = "google"
	BackendOpenAI  = "openai"
	BackendWhisper = "whisper"
)

// Transcriber converts one audio chunk to text.
type Transcriber interface {
	// Transcribe returns the recognized text for chunk. An empty string with a
	// nil error means the engine heard nothing.
	Transcribe(ctx context.Context, chunk audio.Chunk) (string, error)

	// Format declares the PCM layout the engine expects. Chunks in any other
	// layout transcribe badly rather than failing.
	Format() audio.Format
}

// Compile-time interface compliance checks.
var (
	_ Transcriber = (*GoogleTranscriber)(nil)
	_ Transcriber = (*OpenAITranscriber)(nil)
	_ Transcriber = (*WhisperTranscriber)(nil)
)

// classifyStatus maps an HTTP status code to an apierr sentinel.
// Returns nil for 2xx.
func classifyStatus(code int, msg string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w", msg, apierr.ErrRateLimit)
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", msg, apierr.ErrAuthFailed)
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return fmt.Errorf("%s: %w", msg, apierr.ErrTimeout)
	case code >= 500:
		return fmt.Errorf("%s: %w", msg, apierr.ErrUnavailable)
	default:
		return fmt.Errorf("%s: %w", msg, apierr.ErrBadRequest)
	}
}

// isRetryableError determines if an error is transient and should be retried.
func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, apierr.ErrQuotaExceeded) {
		return false
	}
	return errors.Is(err, apierr.ErrRateLimit) ||
		errors.Is(err, apierr.ErrTimeout) ||
		errors.Is(err, apierr.ErrUnavailable)
}
