package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vmrelay/vmrelay/internal/apierr"
	"github.com/vmrelay/vmrelay/internal/audio"
	"github.com/vmrelay/vmrelay/internal/lang"
)

// Default retry configuration for the OpenAI backend.
const (
	defaultMaxRetries = 5
	defaultBaseDelay  = 1 * time.Second
	defaultMaxDelay   = 30 * time.Second
)

// audioTranscriber is an internal interface for OpenAI audio transcription.
// *openai.Client implements this implicitly.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

var _ audioTranscriber = (*openai.Client)(nil)

// OpenAITranscriber transcribes audio using OpenAI's transcription API.
// It supports automatic retries with exponential backoff for transient errors.
type OpenAITranscriber struct {
	client     audioTranscriber
	model      string
	language   lang.Language
	sampleRate int
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// OpenAIOption configures an OpenAITranscriber.
type OpenAIOption func(*OpenAITranscriber)

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) OpenAIOption {
	return func(t *OpenAITranscriber) {
		if n >= 0 {
			t.maxRetries = n
		}
	}
}

// WithRetryDelays sets the base and max delays for exponential backoff.
func WithRetryDelays(base, max time.Duration) OpenAIOption {
	return func(t *OpenAITranscriber) {
		if base > 0 {
			t.baseDelay = base
		}
		if max > 0 {
			t.maxDelay = max
		}
	}
}

// WithOpenAILanguage sets the spoken language hint. Only the base code is sent.
func WithOpenAILanguage(l lang.Language) OpenAIOption {
	return func(t *OpenAITranscriber) { t.language = l }
}

// WithOpenAISampleRate sets the rate chunks are expected to arrive at.
func WithOpenAISampleRate(hz int) OpenAIOption {
	return func(t *OpenAITranscriber) {
		if hz > 0 {
			t.sampleRate = hz
		}
	}
}

// NewOpenAITranscriber creates a new OpenAITranscriber around an API key.
func NewOpenAITranscriber(apiKey string, opts ...OpenAIOption) (*OpenAITranscriber, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyMissing
	}
	return newOpenAITranscriber(openai.NewClient(apiKey), opts...), nil
}

func newOpenAITranscriber(client audioTranscriber, opts ...OpenAIOption) *OpenAITranscriber {
	t := &OpenAITranscriber{
		client:     client,
		model:      openai.Whisper1,
		sampleRate: DefaultSampleRate,
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Format returns mono LINEAR16 at the configured sample rate.
// Whisper resamples internally, so this only keeps the preflight consistent.
func (t *OpenAITranscriber) Format() audio.Format {
	return audio.Linear16(t.sampleRate)
}

// Transcribe uploads the chunk as a WAV file.
// It automatically retries on transient errors (rate limits, timeouts, server errors).
func (t *OpenAITranscriber) Transcribe(ctx context.Context, chunk audio.Chunk) (string, error) {
	wav, err := chunk.WAV()
	if err != nil {
		return "", err
	}

	cfg := apierr.RetryConfig{
		MaxRetries: t.maxRetries,
		BaseDelay:  t.baseDelay,
		MaxDelay:   t.maxDelay,
	}

	return apierr.RetryWithBackoff(ctx, cfg, func() (string, error) {
		// go-openai takes the upload's file name from FilePath when Reader is set.
		req := openai.AudioRequest{
			Model:    t.model,
			FilePath: fmt.Sprintf("chunk-%03d.wav", chunk.Index),
			Reader:   bytes.NewReader(wav),
			Format:   openai.AudioResponseFormatJSON,
			Language: t.language.BaseCode(),
		}
		resp, err := t.client.CreateTranscription(ctx, req)
		if err != nil {
			return "", classifyError(err)
		}
		return strings.TrimSpace(resp.Text), nil
	}, isRetryableError)
}

// classifyError maps OpenAI API errors to sentinel errors.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		// Quota exceeded is a billing problem and needs user action, not a retry.
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests &&
			(strings.Contains(apiErr.Message, "quota") || strings.Contains(apiErr.Message, "billing")) {
			return fmt.Errorf("%s: %w", apiErr.Message, apierr.ErrQuotaExceeded)
		}
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, reqErr.Error())
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", apierr.ErrTimeout)
	}

	return err
}
