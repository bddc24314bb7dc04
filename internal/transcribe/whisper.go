package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/vmrelay/vmrelay/internal/apierr"
	"github.com/vmrelay/vmrelay/internal/audio"
	"github.com/vmrelay/vmrelay/internal/lang"
)

const (
	defaultWhisperURL   = "http://localhost:8387"
	defaultWhisperModel = "base"

	// whisperSampleRate is what faster-whisper decodes at internally.
	whisperSampleRate = 16000
)

// httpDoer abstracts HTTP client for testing.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// WhisperTranscriber posts chunks to a faster-whisper HTTP sidecar.
type WhisperTranscriber struct {
	url        string
	model      string
	language   lang.Language
	sampleRate int
	client     httpDoer
}

// WhisperOption configures a WhisperTranscriber.
type WhisperOption func(*WhisperTranscriber)

// WithWhisperModel overrides the model name sent with each request.
func WithWhisperModel(model string) WhisperOption {
	return func(t *WhisperTranscriber) {
		if model != "" {
			t.model = model
		}
	}
}

// WithWhisperLanguage sets the spoken language hint. Only the base code is sent.
func WithWhisperLanguage(l lang.Language) WhisperOption {
	return func(t *WhisperTranscriber) { t.language = l }
}

// WithWhisperSampleRate overrides the declared input rate.
func WithWhisperSampleRate(hz int) WhisperOption {
	return func(t *WhisperTranscriber) {
		if hz > 0 {
			t.sampleRate = hz
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c httpDoer) WhisperOption {
	return func(t *WhisperTranscriber) { t.client = c }
}

// NewWhisperTranscriber creates a transcriber for the sidecar at baseURL.
// timeout bounds each request; zero means DefaultTimeout.
func NewWhisperTranscriber(baseURL string, timeout time.Duration, opts ...WhisperOption) *WhisperTranscriber {
	if baseURL == "" {
		baseURL = defaultWhisperURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	t := &WhisperTranscriber{
		url:        strings.TrimRight(baseURL, "/"),
		model:      defaultWhisperModel,
		sampleRate: whisperSampleRate,
		client:     &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Format returns mono LINEAR16 at the sidecar's rate.
func (t *WhisperTranscriber) Format() audio.Format {
	return audio.Linear16(t.sampleRate)
}

// Transcribe sends the chunk as a WAV form upload to POST /transcribe.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, chunk audio.Chunk) (string, error) {
	wav, err := chunk.WAV()
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("audio", fmt.Sprintf("chunk-%03d.wav", chunk.Index))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := writer.WriteField("model", t.model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if code := t.language.BaseCode(); code != "" {
		if err := writer.WriteField("language", code); err != nil {
			return "", fmt.Errorf("write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url+"/transcribe", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", fmt.Errorf("whisper request: %w", apierr.ErrTimeout)
		}
		return "", fmt.Errorf("whisper request: %v: %w", err, apierr.ErrUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", classifyStatus(resp.StatusCode,
			fmt.Sprintf("whisper status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var result whisperResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode whisper response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

type whisperResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}
