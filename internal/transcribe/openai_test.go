package transcribe_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/vmrelay/vmrelay/internal/apierr"
	"github.com/vmrelay/vmrelay/internal/lang"
	"github.com/vmrelay/vmrelay/internal/transcribe"
)

// mockAudioClient replays a queue of responses.
type mockAudioClient struct {
	mu        sync.Mutex
	responses []mockResponse
	requests  []openai.AudioRequest
	bodies    [][]byte
}

type mockResponse struct {
	text string
	err  error
}

var _ transcribe.AudioTranscriber = (*mockAudioClient)(nil)

func (m *mockAudioClient) CreateTranscription(_ context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	body, _ := io.ReadAll(req.Reader)
	m.requests = append(m.requests, req)
	m.bodies = append(m.bodies, body)

	if len(m.responses) == 0 {
		return openai.AudioResponse{}, errors.New("no more responses")
	}
	r := m.responses[0]
	m.responses = m.responses[1:]
	return openai.AudioResponse{Text: r.text}, r.err
}

func apiError(code int, msg string) error {
	return &openai.APIError{HTTPStatusCode: code, Message: msg}
}

// ---------------------------------------------------------------------------
// OpenAITranscriber.Transcribe
// ---------------------------------------------------------------------------

func TestOpenAITranscriber_Transcribe(t *testing.T) {
	t.Parallel()

	client := &mockAudioClient{responses: []mockResponse{{text: "  goedemiddag  "}}}
	tr := transcribe.NewTestOpenAITranscriber(client, transcribe.WithOpenAILanguage(lang.MustParse("nl-NL")))

	got, err := tr.Transcribe(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got != "goedemiddag" {
		t.Errorf("Transcribe() = %q, want goedemiddag", got)
	}

	req := client.requests[0]
	if req.Model != openai.Whisper1 {
		t.Errorf("model = %q", req.Model)
	}
	if req.Language != "nl" {
		t.Errorf("language = %q, want base code nl", req.Language)
	}
	if req.FilePath != "chunk-000.wav" {
		t.Errorf("file name = %q", req.FilePath)
	}
	if !bytes.HasPrefix(client.bodies[0], []byte("RIFF")) {
		t.Error("upload is not a WAV file")
	}
}

func TestOpenAITranscriber_RetriesTransient(t *testing.T) {
	t.Parallel()

	client := &mockAudioClient{responses: []mockResponse{
		{err: apiError(http.StatusServiceUnavailable, "overloaded")},
		{err: apiError(http.StatusTooManyRequests, "slow down")},
		{text: "ok"},
	}}
	tr := transcribe.NewTestOpenAITranscriber(client,
		transcribe.WithRetryDelays(time.Millisecond, 2*time.Millisecond))

	got, err := tr.Transcribe(context.Background(), testChunk())
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got != "ok" || len(client.requests) != 3 {
		t.Errorf("got %q after %d calls, want ok after 3", got, len(client.requests))
	}
}

func TestOpenAITranscriber_NoRetryOnPermanent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "auth", err: apiError(http.StatusUnauthorized, "bad key"), want: apierr.ErrAuthFailed},
		{name: "quota", err: apiError(http.StatusTooManyRequests, "You exceeded your current quota"), want: apierr.ErrQuotaExceeded},
		{name: "bad request", err: apiError(http.StatusBadRequest, "invalid file"), want: apierr.ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := &mockAudioClient{responses: []mockResponse{{err: tt.err}, {text: "unreachable"}}}
			tr := transcribe.NewTestOpenAITranscriber(client,
				transcribe.WithRetryDelays(time.Millisecond, time.Millisecond))

			_, err := tr.Transcribe(context.Background(), testChunk())
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if len(client.requests) != 1 {
				t.Errorf("made %d calls, want 1", len(client.requests))
			}
		})
	}
}

func TestOpenAITranscriber_MaxRetries(t *testing.T) {
	t.Parallel()

	client := &mockAudioClient{responses: []mockResponse{
		{err: apiError(http.StatusBadGateway, "a")},
		{err: apiError(http.StatusBadGateway, "b")},
		{err: apiError(http.StatusBadGateway, "c")},
	}}
	tr := transcribe.NewTestOpenAITranscriber(client,
		transcribe.WithMaxRetries(2),
		transcribe.WithRetryDelays(time.Millisecond, time.Millisecond))

	_, err := tr.Transcribe(context.Background(), testChunk())
	if !errors.Is(err, apierr.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
	if len(client.requests) != 3 {
		t.Errorf("made %d calls, want 3", len(client.requests))
	}
}

func TestNewOpenAITranscriber_MissingKey(t *testing.T) {
	t.Parallel()

	if _, err := transcribe.NewOpenAITranscriber(""); !errors.Is(err, transcribe.ErrAPIKeyMissing) {
		t.Errorf("error = %v, want ErrAPIKeyMissing", err)
	}
}

// ---------------------------------------------------------------------------
// classifyError / isRetryableError
// ---------------------------------------------------------------------------

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "rate limit", err: apiError(429, "slow down"), want: apierr.ErrRateLimit},
		{name: "billing", err: apiError(429, "billing hard limit"), want: apierr.ErrQuotaExceeded},
		{name: "gateway timeout", err: apiError(504, "t"), want: apierr.ErrTimeout},
		{name: "server error", err: apiError(500, "e"), want: apierr.ErrUnavailable},
		{name: "not found", err: apiError(404, "n"), want: apierr.ErrBadRequest},
		{name: "request error 503", err: &openai.RequestError{HTTPStatusCode: 503, Err: errors.New("down")}, want: apierr.ErrUnavailable},
		{name: "deadline", err: context.DeadlineExceeded, want: apierr.ErrTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := transcribe.ClassifyError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "rate limit", err: apierr.ErrRateLimit, want: true},
		{name: "timeout", err: apierr.ErrTimeout, want: true},
		{name: "unavailable", err: apierr.ErrUnavailable, want: true},
		{name: "quota", err: apierr.ErrQuotaExceeded, want: false},
		{name: "auth", err: apierr.ErrAuthFailed, want: false},
		{name: "bad request", err: apierr.ErrBadRequest, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "unknown", err: errors.New("?"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := transcribe.IsRetryableError(tt.err); got != tt.want {
				t.Errorf("IsRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	if err := transcribe.ClassifyStatus(200, "ok"); err != nil {
		t.Errorf("ClassifyStatus(200) = %v, want nil", err)
	}
	if err := transcribe.ClassifyStatus(422, "x"); !errors.Is(err, apierr.ErrBadRequest) {
		t.Errorf("ClassifyStatus(422) = %v, want ErrBadRequest", err)
	}
}
