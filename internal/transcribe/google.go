package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vmrelay/vmrelay/internal/apierr"
	"github.com/vmrelay/vmrelay/internal/audio"
	"github.com/vmrelay/vmrelay/internal/lang"
)

// Google recognition modes.
const (
	// ModeSync uses the synchronous Recognize call (audio under one minute).
	ModeSync = "sync"

	// ModeLongRunning starts a LongRunningRecognize operation and waits on it.
	ModeLongRunning = "long_running"
)

// Defaults matching the PBX voicemail encoding.
const (
	DefaultSampleRate = 8000
	DefaultTimeout    = 300 * time.Second
)

// speechBackend is the subset of the Cloud Speech client the transcriber uses.
// cloudSpeech adapts *speech.Client; tests substitute a fake.
type speechBackend interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	LongRunningRecognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)
	Close() error
}

// cloudSpeech adapts *speech.Client to speechBackend. The long-running call
// blocks on op.Wait, which polls until the operation finishes or ctx expires.
type cloudSpeech struct {
	client *speech.Client
}

func (c cloudSpeech) Recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return c.client.Recognize(ctx, req)
}

func (c cloudSpeech) LongRunningRecognize(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	op, err := c.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (c cloudSpeech) Close() error {
	return c.client.Close()
}

// GoogleTranscriber transcribes LINEAR16 chunks with Google Cloud Speech-to-Text.
// One instance holds one gRPC connection for the life of the process.
type GoogleTranscriber struct {
	backend    speechBackend
	mode       string
	language   lang.Language
	sampleRate int
	timeout    time.Duration
}

// GoogleOption configures a GoogleTranscriber.
type GoogleOption func(*GoogleTranscriber)

// WithMode selects ModeSync or ModeLongRunning.
func WithMode(mode string) GoogleOption {
	return func(t *GoogleTranscriber) { t.mode = mode }
}

// WithLanguage sets the spoken language. Google needs a locale such as nl-NL.
func WithLanguage(l lang.Language) GoogleOption {
	return func(t *GoogleTranscriber) { t.language = l }
}

// WithSampleRate sets the declared sample rate in Hz.
func WithSampleRate(hz int) GoogleOption {
	return func(t *GoogleTranscriber) {
		if hz > 0 {
			t.sampleRate = hz
		}
	}
}

// WithTimeout bounds each recognition call, including the long-running wait.
func WithTimeout(d time.Duration) GoogleOption {
	return func(t *GoogleTranscriber) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// NewGoogleTranscriber dials Cloud Speech using the service-account key at credentialsFile.
// An empty path falls back to Application Default Credentials.
func NewGoogleTranscriber(ctx context.Context, credentialsFile string, opts ...GoogleOption) (*GoogleTranscriber, error) {
	var clientOpts []option.ClientOption
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := speech.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	return newGoogleTranscriber(cloudSpeech{client: client}, opts...)
}

func newGoogleTranscriber(backend speechBackend, opts ...GoogleOption) (*GoogleTranscriber, error) {
	t := &GoogleTranscriber{
		backend:    backend,
		mode:       ModeLongRunning,
		language:   lang.MustParse("nl-NL"),
		sampleRate: DefaultSampleRate,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.mode != ModeSync && t.mode != ModeLongRunning {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, t.mode)
	}
	return t, nil
}

// Format returns mono LINEAR16 at the configured sample rate.
func (t *GoogleTranscriber) Format() audio.Format {
	return audio.Linear16(t.sampleRate)
}

// Close releases the gRPC connection.
func (t *GoogleTranscriber) Close() error {
	return t.backend.Close()
}

// Transcribe sends the chunk's raw PCM inline and joins every result's top alternative.
func (t *GoogleTranscriber) Transcribe(ctx context.Context, chunk audio.Chunk) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cfg := &speechpb.RecognitionConfig{
		Encoding:          speechpb.RecognitionConfig_LINEAR16,
		SampleRateHertz:   int32(t.sampleRate),
		AudioChannelCount: 1,
		LanguageCode:      t.language.Locale(),
	}
	content := &speechpb.RecognitionAudio{
		AudioSource: &speechpb.RecognitionAudio_Content{Content: chunk.PCM},
	}

	var results []*speechpb.SpeechRecognitionResult
	switch t.mode {
	case ModeSync:
		resp, err := t.backend.Recognize(ctx, &speechpb.RecognizeRequest{Config: cfg, Audio: content})
		if err != nil {
			return "", classifyGRPCError(ctx, err)
		}
		results = resp.GetResults()
	default:
		resp, err := t.backend.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{Config: cfg, Audio: content})
		if err != nil {
			return "", classifyGRPCError(ctx, err)
		}
		results = resp.GetResults()
	}

	parts := make([]string, 0, len(results))
	for _, r := range results {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// classifyGRPCError maps Cloud Speech status codes to apierr sentinels.
// A deadline hit on ctx counts as ErrTimeout even if the status says otherwise.
func classifyGRPCError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("recognition did not finish in time: %w", apierr.ErrTimeout)
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	msg := st.Message()
	switch st.Code() {
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", msg, apierr.ErrTimeout)
	case codes.ResourceExhausted:
		if strings.Contains(strings.ToLower(msg), "quota") {
			return fmt.Errorf("%s: %w", msg, apierr.ErrQuotaExceeded)
		}
		return fmt.Errorf("%s: %w", msg, apierr.ErrRateLimit)
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%s: %w", msg, apierr.ErrAuthFailed)
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange, codes.NotFound:
		return fmt.Errorf("%s: %w", msg, apierr.ErrBadRequest)
	case codes.Unavailable, codes.Internal, codes.Aborted:
		return fmt.Errorf("%s: %w", msg, apierr.ErrUnavailable)
	case codes.Canceled:
		return context.Canceled
	}
	return err
}
