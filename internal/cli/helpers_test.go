package cli

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/vmrelay/vmrelay/internal/audio"
	"github.com/vmrelay/vmrelay/internal/config"
	"github.com/vmrelay/vmrelay/internal/ledger"
	"github.com/vmrelay/vmrelay/internal/logger"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// testMocks - convenience struct for grouping all mocks
// ---------------------------------------------------------------------------

type testMocks struct {
	config      *mockConfigLoader
	ffmpeg      *mockFFmpegResolver
	transcriber *mockTranscriberFactory
	bot         *mockBotFactory
	dialer      *mockDialerFactory
	ledger      *mockLedgerFactory
	stdout      *syncBuffer
	stderr      *syncBuffer
}

// newTestMocks returns mocks around a valid config, an empty mailbox and a
// transcriber that hears "hello" in every chunk.
func newTestMocks() *testMocks {
	return &testMocks{
		config:      &mockConfigLoader{cfg: validConfig()},
		ffmpeg:      &mockFFmpegResolver{},
		transcriber: &mockTranscriberFactory{tr: &stubTranscriber{text: "hello"}},
		bot:         &mockBotFactory{bot: &captureBot{}},
		dialer:      &mockDialerFactory{box: newFakeMailbox(nil)},
		ledger:      &mockLedgerFactory{store: &closeTracker{MemoryStore: ledger.NewMemoryStore(0)}},
		stdout:      &syncBuffer{},
		stderr:      &syncBuffer{},
	}
}

func (m *testMocks) env() *Env {
	return NewEnv(
		WithStdout(m.stdout),
		WithStderr(m.stderr),
		WithConfigLoader(m.config),
		WithFFmpegResolver(m.ffmpeg),
		WithTranscriberFactory(m.transcriber),
		WithBotFactory(m.bot),
		WithDialerFactory(m.dialer),
		WithLedgerFactory(m.ledger),
	)
}

// validConfig passes Validate and binds nothing.
func validConfig() config.Config {
	return config.Config{
		IMAP: config.IMAPConfig{
			Host: "imap.example.com", Port: 993, TLS: true,
			Username: "pbx@example.com", Password: "hunter2-hunter2",
			Mailbox: "INBOX", SubjectFilter: "PBX",
		},
		Poll: config.PollConfig{Interval: 60 * time.Second},
		Telegram: config.TelegramConfig{
			Token: "123456:ABC-DEF1234ghIkl", ChatID: -1001234567890, CaptionLimit: 1024,
		},
		Transcription: config.TranscriptionConfig{
			Backend: "whisper", Language: "nl-NL", SampleRate: 8000,
			Segment: 59 * time.Second, Mode: "long_running", Timeout: 300 * time.Second, Parallel: 1,
		},
		Google:   config.GoogleConfig{CredentialsFile: "config/googlekey.json"},
		Whisper:  config.WhisperConfig{URL: "http://localhost:8387", Model: "base"},
		Delivery: config.DeliveryConfig{MaxAttempts: 5, MaxBackoff: 60 * time.Second},
		Caption:  config.CaptionConfig{Policy: "split", Margin: 20},
		Redis:    config.RedisConfig{TTL: 720 * time.Hour},
		Archive:  config.ArchiveConfig{Schedule: "0 9 * * 5"},
		Log:      logger.Config{Level: "debug", Format: "json"},
	}
}

// silentWAV returns d of 8 kHz mono silence.
func silentWAV(t *testing.T, d time.Duration) []byte {
	t.Helper()
	f := audio.Linear16(8000)
	wav, err := audio.EncodeWAV(make([]byte, f.BytesFor(d)), f)
	if err != nil {
		t.Fatalf("EncodeWAV() error = %v", err)
	}
	return wav
}

// voicemailMIME builds a PBX notification with a WAV attachment.
func voicemailMIME(msgID string, wav []byte) []byte {
	return fmt.Appendf(nil, "Message-ID: <%s>\r\n"+
		"Subject: Voicemail PBX from 0612345678\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: multipart/mixed; boundary=\"vm\"\r\n"+
		"\r\n"+
		"--vm\r\n"+
		"Content-Type: text/plain; charset=utf-8\r\n"+
		"\r\n"+
		"Missed call from 0612345678\r\n"+
		"--vm\r\n"+
		"Content-Type: audio/x-wav; name=\"msg0001.wav\"\r\n"+
		"Content-Disposition: attachment; filename=\"msg0001.wav\"\r\n"+
		"Content-Transfer-Encoding: base64\r\n"+
		"\r\n"+
		"%s\r\n"+
		"--vm--\r\n", msgID, base64.StdEncoding.EncodeToString(wav))
}
