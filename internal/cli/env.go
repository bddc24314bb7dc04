package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vmrelay/vmrelay/internal/config"
	"github.com/vmrelay/vmrelay/internal/ffmpeg"
	"github.com/vmrelay/vmrelay/internal/lang"
	"github.com/vmrelay/vmrelay/internal/ledger"
	"github.com/vmrelay/vmrelay/internal/mailbox"
	"github.com/vmrelay/vmrelay/internal/transcribe"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// All fields have production defaults via DefaultEnv(). Tests override
// specific fields using the With* options or by building an Env directly.
type Env struct {
	// I/O and environment
	Stdout io.Writer
	Stderr io.Writer

	// Factories for domain objects
	ConfigLoader       ConfigLoader
	FFmpegResolver     FFmpegResolver
	TranscriberFactory TranscriberFactory
	BotFactory         BotFactory
	DialerFactory      DialerFactory
	LedgerFactory      LedgerFactory
}

// ConfigLoader loads configuration. An empty path searches the default locations.
type ConfigLoader interface {
	Load(path string) (config.Config, error)
}

// FFmpegResolver finds the FFmpeg binary, preferring the configured path.
type FFmpegResolver interface {
	Resolve(configured string) (string, error)
}

// TranscriberFactory builds the speech backend named in the configuration.
type TranscriberFactory interface {
	NewTranscriber(ctx context.Context, cfg config.Config) (transcribe.Transcriber, error)
}

// Bot is the part of the Telegram client the delivery agent needs.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotFactory authenticates against the Bot API.
type BotFactory interface {
	NewBot(token string) (Bot, error)
}

// DialerFactory creates IMAP dialers.
type DialerFactory interface {
	NewDialer(cfg config.IMAPConfig) mailbox.Dialer
}

// LedgerFactory opens the processed-message ledger.
type LedgerFactory interface {
	NewLedger(ctx context.Context, cfg config.RedisConfig) (ledger.Store, error)
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithFFmpegResolver sets the FFmpeg resolver.
func WithFFmpegResolver(r FFmpegResolver) EnvOption {
	return func(e *Env) {
		e.FFmpegResolver = r
	}
}

// WithTranscriberFactory sets the transcriber factory.
func WithTranscriberFactory(f TranscriberFactory) EnvOption {
	return func(e *Env) {
		e.TranscriberFactory = f
	}
}

// WithBotFactory sets the Telegram bot factory.
func WithBotFactory(f BotFactory) EnvOption {
	return func(e *Env) {
		e.BotFactory = f
	}
}

// WithDialerFactory sets the IMAP dialer factory.
func WithDialerFactory(f DialerFactory) EnvOption {
	return func(e *Env) {
		e.DialerFactory = f
	}
}

// WithLedgerFactory sets the ledger factory.
func WithLedgerFactory(f LedgerFactory) EnvOption {
	return func(e *Env) {
		e.LedgerFactory = f
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	return &Env{
		Stdout:             os.Stdout,
		Stderr:             os.Stderr,
		ConfigLoader:       defaultConfigLoader{},
		FFmpegResolver:     defaultFFmpegResolver{},
		TranscriberFactory: defaultTranscriberFactory{},
		BotFactory:         defaultBotFactory{},
		DialerFactory:      defaultDialerFactory{},
		LedgerFactory:      defaultLedgerFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

type defaultConfigLoader struct{}

func (defaultConfigLoader) Load(path string) (config.Config, error) {
	return config.Load(config.WithConfigFile(path))
}

type defaultFFmpegResolver struct{}

func (defaultFFmpegResolver) Resolve(configured string) (string, error) {
	return ffmpeg.NewResolver(ffmpeg.WithConfiguredPath(configured)).Resolve()
}

// defaultTranscriberFactory switches on transcription.backend.
type defaultTranscriberFactory struct{}

func (defaultTranscriberFactory) NewTranscriber(ctx context.Context, cfg config.Config) (transcribe.Transcriber, error) {
	tc := cfg.Transcription
	language, err := lang.Parse(tc.Language)
	if err != nil {
		return nil, err
	}

	switch tc.Backend {
	case transcribe.BackendGoogle:
		t, err := transcribe.NewGoogleTranscriber(ctx, cfg.Google.CredentialsFile,
			transcribe.WithMode(tc.Mode),
			transcribe.WithLanguage(language),
			transcribe.WithSampleRate(tc.SampleRate),
			transcribe.WithTimeout(tc.Timeout),
		)
		if err != nil {
			return nil, err
		}
		return t, nil
	case transcribe.BackendOpenAI:
		t, err := transcribe.NewOpenAITranscriber(cfg.OpenAI.APIKey,
			transcribe.WithOpenAILanguage(language),
			transcribe.WithOpenAISampleRate(tc.SampleRate),
		)
		if err != nil {
			return nil, err
		}
		return t, nil
	case transcribe.BackendWhisper:
		return transcribe.NewWhisperTranscriber(cfg.Whisper.URL, tc.Timeout,
			transcribe.WithWhisperModel(cfg.Whisper.Model),
			transcribe.WithWhisperLanguage(language),
			transcribe.WithWhisperSampleRate(tc.SampleRate),
		), nil
	default:
		return nil, fmt.Errorf("%w: transcription.backend %q", config.ErrInvalidSetting, tc.Backend)
	}
}

type defaultBotFactory struct{}

func (defaultBotFactory) NewBot(token string) (Bot, error) {
	// NewBotAPI calls getMe, so a bad token fails here rather than on the first voicemail.
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return bot, nil
}

type defaultDialerFactory struct{}

func (defaultDialerFactory) NewDialer(cfg config.IMAPConfig) mailbox.Dialer {
	return &mailbox.IMAPDialer{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		TLS:      cfg.TLS,
		Timeout:  mailbox.DefaultTimeout,
	}
}

// defaultLedgerFactory keeps the ledger in memory unless redis.addr is set.
type defaultLedgerFactory struct{}

func (defaultLedgerFactory) NewLedger(ctx context.Context, cfg config.RedisConfig) (ledger.Store, error) {
	if cfg.Addr == "" {
		return ledger.NewMemoryStore(cfg.TTL), nil
	}
	store, err := ledger.NewRedisStore(ctx, cfg.Addr, cfg.TTL)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Compile-time interface verification.
var (
	_ ConfigLoader       = defaultConfigLoader{}
	_ FFmpegResolver     = defaultFFmpegResolver{}
	_ TranscriberFactory = defaultTranscriberFactory{}
	_ BotFactory         = defaultBotFactory{}
	_ DialerFactory      = defaultDialerFactory{}
	_ LedgerFactory      = defaultLedgerFactory{}
	_ Bot                = (*tgbotapi.BotAPI)(nil)
)
