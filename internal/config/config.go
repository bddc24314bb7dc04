// Package config loads vmrelay settings from a YAML file, an optional .env
// file and VMRELAY_* environment variables, in increasing precedence.
//
// Every key has a default registered with viper, which is also what makes
// environment overrides visible to Unmarshal: viper only binds env vars
// for keys it already knows.
package config

import (
	"maps"
	"slices"
	"time"

	"github.com/vmrelay/vmrelay/internal/logger"
)

// EnvPrefix is prepended to every environment override: imap.host is
// read from VMRELAY_IMAP_HOST.
const EnvPrefix = "VMRELAY"

// Config is the complete runtime configuration.
type Config struct {
	IMAP          IMAPConfig          `mapstructure:"imap"`
	Poll          PollConfig          `mapstructure:"poll"`
	Telegram      TelegramConfig      `mapstructure:"telegram"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Google        GoogleConfig        `mapstructure:"google"`
	OpenAI        OpenAIConfig        `mapstructure:"openai"`
	Whisper       WhisperConfig       `mapstructure:"whisper"`
	FFmpeg        FFmpegConfig        `mapstructure:"ffmpeg"`
	Delivery      DeliveryConfig      `mapstructure:"delivery"`
	Caption       CaptionConfig       `mapstructure:"caption"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	Status        StatusConfig        `mapstructure:"status"`
	Log           logger.Config       `mapstructure:"log"`
}

type IMAPConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	TLS           bool   `mapstructure:"tls"`
	Mailbox       string `mapstructure:"mailbox"`
	SubjectFilter string `mapstructure:"subject_filter"`
}

type PollConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type TelegramConfig struct {
	Token        string `mapstructure:"token"`
	ChatID       int64  `mapstructure:"chat_id"`
	CaptionLimit int    `mapstructure:"caption_limit"`
	ParseMode    string `mapstructure:"parse_mode"`
}

type TranscriptionConfig struct {
	Backend    string        `mapstructure:"backend"`
	Language   string        `mapstructure:"language"`
	SampleRate int           `mapstructure:"sample_rate"`
	Segment    time.Duration `mapstructure:"segment"`
	Mode       string        `mapstructure:"mode"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Parallel   int           `mapstructure:"parallel"`
}

type GoogleConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
}

type WhisperConfig struct {
	URL   string `mapstructure:"url"`
	Model string `mapstructure:"model"`
}

type FFmpegConfig struct {
	Path string `mapstructure:"path"`
}

type DeliveryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	PartDelay   time.Duration `mapstructure:"part_delay"`
}

type CaptionConfig struct {
	Policy string `mapstructure:"policy"`
	Margin int    `mapstructure:"margin"`
}

// RedisConfig selects the processed ledger. An empty Addr keeps it in memory.
type RedisConfig struct {
	Addr string        `mapstructure:"addr"`
	TTL  time.Duration `mapstructure:"ttl"`
}

type ArchiveConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// StatusConfig configures the health and metrics listener. Empty Addr disables it.
type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

// defaults lists every key with its default value.
var defaults = map[string]any{
	"imap.host":           "",
	"imap.port":           993,
	"imap.username":       "",
	"imap.password":       "",
	"imap.tls":            true,
	"imap.mailbox":        "INBOX",
	"imap.subject_filter": "PBX",

	"poll.interval": "60s",

	"telegram.token":         "",
	"telegram.chat_id":       0,
	"telegram.caption_limit": 1024,
	"telegram.parse_mode":    "",

	"transcription.backend":     "google",
	"transcription.language":    "nl-NL",
	"transcription.sample_rate": 8000,
	"transcription.segment":     "59s",
	"transcription.mode":        "long_running",
	"transcription.timeout":     "300s",
	"transcription.parallel":    1,

	"google.credentials_file": "config/googlekey.json",
	"openai.api_key":          "",
	"whisper.url":             "http://localhost:8387",
	"whisper.model":           "base",
	"ffmpeg.path":             "",

	"delivery.max_attempts": 5,
	"delivery.max_backoff":  "60s",
	"delivery.part_delay":   "0s",

	"caption.policy": "split",
	"caption.margin": 20,

	"redis.addr": "",
	"redis.ttl":  "720h",

	"archive.enabled":  false,
	"archive.schedule": "0 9 * * 5",

	"status.addr": ":9090",

	"log.level":    "info",
	"log.format":   "console",
	"log.output":   "stderr",
	"log.no_color": false,
}

// Keys returns every configuration key, sorted.
func Keys() []string {
	return slices.Sorted(maps.Keys(defaults))
}
