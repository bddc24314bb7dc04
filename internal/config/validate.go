package config

import (
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/robfig/cron/v3"

	"github.com/vmrelay/vmrelay/internal/caption"
	"github.com/vmrelay/vmrelay/internal/lang"
	"github.com/vmrelay/vmrelay/internal/transcribe"
)

// Validate reports every missing or invalid setting at once. Each problem
// wraps ErrMissingSetting or ErrInvalidSetting.
func (c *Config) Validate() error {
	var errs []error
	missing := func(key string) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingSetting, key))
	}
	invalid := func(key string, format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", ErrInvalidSetting, key, fmt.Sprintf(format, args...)))
	}

	// Mailbox
	if c.IMAP.Host == "" {
		missing("imap.host")
	}
	if c.IMAP.Port < 1 || c.IMAP.Port > 65535 {
		invalid("imap.port", "%d is not a TCP port", c.IMAP.Port)
	}
	if c.IMAP.Username == "" {
		missing("imap.username")
	}
	if c.IMAP.Password == "" {
		missing("imap.password")
	}
	if c.Poll.Interval <= 0 {
		invalid("poll.interval", "must be positive (got %s)", c.Poll.Interval)
	}

	// Telegram
	if c.Telegram.Token == "" {
		missing("telegram.token")
	}
	if c.Telegram.ChatID == 0 {
		missing("telegram.chat_id")
	}
	if c.Telegram.CaptionLimit <= c.Caption.Margin {
		invalid("telegram.caption_limit", "%d leaves no room after caption.margin %d",
			c.Telegram.CaptionLimit, c.Caption.Margin)
	}
	if !slices.Contains([]string{"", "HTML", "Markdown", "MarkdownV2"}, c.Telegram.ParseMode) {
		invalid("telegram.parse_mode", "use HTML, Markdown, MarkdownV2 or leave empty (got %q)", c.Telegram.ParseMode)
	}

	// Transcription
	if _, err := lang.Parse(c.Transcription.Language); err != nil {
		invalid("transcription.language", "%v", err)
	}
	if c.Transcription.SampleRate <= 0 {
		invalid("transcription.sample_rate", "must be positive (got %d)", c.Transcription.SampleRate)
	}
	if c.Transcription.Segment <= 0 {
		invalid("transcription.segment", "must be positive (got %s)", c.Transcription.Segment)
	}
	if c.Transcription.Timeout <= 0 {
		invalid("transcription.timeout", "must be positive (got %s)", c.Transcription.Timeout)
	}
	if c.Transcription.Parallel < 1 || c.Transcription.Parallel > transcribe.MaxRecommendedParallel {
		invalid("transcription.parallel", "must be between 1 and %d (got %d)",
			transcribe.MaxRecommendedParallel, c.Transcription.Parallel)
	}
	switch c.Transcription.Backend {
	case transcribe.BackendGoogle:
		if c.Transcription.Mode != transcribe.ModeSync && c.Transcription.Mode != transcribe.ModeLongRunning {
			invalid("transcription.mode", "use %s or %s (got %q)",
				transcribe.ModeSync, transcribe.ModeLongRunning, c.Transcription.Mode)
		}
	case transcribe.BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			missing("openai.api_key")
		}
	case transcribe.BackendWhisper:
		if u, err := url.Parse(c.Whisper.URL); err != nil || u.Scheme == "" || u.Host == "" {
			invalid("whisper.url", "not an absolute URL (got %q)", c.Whisper.URL)
		}
	default:
		invalid("transcription.backend", "use %s, %s or %s (got %q)",
			transcribe.BackendGoogle, transcribe.BackendOpenAI, transcribe.BackendWhisper, c.Transcription.Backend)
	}

	// Delivery
	if c.Delivery.MaxAttempts < 1 {
		invalid("delivery.max_attempts", "must be at least 1 (got %d)", c.Delivery.MaxAttempts)
	}
	if c.Delivery.MaxBackoff <= 0 {
		invalid("delivery.max_backoff", "must be positive (got %s)", c.Delivery.MaxBackoff)
	}
	if c.Delivery.PartDelay < 0 {
		invalid("delivery.part_delay", "must not be negative (got %s)", c.Delivery.PartDelay)
	}
	if _, err := caption.ParsePolicy(c.Caption.Policy); err != nil {
		invalid("caption.policy", "%v", err)
	}
	if c.Caption.Margin < 0 {
		invalid("caption.margin", "must not be negative (got %d)", c.Caption.Margin)
	}

	// Supporting services
	if c.Archive.Enabled {
		if _, err := cron.ParseStandard(c.Archive.Schedule); err != nil {
			invalid("archive.schedule", "%v", err)
		}
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidSetting, err))
	}

	return errors.Join(errs...)
}
