package config

import (
	"fmt"
	"slices"
	"strings"
)

// secretKeys are masked by Settings.
var secretKeys = []string{
	"imap.password",
	"telegram.token",
	"openai.api_key",
}

// Settings returns the effective configuration as key -> value strings,
// with secrets masked.
func (c *Config) Settings() map[string]string {
	flat := map[string]any{
		"imap.host":                 c.IMAP.Host,
		"imap.port":                 c.IMAP.Port,
		"imap.username":             c.IMAP.Username,
		"imap.password":             c.IMAP.Password,
		"imap.tls":                  c.IMAP.TLS,
		"imap.mailbox":              c.IMAP.Mailbox,
		"imap.subject_filter":       c.IMAP.SubjectFilter,
		"poll.interval":             c.Poll.Interval,
		"telegram.token":            c.Telegram.Token,
		"telegram.chat_id":          c.Telegram.ChatID,
		"telegram.caption_limit":    c.Telegram.CaptionLimit,
		"telegram.parse_mode":       c.Telegram.ParseMode,
		"transcription.backend":     c.Transcription.Backend,
		"transcription.language":    c.Transcription.Language,
		"transcription.sample_rate": c.Transcription.SampleRate,
		"transcription.segment":     c.Transcription.Segment,
		"transcription.mode":        c.Transcription.Mode,
		"transcription.timeout":     c.Transcription.Timeout,
		"transcription.parallel":    c.Transcription.Parallel,
		"google.credentials_file":   c.Google.CredentialsFile,
		"openai.api_key":            c.OpenAI.APIKey,
		"whisper.url":               c.Whisper.URL,
		"whisper.model":             c.Whisper.Model,
		"ffmpeg.path":               c.FFmpeg.Path,
		"delivery.max_attempts":     c.Delivery.MaxAttempts,
		"delivery.max_backoff":      c.Delivery.MaxBackoff,
		"delivery.part_delay":       c.Delivery.PartDelay,
		"caption.policy":            c.Caption.Policy,
		"caption.margin":            c.Caption.Margin,
		"redis.addr":                c.Redis.Addr,
		"redis.ttl":                 c.Redis.TTL,
		"archive.enabled":           c.Archive.Enabled,
		"archive.schedule":          c.Archive.Schedule,
		"status.addr":               c.Status.Addr,
		"log.level":                 c.Log.Level,
		"log.format":                c.Log.Format,
		"log.output":                c.Log.Output,
		"log.no_color":              c.Log.NoColor,
	}
	out := make(map[string]string, len(flat))
	for k, val := range flat {
		s := fmt.Sprint(val)
		if slices.Contains(secretKeys, k) {
			s = mask(s)
		}
		out[k] = s
	}
	return out
}

// mask keeps the last four characters of long secrets.
func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return strings.Repeat("*", 4) + s[len(s)-4:]
	}
}
