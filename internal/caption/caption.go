// Package caption builds the text that accompanies a relayed voicemail and
// cuts it into numbered parts that fit a chat caption limit.
package caption

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

// Telegram limits.
const (
	// DefaultLimit is the maximum caption length of a Telegram media message.
	DefaultLimit = 1024

	// DefaultMargin is reserved in every part for the "Part i/N: " prefix.
	DefaultMargin = 20
)

// NoTranscript stands in for an empty or failed transcript.
const NoTranscript = "[no transcript available]"

// TooLong replaces the transcript under PolicyPlaceholder when it does not fit.
const TooLong = "[transcript too long, listen to the audio]"

// Policy decides what happens to a caption that exceeds one part.
type Policy string

const (
	// PolicySplit sends the caption as several numbered parts.
	PolicySplit Policy = "split"

	// PolicyPlaceholder swaps the transcript for TooLong and keeps one part
	// whenever the subject and body still fit.
	PolicyPlaceholder Policy = "placeholder"
)

// ParsePolicy validates a policy name. Empty means PolicySplit.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicySplit, nil
	case PolicySplit, PolicyPlaceholder:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q (use split or placeholder)", ErrInvalidPolicy, s)
}

// Compose renders the caption body for one voicemail.
func Compose(subject, body, transcript string) string {
	if strings.TrimSpace(transcript) == "" {
		transcript = NoTranscript
	}
	return fmt.Sprintf("Subject: %s\nEmail Text: %s\nTranscription: %s",
		subject, strings.TrimSpace(body), transcript)
}

// Unit is one outbound part of a caption.
type Unit struct {
	Index int // Zero-based.
	Total int
	Body  string
}

// Caption returns the body with its 1-based "Part i/N: " prefix.
func (u Unit) Caption() string {
	return fmt.Sprintf("Part %d/%d: %s", u.Index+1, u.Total, u.Body)
}

// Split slices text into parts of at most limit-margin characters each.
// Characters are counted in UTF-16 code units, the way Telegram measures
// captions, so a rune outside the BMP (most emoji) counts as two.
// Slicing is positional on rune boundaries, not word-aware, so joining the
// bodies in order gives back text exactly. Text that fits yields a single
// "Part 1/1" unit; empty text yields one empty unit.
//
// A limit not larger than margin still makes progress one rune at a time.
func Split(text string, limit, margin int) []Unit {
	width := max(limit-margin, 1)
	runes := []rune(text)

	// Part boundaries as rune offsets.
	bounds := []int{0}
	used := 0
	for i, r := range runes {
		n := runeWidth(r)
		if used > 0 && used+n > width {
			bounds = append(bounds, i)
			used = 0
		}
		used += n
	}
	bounds = append(bounds, len(runes))

	total := len(bounds) - 1
	units := make([]Unit, 0, total)
	for i := range total {
		units = append(units, Unit{Index: i, Total: total, Body: string(runes[bounds[i]:bounds[i+1]])})
	}
	return units
}

// Width returns the length of s in UTF-16 code units.
func Width(s string) int {
	n := 0
	for _, r := range s {
		n += runeWidth(r)
	}
	return n
}

func runeWidth(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}

// Chunker applies a limit, margin and policy to composed captions.
type Chunker struct {
	limit  int
	margin int
	policy Policy
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithLimit sets the destination caption limit.
func WithLimit(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithMargin sets the characters reserved for the part prefix.
func WithMargin(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.margin = n
		}
	}
}

// WithPolicy sets the over-length policy.
func WithPolicy(p Policy) Option {
	return func(c *Chunker) {
		if p != "" {
			c.policy = p
		}
	}
}

// NewChunker creates a Chunker with Telegram defaults.
func NewChunker(opts ...Option) *Chunker {
	c := &Chunker{
		limit:  DefaultLimit,
		margin: DefaultMargin,
		policy: PolicySplit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Units composes the caption for a voicemail and cuts it into parts.
func (c *Chunker) Units(subject, body, transcript string) []Unit {
	text := Compose(subject, body, transcript)
	if c.policy == PolicyPlaceholder && c.overflows(text) {
		text = Compose(subject, body, TooLong)
	}
	return Split(text, c.limit, c.margin)
}

func (c *Chunker) overflows(text string) bool {
	return Width(text) > max(c.limit-c.margin, 1)
}
