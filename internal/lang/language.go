// Package lang models the spoken language of a voicemail as handed to the
// speech backends. Google wants a BCP-47 locale ("nl-NL"), OpenAI and
// Whisper only accept the ISO 639-1 base code ("nl").
package lang

import (
	"fmt"
	"strings"
)

// validLanguages contains ISO 639-1 base codes accepted by every backend.
// Not exhaustive; covers the common ones.
var validLanguages = map[string]bool{
	"af": true, // Afrikaans
	"ar": true, // Arabic
	"bg": true, // Bulgarian
	"bn": true, // Bengali
	"ca": true, // Catalan
	"cs": true, // Czech
	"da": true, // Danish
	"de": true, // German
	"el": true, // Greek
	"en": true, // English
	"es": true, // Spanish
	"et": true, // Estonian
	"fa": true, // Persian
	"fi": true, // Finnish
	"fr": true, // French
	"gu": true, // Gujarati
	"he": true, // Hebrew
	"hi": true, // Hindi
	"hr": true, // Croatian
	"hu": true, // Hungarian
	"id": true, // Indonesian
	"it": true, // Italian
	"ja": true, // Japanese
	"kn": true, // Kannada
	"ko": true, // Korean
	"lt": true, // Lithuanian
	"lv": true, // Latvian
	"mk": true, // Macedonian
	"ml": true, // Malayalam
	"mr": true, // Marathi
	"ms": true, // Malay
	"nl": true, // Dutch
	"no": true, // Norwegian
	"pa": true, // Punjabi
	"pl": true, // Polish
	"pt": true, // Portuguese
	"ro": true, // Romanian
	"ru": true, // Russian
	"sk": true, // Slovak
	"sl": true, // Slovenian
	"sr": true, // Serbian
	"sv": true, // Swedish
	"sw": true, // Swahili
	"ta": true, // Tamil
	"te": true, // Telugu
	"th": true, // Thai
	"tl": true, // Tagalog
	"tr": true, // Turkish
	"uk": true, // Ukrainian
	"ur": true, // Urdu
	"vi": true, // Vietnamese
	"zh": true, // Chinese
}

// Language is a validated language tag.
// The zero value means "not specified": backends fall back to auto-detect
// where they support it.
type Language struct {
	base   string
	region string
}

// Compile-time interface compliance check.
var _ fmt.Stringer = Language{}

// Normalize normalizes a language code to lowercase with hyphen separator.
// Accepts: "nl-NL", "nl_NL", "NL-NL", "nl-nl" -> "nl-nl"
func Normalize(tag string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
}

// Parse validates tag and returns the Language.
// Empty input returns the zero Language and no error.
func Parse(tag string) (Language, error) {
	if strings.TrimSpace(tag) == "" {
		return Language{}, nil
	}

	normalized := Normalize(tag)
	base, region, _ := strings.Cut(normalized, "-")

	if !validLanguages[base] {
		return Language{}, fmt.Errorf("invalid language code %q (use codes like 'nl', 'en-US', 'pt-BR'): %w",
			tag, ErrInvalid)
	}
	if strings.Contains(region, "-") || (region == "" && strings.HasSuffix(normalized, "-")) {
		return Language{}, fmt.Errorf("invalid region in %q: %w", tag, ErrInvalid)
	}

	return Language{base: base, region: region}, nil
}

// MustParse parses tag, panicking if invalid.
// Use only for constants and tests.
func MustParse(tag string) Language {
	l, err := Parse(tag)
	if err != nil {
		panic(err)
	}
	return l
}

// IsZero reports whether no language was specified.
func (l Language) IsZero() bool {
	return l.base == ""
}

// BaseCode returns the ISO 639-1 code ("nl" for "nl-NL").
func (l Language) BaseCode() string {
	return l.base
}

// Locale returns the BCP-47 form with an upper-case region ("nl-NL").
// Without a region it returns the base code.
func (l Language) Locale() string {
	if l.region == "" {
		return l.base
	}
	return l.base + "-" + strings.ToUpper(l.region)
}

// String returns the locale form.
func (l Language) String() string {
	return l.Locale()
}
