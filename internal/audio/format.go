package audio

import (
	"fmt"
	"strings"
	"time"
)

// EncodingLinear16 is uncompressed little-endian signed 16-bit PCM.
const EncodingLinear16 = "LINEAR16"

// Format describes raw PCM samples.
type Format struct {
	Encoding   string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Linear16 returns a mono LINEAR16 format at the given sample rate.
func Linear16(sampleRate int) Format {
	return Format{
		Encoding:   EncodingLinear16,
		SampleRate: sampleRate,
		Channels:   1,
		BitDepth:   16,
	}
}

// FrameSize returns the number of bytes holding one sample for every channel.
func (f Format) FrameSize() int {
	return f.Channels * f.BitDepth / 8
}

// ByteRate returns the number of bytes per second of audio.
func (f Format) ByteRate() int {
	return f.FrameSize() * f.SampleRate
}

// DurationOf returns the playback length of n bytes. Partial frames are ignored.
func (f Format) DurationOf(n int) time.Duration {
	frame := f.FrameSize()
	if frame <= 0 || f.SampleRate <= 0 {
		return 0
	}
	frames := int64(n / frame)
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// BytesFor returns the frame-aligned byte count covering d.
func (f Format) BytesFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	frames := int64(d) * int64(f.SampleRate) / int64(time.Second)
	return int(frames) * f.FrameSize()
}

func (f Format) String() string {
	ch := "mono"
	if f.Channels != 1 {
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	enc := f.Encoding
	if enc == "" {
		enc = "PCM"
	}
	return fmt.Sprintf("%s %dHz %dbit %s", enc, f.SampleRate, f.BitDepth, ch)
}

// Preflight compares got against want and returns ErrFormatMismatch listing
// every difference. A zero field in want matches anything.
func Preflight(got, want Format) error {
	var diffs []string
	if want.SampleRate != 0 && got.SampleRate != want.SampleRate {
		diffs = append(diffs, fmt.Sprintf("sample rate %d, want %d", got.SampleRate, want.SampleRate))
	}
	if want.Channels != 0 && got.Channels != want.Channels {
		diffs = append(diffs, fmt.Sprintf("channels %d, want %d", got.Channels, want.Channels))
	}
	if want.BitDepth != 0 && got.BitDepth != want.BitDepth {
		diffs = append(diffs, fmt.Sprintf("bit depth %d, want %d", got.BitDepth, want.BitDepth))
	}
	if len(diffs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrFormatMismatch, strings.Join(diffs, ", "))
}
