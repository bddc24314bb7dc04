// Package audio decodes voicemail attachments and cuts them into chunks that
// fit under a transcription backend's duration ceiling.
package audio

import (
	"fmt"
	"iter"
	"time"
)

// DefaultCeiling keeps every chunk under a 60 second synchronous recognition limit.
const DefaultCeiling = 59 * time.Second

// Chunk is one contiguous, frame-aligned slice of a Clip.
// PCM aliases the clip's buffer and must not be modified.
type Chunk struct {
	Index  int           // Zero-based position in the clip.
	Start  time.Duration // Offset of the first frame.
	End    time.Duration // Offset just past the last frame.
	PCM    []byte
	Format Format
}

// Duration returns the length of this chunk.
func (c Chunk) Duration() time.Duration {
	return c.End - c.Start
}

// String returns a human-readable representation for logging.
func (c Chunk) String() string {
	return fmt.Sprintf("chunk %d: %s-%s", c.Index, clock(c.Start), clock(c.End))
}

// WAV re-encodes the chunk as a standalone RIFF WAV file.
func (c Chunk) WAV() ([]byte, error) {
	return EncodeWAV(c.PCM, c.Format)
}

// Segments returns the clip cut into chunks of at most ceiling, in order,
// with no gap and no overlap. The last chunk holds the remainder.
//
// The sequence is lazy and can be ranged over any number of times.
// An empty clip yields nothing. A non-positive ceiling yields the whole
// clip as a single chunk.
func Segments(c Clip, ceiling time.Duration) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		frame := c.Format.FrameSize()
		if frame <= 0 || len(c.PCM) < frame {
			return
		}
		total := len(c.PCM) - len(c.PCM)%frame

		step := total
		if ceiling > 0 {
			step = max(c.Format.BytesFor(ceiling), frame)
		}

		for i, off := 0, 0; off < total; i, off = i+1, off+step {
			end := min(off+step, total)
			chunk := Chunk{
				Index:  i,
				Start:  c.Format.DurationOf(off),
				End:    c.Format.DurationOf(end),
				PCM:    c.PCM[off:end:end],
				Format: c.Format,
			}
			if !yield(chunk) {
				return
			}
		}
	}
}

// clock formats a duration as MM:SS, or HH:MM:SS past the hour.
func clock(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
