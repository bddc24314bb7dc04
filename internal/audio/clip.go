package audio

import (
	"bytes"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag in the fmt chunk.
const wavFormatPCM = 1

// Clip is a decoded audio payload: interleaved PCM bytes and their format.
type Clip struct {
	PCM    []byte
	Format Format
}

// Duration returns the playback length of the clip.
func (c Clip) Duration() time.Duration {
	return c.Format.DurationOf(len(c.PCM))
}

// Empty reports whether the clip holds less than one frame.
func (c Clip) Empty() bool {
	frame := c.Format.FrameSize()
	return frame <= 0 || len(c.PCM) < frame
}

// Decode parses a RIFF WAV payload into a Clip.
// Returns ErrNotWAV for anything go-audio/wav does not accept as integer PCM.
func Decode(data []byte) (Clip, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return Clip{}, ErrNotWAV
	}
	if d.WavAudioFormat != wavFormatPCM {
		return Clip{}, fmt.Errorf("%w: format tag %d", ErrNotWAV, d.WavAudioFormat)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("decode wav: %w", err)
	}

	f := Format{
		Encoding:   EncodingLinear16,
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}
	if f.BitDepth != 16 {
		f.Encoding = ""
	}

	pcm, err := samplesToPCM(buf.Data, f.BitDepth)
	if err != nil {
		return Clip{}, err
	}
	return Clip{PCM: pcm, Format: f}, nil
}

// EncodeWAV writes PCM bytes in format f as a RIFF WAV file held in memory.
func EncodeWAV(pcm []byte, f Format) ([]byte, error) {
	samples, err := pcmToSamples(pcm, f.BitDepth)
	if err != nil {
		return nil, err
	}

	ws := &writerseeker.WriterSeeker{}
	encoder := wav.NewEncoder(ws, f.SampleRate, f.BitDepth, f.Channels, wavFormatPCM)

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: f.Channels,
			SampleRate:  f.SampleRate,
		},
		Data:           samples,
		SourceBitDepth: f.BitDepth,
	}
	if err := encoder.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}

	out, err := io.ReadAll(ws.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading wav into memory: %w", err)
	}
	return out, nil
}

// samplesToPCM packs decoded samples as little-endian bytes.
// 8-bit WAV samples are unsigned and go-audio hands them over unchanged.
func samplesToPCM(samples []int, bitDepth int) ([]byte, error) {
	width := bitDepth / 8
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}

	out := make([]byte, len(samples)*width)
	for i, s := range samples {
		v := uint32(int32(s))
		for b := range width {
			out[i*width+b] = byte(v >> (8 * b))
		}
	}
	return out, nil
}

// pcmToSamples is the inverse of samplesToPCM. Trailing partial samples are dropped.
func pcmToSamples(pcm []byte, bitDepth int) ([]int, error) {
	width := bitDepth / 8
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}

	samples := make([]int, len(pcm)/width)
	for i := range samples {
		var v uint32
		for b := range width {
			v |= uint32(pcm[i*width+b]) << (8 * b)
		}
		if bitDepth == 8 {
			samples[i] = int(v)
			continue
		}
		// sign-extend from the sample width
		shift := 32 - bitDepth
		samples[i] = int(int32(v<<shift) >> shift)
	}
	return samples, nil
}
