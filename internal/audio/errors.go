package audio

import "errors"

// ErrNotWAV indicates the payload is not a RIFF WAV file go-audio can decode.
var ErrNotWAV = errors.New("not a PCM WAV file")

// ErrFormatMismatch indicates the clip's format differs from what the
// transcription backend declared.
var ErrFormatMismatch = errors.New("audio format mismatch")

// ErrUnsupportedBitDepth indicates a sample width other than 8, 16, 24 or 32 bits.
var ErrUnsupportedBitDepth = errors.New("unsupported bit depth")
