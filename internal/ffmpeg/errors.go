package ffmpeg

import "errors"

// ErrNotFound indicates FFmpeg binary was not found.
var ErrNotFound = errors.New("ffmpeg not found")

// ErrConversionFailed indicates FFmpeg exited with an error while transcoding.
var ErrConversionFailed = errors.New("ffmpeg conversion failed")
