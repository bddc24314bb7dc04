package deliver

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// AudioSource hands out a fresh reader for the attachment on every Open.
// Each send attempt opens, reads and closes its own reader, so a finished
// upload never leaves the next one with a drained or closed stream.
type AudioSource interface {
	Open() (io.ReadCloser, error)
	Name() string
	ContentType() string
}

// Compile-time interface checks.
var (
	_ AudioSource = FileSource{}
	_ AudioSource = BytesSource{}
)

// FileSource reads the attachment from disk.
type FileSource struct {
	Path     string
	FileName string // Upload name; defaults to the base of Path.
	MIME     string
}

func (s FileSource) Open() (io.ReadCloser, error) {
	return os.Open(s.Path) // #nosec G304 -- path is a temp file created by the pipeline
}

func (s FileSource) Name() string {
	if s.FileName != "" {
		return s.FileName
	}
	return filepath.Base(s.Path)
}

func (s FileSource) ContentType() string { return s.MIME }

// BytesSource serves the attachment from memory.
type BytesSource struct {
	Data     []byte
	FileName string
	MIME     string
}

func (s BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}

func (s BytesSource) Name() string        { return s.FileName }
func (s BytesSource) ContentType() string { return s.MIME }

// isVoice reports whether Telegram can play the attachment as a voice note.
// sendVoice only accepts OGG/OPUS; everything else goes through sendAudio.
func isVoice(src AudioSource) bool {
	ct := strings.ToLower(src.ContentType())
	return strings.HasPrefix(ct, "audio/ogg") || strings.HasPrefix(ct, "audio/opus")
}
