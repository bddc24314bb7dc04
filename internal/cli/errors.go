package cli

import "errors"

// CLI-specific sentinel errors.
// These are validation/usage errors that don't belong to domain packages.

var (
	// ErrSetup indicates a collaborator (speech backend, Telegram, ledger,
	// FFmpeg) could not be initialized before polling started.
	ErrSetup = errors.New("setup failed")

	// ErrUnsupportedFormat indicates an audio file has an unsupported extension.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrFileNotFound indicates the specified input file does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrOutputExists indicates the output file already exists.
	ErrOutputExists = errors.New("output file already exists")

	// ErrUnknownKey indicates a configuration key that does not exist.
	ErrUnknownKey = errors.New("unknown configuration key")

	// ErrTranscriptionFailed indicates no chunk of an audio file could be transcribed.
	ErrTranscriptionFailed = errors.New("transcription failed")

	// ErrCycleFailed indicates a single poll cycle could not reach the mailbox.
	ErrCycleFailed = errors.New("poll cycle failed")
)
