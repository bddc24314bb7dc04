package transcribe

// Exports for testing. These allow black-box tests to inject dependencies
// without modifying the public API.

// SpeechBackend exports speechBackend for fakes.
type SpeechBackend = speechBackend

// AudioTranscriber exports audioTranscriber for fakes.
type AudioTranscriber = audioTranscriber

// NewTestGoogleTranscriber creates a GoogleTranscriber around a fake backend.
var NewTestGoogleTranscriber = newGoogleTranscriber

// NewTestOpenAITranscriber creates an OpenAITranscriber around a fake client.
var NewTestOpenAITranscriber = newOpenAITranscriber

// Function exports for unit testing internal logic.
var (
	ClassifyError     = classifyError
	ClassifyGRPCError = classifyGRPCError
	ClassifyStatus    = classifyStatus
	IsRetryableError  = isRetryableError
)
