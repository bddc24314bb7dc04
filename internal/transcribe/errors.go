package transcribe

import "errors"

// ErrAPIKeyMissing indicates the OpenAI backend was selected without an API key.
var ErrAPIKeyMissing = errors.New("openai.api_key not set")

// ErrUnknownBackend indicates transcription.backend names no known engine.
var ErrUnknownBackend = errors.New("unknown transcription backend")

// ErrUnknownMode indicates an unsupported Google recognition mode.
var ErrUnknownMode = errors.New("unknown recognition mode")
