package ffmpeg

// Statter exports statter interface for testing.
type Statter = statter

// EnvProvider exports envProvider interface for testing.
type EnvProvider = envProvider

// Linear16Args exports linear16Args for testing.
var Linear16Args = linear16Args
