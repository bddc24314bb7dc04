// Package ffmpeg locates an FFmpeg binary and uses it to normalize voicemail
// attachments into the raw PCM the speech backends expect.
package ffmpeg

import (
	"fmt"
)

const (
	binaryName = "ffmpeg"

	// envFFmpegPath overrides PATH lookup when the configured path is empty.
	envFFmpegPath = "FFMPEG_PATH"
)

// Resolver finds an FFmpeg binary.
type Resolver struct {
	configured string
	stat       statter
	env        envProvider
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithConfiguredPath sets an explicit binary path that takes precedence over everything else.
func WithConfiguredPath(path string) ResolverOption {
	return func(r *Resolver) { r.configured = path }
}

// WithStatter sets the file statter implementation.
func WithStatter(s statter) ResolverOption {
	return func(r *Resolver) { r.stat = s }
}

// WithEnvProvider sets the environment provider implementation.
func WithEnvProvider(e envProvider) ResolverOption {
	return func(r *Resolver) { r.env = e }
}

// NewResolver creates a Resolver with the given options.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		stat: osStatter{},
		env:  osEnvProvider{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve finds ffmpeg using the following precedence:
//  1. the configured path (error if set but missing)
//  2. FFMPEG_PATH environment variable (error if set but missing)
//  3. system PATH
func (r *Resolver) Resolve() (string, error) {
	if r.configured != "" {
		if _, err := r.stat.Stat(r.configured); err != nil {
			return "", fmt.Errorf("%w: ffmpeg.path is set to %q but binary not found", ErrNotFound, r.configured)
		}
		return r.configured, nil
	}

	if envPath := r.env.Getenv(envFFmpegPath); envPath != "" {
		if _, err := r.stat.Stat(envPath); err != nil {
			return "", fmt.Errorf("%w: %s is set to %q but binary not found", ErrNotFound, envFFmpegPath, envPath)
		}
		return envPath, nil
	}

	path, err := r.env.LookPath(binaryName)
	if err != nil {
		return "", fmt.Errorf("%w: not in PATH", ErrNotFound)
	}
	return path, nil
}
