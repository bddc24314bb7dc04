package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Executor - testable FFmpeg execution with dependency injection
// ---------------------------------------------------------------------------

// runPipeFn runs path with args, feeding stdin and returning stdout and stderr.
type runPipeFn func(ctx context.Context, path string, args []string, stdin []byte) (stdout []byte, stderr string, err error)

// Executor runs FFmpeg commands with injectable dependencies.
type Executor struct {
	runPipe runPipeFn
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRunPipe sets a custom runPipe function (for testing).
func WithRunPipe(fn runPipeFn) ExecutorOption {
	return func(e *Executor) { e.runPipe = fn }
}

// NewExecutor creates an Executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		runPipe: defaultRunPipe,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunPipe executes FFmpeg with stdin and captures stdout and stderr.
func (e *Executor) RunPipe(ctx context.Context, ffmpegPath string, args []string, stdin []byte) ([]byte, string, error) {
	return e.runPipe(ctx, ffmpegPath, args, stdin)
}

func defaultRunPipe(ctx context.Context, ffmpegPath string, args []string, stdin []byte) ([]byte, string, error) {
	// #nosec G204 -- ffmpegPath comes from the resolver, args are built by this package
	cmd := exec.CommandContext(ctx, ffmpegPath, args...)
	cmd.Stdin = bytes.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.Bytes(), stderr.String(), err
}

// ---------------------------------------------------------------------------
// Converter
// ---------------------------------------------------------------------------

// Converter transcodes arbitrary audio into mono signed 16-bit PCM.
type Converter struct {
	path string
	exec *Executor
}

// NewConverter creates a Converter for the binary at ffmpegPath.
// A nil executor uses the default one.
func NewConverter(ffmpegPath string, exec *Executor) *Converter {
	if exec == nil {
		exec = NewExecutor()
	}
	return &Converter{path: ffmpegPath, exec: exec}
}

// ToLinear16 decodes any container FFmpeg understands and returns raw
// little-endian 16-bit mono samples at sampleRate.
func (c *Converter) ToLinear16(ctx context.Context, in []byte, sampleRate int) ([]byte, error) {
	out, stderr, err := c.exec.RunPipe(ctx, c.path, linear16Args(sampleRate), in)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v: %s", ErrConversionFailed, err, strings.TrimSpace(stderr))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no output", ErrConversionFailed)
	}
	return out, nil
}

// linear16Args reads from stdin and writes headerless s16le to stdout.
// Raw output avoids the unknown-length RIFF header FFmpeg emits on pipes.
func linear16Args(sampleRate int) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"pipe:1",
	}
}
