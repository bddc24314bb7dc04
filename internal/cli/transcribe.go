package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmrelay/vmrelay/internal/transcribe"
)

// supportedFormats lists the attachment types PBX systems send.
// WAV is decoded directly; everything else goes through FFmpeg.
var supportedFormats = map[string]bool{
	".wav":  true,
	".ogg":  true,
	".oga":  true,
	".opus": true,
	".mp3":  true,
	".m4a":  true,
	".flac": true,
	".gsm":  true,
	".amr":  true,
}

// supportedFormatsList returns a sorted, comma-separated list for error messages.
func supportedFormatsList() string {
	formats := make([]string, 0, len(supportedFormats))
	for ext := range supportedFormats {
		formats = append(formats, strings.TrimPrefix(ext, "."))
	}
	slices.Sort(formats)
	return strings.Join(formats, ", ")
}

// clampParallel constrains parallel request count to valid range [1, MaxRecommendedParallel].
func clampParallel(n int) int {
	if n < 1 {
		return 1
	}
	if n > transcribe.MaxRecommendedParallel {
		return transcribe.MaxRecommendedParallel
	}
	return n
}

type transcribeOptions struct {
	output   string
	backend  string
	language string
	parallel int
}

// TranscribeCmd creates the transcribe command.
func TranscribeCmd(env *Env) *cobra.Command {
	var opts transcribeOptions

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe a voicemail recording without delivering it",
		Long: `Run the audio half of the relay on a local file: segment it, transcribe every
chunk with the configured backend and print the combined transcript.

Useful to check credentials, language and sample rate before pointing the relay
at a live mailbox. Nothing is sent to Telegram.

Supported formats: amr, flac, gsm, m4a, mp3, oga, ogg, opus, wav (non-WAV needs ffmpeg)`,
		Example: `  vmrelay transcribe msg0001.wav
  vmrelay transcribe msg0001.wav -o msg0001.txt
  vmrelay transcribe msg0001.ogg --backend whisper -l en-US`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd.Context(), env, configPath(cmd), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the transcript to this file instead of stdout")
	cmd.Flags().StringVarP(&opts.backend, "backend", "b", "", "Override transcription.backend: google, openai, whisper")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Override transcription.language (e.g. nl-NL, en-US)")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", 0, "Override transcription.parallel (1-10)")

	return cmd
}

// runTranscribe transcribes one file.
// Validation order: file exists -> format -> config -> overrides -> backend
func runTranscribe(ctx context.Context, env *Env, configFile, inputPath string, opts transcribeOptions) error {
	// === VALIDATION (fail-fast) ===

	if _, err := os.Stat(inputPath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, inputPath)
		}
		return fmt.Errorf("cannot access input file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(inputPath))
	if !supportedFormats[ext] {
		return fmt.Errorf("unsupported format %q (supported: %s): %w",
			ext, supportedFormatsList(), ErrUnsupportedFormat)
	}

	if opts.output != "" {
		if _, err := os.Stat(opts.output); err == nil {
			return fmt.Errorf("output file already exists: %s: %w", opts.output, ErrOutputExists)
		}
	}

	// Only transcription settings matter here, so the full Validate is skipped:
	// a mailbox-less machine must still be able to test its speech backend.
	cfg, err := env.ConfigLoader.Load(configFile)
	if err != nil {
		return err
	}
	if opts.backend != "" {
		cfg.Transcription.Backend = opts.backend
	}
	if opts.language != "" {
		cfg.Transcription.Language = opts.language
	}
	if opts.parallel != 0 {
		cfg.Transcription.Parallel = opts.parallel
	}
	cfg.Transcription.Parallel = clampParallel(cfg.Transcription.Parallel)
	log := newLogger(env, cfg.Log)

	// === SETUP ===

	tr, err := env.TranscriberFactory.NewTranscriber(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%w: %s transcriber: %w", ErrSetup, cfg.Transcription.Backend, err)
	}
	if c, ok := tr.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	pipeline, err := newPipeline(env, cfg, tr, nil, log)
	if err != nil {
		return err
	}

	// === TRANSCRIPTION ===

	data, err := os.ReadFile(inputPath) // #nosec G304 -- user-specified input file
	if err != nil {
		return fmt.Errorf("cannot read input file: %w", err)
	}

	result, err := pipeline.Transcribe(ctx, data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	if result.Chunks > 0 && result.Failed == result.Chunks {
		return fmt.Errorf("%w: all %d chunks failed", ErrTranscriptionFailed, result.Chunks)
	}

	printSummary(env.Stderr, "Transcribed %d chunks with %s (%d failed)",
		result.Chunks, cfg.Transcription.Backend, result.Failed)

	// === OUTPUT ===

	if opts.output == "" {
		printSummary(env.Stdout, "%s", result.Text)
		return nil
	}
	if err := writeFileAtomic(opts.output, result.Text+"\n"); err != nil {
		return err
	}
	printSummary(env.Stderr, "Wrote %s", opts.output)
	return nil
}
