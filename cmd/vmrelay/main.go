package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmrelay/vmrelay/internal/apierr"
	"github.com/vmrelay/vmrelay/internal/cli"
	"github.com/vmrelay/vmrelay/internal/config"
	"github.com/vmrelay/vmrelay/internal/ffmpeg"
	"github.com/vmrelay/vmrelay/internal/interrupt"
	"github.com/vmrelay/vmrelay/internal/mailbox"
	"github.com/vmrelay/vmrelay/internal/transcribe"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK            = 0
	ExitGeneral       = 1
	ExitUsage         = 2
	ExitSetup         = 3
	ExitValidation    = 4
	ExitTranscription = 5
	ExitMailbox       = 6
	ExitInterrupt     = interrupt.ExitInterrupt
)

func main() {
	// First Ctrl+C drains the current message, a second one forces exit.
	handler, ctx := interrupt.NewHandler(context.Background())
	defer handler.Stop()

	// Create the CLI environment with production defaults.
	env := cli.DefaultEnv()

	if err := newRootCmd(env).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		handler.Stop()
		os.Exit(exitCode(err))
	}
}

// newRootCmd assembles the command tree.
func newRootCmd(env *cli.Env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vmrelay",
		Short: "Relay PBX voicemail emails to Telegram with a transcript",
		Long: `vmrelay watches an IMAP mailbox for voicemail notifications, transcribes the
attached recording and posts it to a Telegram chat with the transcript as caption.`,
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().StringP(cli.FlagConfig, "c", "",
		"Config file (default: ./config/config.yml or ./config.yml)")

	// Subcommands.
	rootCmd.AddCommand(cli.RunCmd(env))
	rootCmd.AddCommand(cli.OnceCmd(env))
	rootCmd.AddCommand(cli.ArchiveCmd(env))
	rootCmd.AddCommand(cli.TranscribeCmd(env))
	rootCmd.AddCommand(cli.ConfigCmd(env))

	return rootCmd
}

// exitCode maps errors to exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	// Check for context cancellation (interrupt).
	if errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Usage errors (ExitUsage = 2): Cobra flag/arg parsing errors.
	// Cobra doesn't expose typed errors, so we check for known error message patterns.
	if isCobraUsageError(err) {
		return ExitUsage
	}

	// Setup errors (ExitSetup = 3): nothing was polled yet.
	if errors.Is(err, config.ErrMissingSetting) || errors.Is(err, config.ErrInvalidSetting) ||
		errors.Is(err, cli.ErrSetup) || errors.Is(err, ffmpeg.ErrNotFound) ||
		errors.Is(err, transcribe.ErrAPIKeyMissing) {
		return ExitSetup
	}

	// Validation errors (ExitValidation = 4).
	if errors.Is(err, cli.ErrUnsupportedFormat) || errors.Is(err, cli.ErrFileNotFound) ||
		errors.Is(err, cli.ErrOutputExists) || errors.Is(err, cli.ErrUnknownKey) {
		return ExitValidation
	}

	// Transcription errors (ExitTranscription = 5).
	if errors.Is(err, cli.ErrTranscriptionFailed) ||
		errors.Is(err, apierr.ErrRateLimit) || errors.Is(err, apierr.ErrQuotaExceeded) ||
		errors.Is(err, apierr.ErrTimeout) || errors.Is(err, apierr.ErrAuthFailed) {
		return ExitTranscription
	}

	// Mailbox errors (ExitMailbox = 6).
	if errors.Is(err, cli.ErrCycleFailed) || errors.Is(err, mailbox.ErrConnect) {
		return ExitMailbox
	}

	return ExitGeneral
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// Cobra doesn't expose typed errors, so string matching is the only reliable approach.
var cobraUsageErrorPatterns = []string{
	"unknown command",        // Subcommand doesn't exist
	"unknown flag",           // Flag doesn't exist
	"unknown shorthand",      // Short flag doesn't exist
	"flag needs an argument", // Flag provided without value
	"invalid argument",       // Invalid flag value type
	"accepts ",               // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",      // Too few arguments
	"requires at most",       // Too many arguments
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}
