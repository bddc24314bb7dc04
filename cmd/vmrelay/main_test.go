package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vmrelay/vmrelay/internal/apierr"
	"github.com/vmrelay/vmrelay/internal/cli"
	"github.com/vmrelay/vmrelay/internal/config"
	"github.com/vmrelay/vmrelay/internal/ffmpeg"
	"github.com/vmrelay/vmrelay/internal/mailbox"
)

// ---------------------------------------------------------------------------
// TestExitCode - error to exit code mapping
// ---------------------------------------------------------------------------

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"interrupted", fmt.Errorf("transcribe: %w", context.Canceled), ExitInterrupt},
		{"unknown command", errors.New(`unknown command "start" for "vmrelay"`), ExitUsage},
		{"wrong arg count", errors.New("accepts 1 arg(s), received 0"), ExitUsage},
		{"missing setting", fmt.Errorf("%w: imap.host", config.ErrMissingSetting), ExitSetup},
		{"invalid setting", fmt.Errorf("%w: poll.interval", config.ErrInvalidSetting), ExitSetup},
		{"joined config problems", errors.Join(
			fmt.Errorf("%w: imap.host", config.ErrMissingSetting),
			fmt.Errorf("%w: caption.policy", config.ErrInvalidSetting),
		), ExitSetup},
		{"setup", fmt.Errorf("%w: telegram: Unauthorized", cli.ErrSetup), ExitSetup},
		{"ffmpeg missing", fmt.Errorf("%w: not in PATH", ffmpeg.ErrNotFound), ExitSetup},
		{"file not found", fmt.Errorf("%w: msg.wav", cli.ErrFileNotFound), ExitValidation},
		{"unsupported format", cli.ErrUnsupportedFormat, ExitValidation},
		{"output exists", cli.ErrOutputExists, ExitValidation},
		{"unknown key", cli.ErrUnknownKey, ExitValidation},
		{"transcription failed", cli.ErrTranscriptionFailed, ExitTranscription},
		{"auth failed", fmt.Errorf("whisper: %w", apierr.ErrAuthFailed), ExitTranscription},
		{"cycle failed", fmt.Errorf("%w: %w", cli.ErrCycleFailed, mailbox.ErrConnect), ExitMailbox},
		{"archive unreachable", fmt.Errorf("%w: dial tcp", mailbox.ErrConnect), ExitMailbox},
		{"anything else", errors.New("boom"), ExitGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestNewRootCmd - command tree
// ---------------------------------------------------------------------------

func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	root := newRootCmd(cli.NewEnv())

	for _, name := range []string{"run", "once", "archive", "transcribe", "config"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("Find(%q) = %v, %v", name, cmd, err)
		}
	}
	if root.PersistentFlags().Lookup(cli.FlagConfig) == nil {
		t.Error("--config flag not registered")
	}
}

func TestRootCmd_UnknownCommandIsUsageError(t *testing.T) {
	t.Parallel()

	root := newRootCmd(cli.NewEnv())
	root.SetArgs([]string{"start"})

	err := root.Execute()
	if got := exitCode(err); got != ExitUsage {
		t.Errorf("exitCode(%v) = %d, want %d", err, got, ExitUsage)
	}
}
