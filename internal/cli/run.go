package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/vmrelay/vmrelay/internal/config"
	"github.com/vmrelay/vmrelay/internal/logger"
	"github.com/vmrelay/vmrelay/internal/metrics"
)

// FlagConfig names the persistent flag that points at the YAML file.
const FlagConfig = "config"

// configPath returns the --config value, searching parents for the persistent flag.
func configPath(cmd *cobra.Command) string {
	if f := cmd.Flag(FlagConfig); f != nil {
		return f.Value.String()
	}
	return ""
}

// RunCmd creates the run command.
// The env parameter provides injectable dependencies for testing.
func RunCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll the mailbox and relay voicemails until interrupted",
		Long: `Poll the IMAP mailbox for unseen voicemail notifications, transcribe the
attached audio and deliver it to the Telegram chat with the transcript as caption.

A message is flagged \Seen only after its delivery finished, so a crash mid-way
replays it on the next start. The status server serves /healthz and /metrics
when status.addr is set, and the weekly archive job runs when archive.enabled is true.`,
		Example: `  vmrelay run
  vmrelay run --config /etc/vmrelay/config.yml
  VMRELAY_TRANSCRIPTION_BACKEND=whisper vmrelay run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRelay(cmd.Context(), env, configPath(cmd))
		},
	}
}

// OnceCmd creates the once command.
func OnceCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single poll cycle and exit",
		Long: `Run exactly one poll cycle: connect, relay every unseen voicemail, disconnect.

Exits non-zero when the mailbox could not be reached. Failures of individual
messages are logged and counted but do not fail the command.`,
		Example: `  vmrelay once
  vmrelay once -c config/config.yml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), env, configPath(cmd))
		},
	}
}

// runRelay runs the poll loop with the status server and archive job
// alongside it. It returns nil when ctx is canceled.
func runRelay(ctx context.Context, env *Env, path string) error {
	cfg, err := loadConfig(env, path)
	if err != nil {
		return err
	}
	log := newLogger(env, cfg.Log)

	svc, err := newService(ctx, env, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	if cfg.Status.Addr != "" {
		srv := metrics.NewServer(cfg.Status.Addr, svc.metrics, svc.status, svc.poller.Interval(), log)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("%w: %w", ErrSetup, err)
		}
		// The run context is already done when this fires.
		defer func() { _ = srv.Stop(context.WithoutCancel(ctx)) }()
	}

	if cfg.Archive.Enabled {
		sched, err := scheduleArchive(ctx, svc.archiver, cfg.Archive.Schedule, log.WithComponent("archive"))
		if err != nil {
			return err
		}
		defer func() { <-sched.Stop().Done() }()
	}

	return svc.poller.Run(ctx)
}

// runOnce performs one cycle and prints its tally.
func runOnce(ctx context.Context, env *Env, path string) error {
	cfg, err := loadConfig(env, path)
	if err != nil {
		return err
	}
	log := newLogger(env, cfg.Log)

	svc, err := newService(ctx, env, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	cyc, err := svc.poller.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCycleFailed, err)
	}
	printSummary(env.Stdout, "found %d, relayed %d, skipped %d, failed %d in %s",
		cyc.Found, cyc.Processed, cyc.Skipped, cyc.Failed, cyc.Duration.Round(time.Millisecond))
	return nil
}

// archiver is the part of mailbox.Archiver the scheduler needs.
type archiver interface {
	Archive(ctx context.Context) (string, int, error)
}

// scheduleArchive starts a cron scheduler firing the archive job on schedule
// (standard five-field syntax). Runs do not overlap: a firing that finds
// the previous run still busy is skipped.
func scheduleArchive(ctx context.Context, a archiver, schedule string, log *logger.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(schedule, func() {
		folder, n, err := a.Archive(ctx)
		if err != nil {
			log.Error("archive failed", logger.Fields("folder", folder, logger.FieldError, err))
			return
		}
		log.Info("archive finished", logger.Fields("folder", folder, "moved", n))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: archive.schedule %q: %w", config.ErrInvalidSetting, schedule, err)
	}
	c.Start()
	return c, nil
}
