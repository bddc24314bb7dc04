package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vmrelay/vmrelay/internal/mailbox"
)

// ArchiveCmd creates the archive command.
func ArchiveCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Move handled inbox messages into this week's archive folder",
		Long: `Move every \Seen message in the configured mailbox into INBOX.<year>.<week-1>-<week>,
creating the folder when it does not exist yet. The originals are expunged.
Unseen messages stay in place so the poller still relays them.

This is the job "run" schedules with archive.schedule; use it to archive on demand.`,
		Example: `  vmrelay archive
  vmrelay archive --config /etc/vmrelay/config.yml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runArchive(cmd.Context(), env, configPath(cmd))
		},
	}
}

// runArchive needs only the IMAP settings, so it skips the speech and
// Telegram setup the relay commands do.
func runArchive(ctx context.Context, env *Env, path string) error {
	cfg, err := loadConfig(env, path)
	if err != nil {
		return err
	}
	log := newLogger(env, cfg.Log)

	a := mailbox.NewArchiver(env.DialerFactory.NewDialer(cfg.IMAP), cfg.IMAP.Mailbox, log.WithComponent("archive"))
	folder, n, err := a.Archive(ctx)
	if err != nil {
		return err
	}
	printSummary(env.Stdout, "moved %d messages to %s", n, folder)
	return nil
}
