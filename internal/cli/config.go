package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/vmrelay/vmrelay/internal/config"
)

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
		Long: `Inspect the configuration vmrelay would run with.

Values come from the YAML file (--config, else ./config/config.yml or ./config.yml),
then .env, then VMRELAY_* environment variables, in increasing precedence.
Secrets (imap.password, telegram.token, openai.api_key) are masked.`,
		Example: `  vmrelay config list
  vmrelay config get transcription.backend
  vmrelay config check --config /etc/vmrelay/config.yml`,
	}

	cmd.AddCommand(configListCmd(env))
	cmd.AddCommand(configGetCmd(env))
	cmd.AddCommand(configCheckCmd(env))

	return cmd
}

// configListCmd creates the "config list" subcommand.
func configListCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List every setting with its effective value",
		Example: `  vmrelay config list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigList(env, configPath(cmd))
		},
	}
}

// configGetCmd creates the "config get" subcommand.
func configGetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Long: `Print the effective value of one setting.

Keys use dotted form, e.g. imap.host or delivery.max_attempts.`,
		Example: `  vmrelay config get poll.interval`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(env, configPath(cmd), args[0])
		},
	}
}

// configCheckCmd creates the "config check" subcommand.
func configCheckCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration",
		Long: `Load and validate the configuration, reporting every problem at once.
Exits with the setup exit code when something is missing or invalid.`,
		Example: `  vmrelay config check`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigCheck(env, configPath(cmd))
		},
	}
}

// runConfigList prints key = value lines, sorted by key.
func runConfigList(env *Env, path string) error {
	cfg, err := env.ConfigLoader.Load(path)
	if err != nil {
		return err
	}

	settings := cfg.Settings()
	for _, key := range config.Keys() {
		_, _ = fmt.Fprintf(env.Stdout, "%s = %s\n", key, settings[key])
	}
	return nil
}

// runConfigGet prints one value.
func runConfigGet(env *Env, path, key string) error {
	if !slices.Contains(config.Keys(), key) {
		return fmt.Errorf("%w: %q (see: vmrelay config list)", ErrUnknownKey, key)
	}

	cfg, err := env.ConfigLoader.Load(path)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(env.Stdout, cfg.Settings()[key])
	return nil
}

// runConfigCheck loads and validates.
func runConfigCheck(env *Env, path string) error {
	cfg, err := loadConfig(env, path)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(env.Stderr, "Configuration OK (backend %s, mailbox %s@%s)\n",
		cfg.Transcription.Backend, cfg.IMAP.Mailbox, cfg.IMAP.Host)
	return nil
}
