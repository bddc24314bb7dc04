package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/vmrelay/vmrelay/internal/config"
	"github.com/vmrelay/vmrelay/internal/logger"
)

// newLogger builds the process logger. Output "stderr" goes to env.Stderr
// so commands stay testable; any other output is opened by the logger.
func newLogger(env *Env, cfg logger.Config) *logger.Logger {
	switch cfg.Output {
	case "", "stderr":
		return logger.NewWithWriter(cfg, env.Stderr)
	default:
		return logger.New(cfg)
	}
}

// loadConfig loads the file named by --config and validates it.
func loadConfig(env *Env, path string) (config.Config, error) {
	cfg, err := env.ConfigLoader.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// printSummary writes a one-line human summary to w.
func printSummary(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format+"\n", args...)
}

// writeFileAtomic writes content to path atomically.
// It fails if the file already exists (O_EXCL), preventing accidental overwrites.
// On write failure, the partial file is removed.
func writeFileAtomic(path, content string) error {
	// #nosec G302 G304 -- user-specified output file with standard permissions
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("output file already exists: %s: %w", path, ErrOutputExists)
		}
		return fmt.Errorf("cannot create output file: %w", err)
	}

	writeErr := func() error {
		defer func() { _ = f.Close() }()
		if _, err := f.WriteString(content); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}()

	if writeErr != nil {
		_ = os.Remove(path)
		return writeErr
	}

	return nil
}
