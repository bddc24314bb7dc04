package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileSystem abstracts the file checks made while loading.
type FileSystem interface {
	Exists(path string) bool
	LoadEnv(path string) error
}

// OSFileSystem is the real FileSystem.
type OSFileSystem struct{}

func (OSFileSystem) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadEnv loads a .env file. Variables already set in the process win.
func (OSFileSystem) LoadEnv(path string) error {
	return godotenv.Load(path)
}

// configSearchPaths are tried in order when no file is given.
var configSearchPaths = []string{
	"./config/config.yml",
	"./config.yml",
}

// envSearchPaths are tried in order when no .env file is given.
var envSearchPaths = []string{
	"./.env",
	"./config/.env",
}

type loader struct {
	fs         FileSystem
	configFile string
	envFile    string
}

// Option configures Load.
type Option func(*loader)

// WithConfigFile sets an explicit YAML file. It must exist.
func WithConfigFile(path string) Option {
	return func(l *loader) { l.configFile = path }
}

// WithEnvFile sets an explicit .env file. It must exist.
func WithEnvFile(path string) Option {
	return func(l *loader) { l.envFile = path }
}

// WithFileSystem replaces the file system.
func WithFileSystem(fs FileSystem) Option {
	return func(l *loader) { l.fs = fs }
}

// Load resolves files, reads them and returns the merged configuration.
// It does not validate; call Validate on the result.
func Load(opts ...Option) (Config, error) {
	l := loader{fs: OSFileSystem{}}
	for _, opt := range opts {
		opt(&l)
	}

	envFile, err := l.resolve(l.envFile, envSearchPaths)
	if err != nil {
		return Config{}, err
	}
	if envFile != "" {
		if err := l.fs.LoadEnv(envFile); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	configFile, err := l.resolve(l.configFile, configSearchPaths)
	if err != nil {
		return Config{}, err
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %v", ErrInvalidSetting, configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidSetting, err)
	}
	cfg.Google.CredentialsFile = ExpandPath(cfg.Google.CredentialsFile)
	cfg.FFmpeg.Path = ExpandPath(cfg.FFmpeg.Path)
	return cfg, nil
}

// resolve returns explicit when set (failing if it is missing), else the
// first existing search path, else "".
func (l loader) resolve(explicit string, search []string) (string, error) {
	if explicit != "" {
		if !l.fs.Exists(explicit) {
			return "", fmt.Errorf("%w: file not found: %s", ErrInvalidSetting, explicit)
		}
		return explicit, nil
	}
	for _, p := range search {
		if l.fs.Exists(p) {
			return p, nil
		}
	}
	return "", nil
}

// ExpandPath expands a leading ~/ to the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}
