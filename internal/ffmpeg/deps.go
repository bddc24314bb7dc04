package ffmpeg

import (
	"os"
	"os/exec"
)

// statter abstracts file existence checks.
type statter interface {
	Stat(name string) (os.FileInfo, error)
}

// envProvider abstracts environment and path lookup operations.
type envProvider interface {
	Getenv(key string) string
	LookPath(file string) (string, error)
}

// Compile-time interface verification.
var (
	_ statter     = osStatter{}
	_ envProvider = osEnvProvider{}
)

type osStatter struct{}

func (osStatter) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

type osEnvProvider struct{}

func (osEnvProvider) Getenv(key string) string {
	return os.Getenv(key)
}

func (osEnvProvider) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}
