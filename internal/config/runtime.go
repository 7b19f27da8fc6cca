package config

import (
	"os"
	"path/filepath"
	"strconv"
)

const (
	envRuntimePath = "TUSKMEM_RUNTIME_PATH"
	envDebug       = "TUSKMEM_DEBUG"

	defaultRuntimeDir = ".tuskmem"
)

// GetRuntimePath resolves the directory holding .env, sources.yaml, the
// cache and the database. Relative paths are taken from the home directory.
func GetRuntimePath() string {
	path := os.Getenv(envRuntimePath)
	if path == "" {
		path = defaultRuntimeDir
	}
	if filepath.IsAbs(path) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path)
}

// IsDebug reports whether TUSKMEM_DEBUG is set to a true value.
func IsDebug() bool {
	on, err := strconv.ParseBool(os.Getenv(envDebug))
	return err == nil && on
}
