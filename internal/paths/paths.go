// Package paths resolves the directories the standproj CLI reads and
// writes: the config directory holding config.yaml, the work directory
// under which each request gets an execution folder, and the data
// directory of the embedded ledger.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the directory name used under platform config and data roots.
const AppName = "standproj"

// Environment variable overrides.
const (
	EnvConfigDir = "STANDPROJ_CONFIG_DIR"
	EnvWorkDir   = "STANDPROJ_WORK_DIR"
	EnvDataDir   = "STANDPROJ_DATA_DIR"
)

// platformDir holds platform lookups that tests override.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
	tempDir       func() string
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
	tempDir:       os.TempDir,
}

// DefaultConfigDir returns the platform config directory.
//
// Linux:   $XDG_CONFIG_HOME/standproj (fallback ~/.config/standproj)
// macOS:   ~/Library/Application Support/standproj
// Windows: %APPDATA%/standproj
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// DefaultDataDir returns the platform data directory. On Linux it honours
// $XDG_DATA_HOME; elsewhere it is the config directory.
func DefaultDataDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	}
	return DefaultConfigDir()
}

func xdgDir(env, fallback string) (string, error) {
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, AppName), nil
}

// DefaultWorkDir returns the directory execution folders are created under
// when nothing overrides it.
func DefaultWorkDir() string {
	return filepath.Join(platformDir.tempDir(), AppName)
}

// ResolveConfigDir applies flag > STANDPROJ_CONFIG_DIR > DefaultConfigDir.
func ResolveConfigDir(flag string) (string, error) {
	return resolve(flag, "", EnvConfigDir, DefaultConfigDir)
}

// ResolveWorkDir applies flag > config.yaml work_dir > STANDPROJ_WORK_DIR >
// DefaultWorkDir.
func ResolveWorkDir(flag, configValue string) (string, error) {
	return resolve(flag, configValue, EnvWorkDir, func() (string, error) { return DefaultWorkDir(), nil })
}

// ResolveDataDir applies config.yaml ledger.data_dir > STANDPROJ_DATA_DIR >
// DefaultDataDir.
func ResolveDataDir(configValue string) (string, error) {
	return resolve("", configValue, EnvDataDir, DefaultDataDir)
}

func resolve(flag, configValue, env string, fallback func() (string, error)) (string, error) {
	for _, v := range []string{flag, configValue, os.Getenv(env)} {
		if v != "" {
			return filepath.Abs(v)
		}
	}
	return fallback()
}
