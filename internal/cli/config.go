package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/standproj/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "STANDPROJ"
)

// configDefaults are registered with viper so that every key can also be
// set through a STANDPROJ_ environment variable.
var configDefaults = map[string]any{
	"work_dir":         "",
	"parallelism":      0,
	"trial_run":        false,
	"archive":          false,
	"ledger.driver":    types.LedgerSQLite,
	"ledger.dsn":       "",
	"ledger.data_dir":  "",
	"engines.fipstart": "",
	"engines.vristart": "",
	"engines.forward":  "",
	"engines.back":     "",
	"engines.adjust":   "",
}

// loadConfig reads config.yaml from configDir. A missing file is not an
// error; defaults and environment overrides still apply.
func loadConfig(configDir string) (types.Config, error) {
	v := viper.New()
	for k, val := range configDefaults {
		v.SetDefault(k, val)
	}
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// defaultConfig is written by init. Trial runs need no engines, so a fresh
// install can project immediately.
func defaultConfig() types.Config {
	return types.Config{
		TrialRun: true,
		Ledger:   types.LedgerConfig{Driver: types.LedgerSQLite},
	}
}

// writeConfigIfMissing creates config.yaml in configDir unless it exists.
// It reports whether a file was written.
func writeConfigIfMissing(configDir string, cfg types.Config) (bool, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return false, fmt.Errorf("create config directory: %w", err)
	}
	path := filepath.Join(configDir, configFileExt)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := "# standproj configuration\n"
	return true, os.WriteFile(path, append([]byte(header), data...), 0o644)
}
