package blob

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config selects and configures the archive store.
type Config struct {
	Driver Driver `env:"STANDPROJ_BLOB_DRIVER" envDefault:"fs"`
	Root   string `env:"STANDPROJ_BLOB_ROOT"`
	S3     S3Config
}

// S3Config holds the settings of the s3 driver. Credentials fall back to the
// default AWS chain when AccessKeyID is empty.
type S3Config struct {
	Bucket          string `env:"STANDPROJ_S3_BUCKET"`
	Region          string `env:"STANDPROJ_S3_REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"STANDPROJ_S3_ENDPOINT"`
	PathStyle       bool   `env:"STANDPROJ_S3_PATH_STYLE"`
	AccessKeyID     string `env:"STANDPROJ_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"STANDPROJ_S3_SECRET_ACCESS_KEY"`
}

// ConfigFromEnv reads Config from the process environment.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse blob env: %w", err)
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverFilesystem
	}
	return cfg, nil
}
