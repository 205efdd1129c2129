package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type EnvConfig struct {
	Port        string `envconfig:"PORT" default:"3000"`
	BaseURL     string `envconfig:"BASE_URL" default:"http://localhost:3000"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// DataDir is the parent of the workspace and results trees.
	DataDir string `envconfig:"DATA_DIR" default:".osbench"`

	// DefaultImage is used for submissions that name no explicit image,
	// bypassing the target-OS resolution table; normally empty.
	DefaultImage string `envconfig:"DEFAULT_IMAGE"`

	// Redis event publishing (optional).
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisChannel  string `envconfig:"REDIS_CHANNEL"`

	// S3-compatible artifact upload (optional; all-or-nothing).
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"osbench"`
	S3Region    string `envconfig:"S3_REGION"`
	S3UseSSL    bool   `envconfig:"S3_USE_SSL" default:"false"`
}

func isDev() bool {
	env := os.Getenv("ENVIRONMENT")
	return env == "" || env == "development"
}

func ValidateEnv() (*EnvConfig, error) {
	if isDev() {
		if err := godotenv.Load(); err != nil {
			log.Println("ℹ No .env file found")
		} else {
			log.Println("✓ Loaded .env file")
		}
	}

	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var errors []string

	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		errors = append(errors, "  ❌ BASE_URL must be a valid URL")
	}

	if cfg.S3Endpoint != "" && (cfg.S3AccessKey == "" || cfg.S3SecretKey == "") {
		errors = append(errors, "  ❌ S3_ACCESS_KEY and S3_SECRET_KEY are required when S3_ENDPOINT is set")
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return &cfg, nil
}

// ArtifactsEnabled reports whether S3 upload is configured.
func (c *EnvConfig) ArtifactsEnabled() bool {
	return c.S3Endpoint != ""
}

// RedisEnabled reports whether event publishing to Redis is configured.
func (c *EnvConfig) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func (c *EnvConfig) Print(fmtr func(string, ...interface{})) {
	fmtr("📋 Configuration:\n")
	fmtr("  Environment: %s\n", c.Environment)
	fmtr("  Port: %s\n", c.Port)
	fmtr("  Base URL: %s\n", c.BaseURL)
	fmtr("  Data dir: %s\n", c.DataDir)

	if c.DefaultImage != "" {
		fmtr("  Default image: %s\n", c.DefaultImage)
	}

	if c.RedisEnabled() {
		fmtr("  Redis events: ✓ Enabled (%s)\n", c.RedisAddr)
	} else {
		fmtr("  Redis events: ✗ Disabled\n")
	}

	if c.ArtifactsEnabled() {
		fmtr("  Artifact upload: ✓ Enabled (%s/%s)\n", c.S3Endpoint, c.S3Bucket)
		fmtr("    Access key: %s\n", MaskSecret(c.S3AccessKey))
	} else {
		fmtr("  Artifact upload: ✗ Disabled\n")
	}
}
