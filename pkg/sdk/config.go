// Package sdk is the client side of the osbench API: configuration
// loading for the CLI and a thin typed HTTP client.
package sdk

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds client-side settings. Each load gets its own viper
// instance; there is no package-level configuration state.
type Config struct {
	BaseURL string `mapstructure:"baseUrl"`

	v *viper.Viper
}

const (
	EnvPrefix  = "OSBENCH"
	baseURLKey = "baseUrl"
)

// LoadConfig reads configuration from the given file, or from
// osbench.yaml in the working directory, with OSBENCH_* environment
// variables taking precedence.
func LoadConfig(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	} else {
		for _, name := range []string{"osbench.yaml", "osbench.yml", ".osbench.yaml"} {
			if _, err := os.Stat(name); err == nil {
				v.SetConfigFile(name)
				if err := v.ReadInConfig(); err == nil {
					break
				}
			}
		}
	}

	if v.IsSet(baseURLKey) {
		v.Set(baseURLKey, strings.TrimRight(v.GetString(baseURLKey), "/"))
	} else {
		v.SetDefault(baseURLKey, "http://localhost:3000")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.v = v
	return &cfg, nil
}

// Viper returns the underlying viper instance, useful for flag binding.
func (c *Config) Viper() *viper.Viper {
	return c.v
}
