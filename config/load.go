package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MEDCODER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load resolves configuration with precedence env > file > defaults. An empty
// path skips the file layer.
func Load(path string) (*Config, error) {
	v := newViperInstance()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	normalize(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration without consulting files or env.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg, viperDecoderOption())
	normalize(&cfg)
	return &cfg
}

func isConfigNotFoundError(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}

func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}

func normalize(cfg *Config) {
	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	cfg.Engine.Provider = strings.ToLower(strings.TrimSpace(cfg.Engine.Provider))
	cfg.Artifacts.Backend = strings.ToLower(strings.TrimSpace(cfg.Artifacts.Backend))
	cfg.Batch.Mode = strings.ToLower(strings.TrimSpace(cfg.Batch.Mode))
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
}
