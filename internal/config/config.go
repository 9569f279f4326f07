// Package config loads engine configuration from file, environment and
// flags via viper. Environment variables use the ASTER_ prefix with
// underscores for nesting, e.g. ASTER_MODEL_API_KEY.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	Workspace string          `mapstructure:"workspace"`
	BlobDir   string          `mapstructure:"blob_dir"`
	StatePath string          `mapstructure:"state_path"`
	Model     ModelConfig     `mapstructure:"model"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ModelConfig describes the upstream model endpoint.
type ModelConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Name        string  `mapstructure:"name"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// EngineConfig bounds the task loop.
type EngineConfig struct {
	MaxSteps     int           `mapstructure:"max_steps"`
	WallClock    time.Duration `mapstructure:"wall_clock"`
	ToolTimeout  time.Duration `mapstructure:"tool_timeout"`
	HITLTimeout  time.Duration `mapstructure:"hitl_timeout"`
	SystemPrompt string        `mapstructure:"system_prompt"`
}

// ToolsConfig points at the optional catalogue manifest.
type ToolsConfig struct {
	ManifestPath string `mapstructure:"manifest_path"`
}

// TelemetryConfig controls tracing export.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Insecure     bool   `mapstructure:"insecure"`
}

// Load reads configuration from the given file path (optional), the
// current directory's aster.yaml, and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("workspace", ".")
	v.SetDefault("blob_dir", "data/blobs")
	v.SetDefault("state_path", "data/state.json")
	v.SetDefault("model.base_url", "https://api.openai.com/v1")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.name", "gpt-4o-mini")
	v.SetDefault("model.temperature", 0.2)
	v.SetDefault("engine.max_steps", 25)
	v.SetDefault("engine.wall_clock", 10*time.Minute)
	v.SetDefault("engine.tool_timeout", 60*time.Second)
	v.SetDefault("engine.hitl_timeout", 30*time.Minute)
	v.SetDefault("telemetry.enabled", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("aster")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/aster")
	}

	v.SetEnvPrefix("ASTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
