package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr            string   `json:"addr" yaml:"addr" toml:"addr"`
	ModelName       string   `json:"model_name" yaml:"model_name" toml:"model_name"`
	RegistryBackend string   `json:"registry_backend" yaml:"registry_backend" toml:"registry_backend"`
	MLflowURI       string   `json:"mlflow_uri" yaml:"mlflow_uri" toml:"mlflow_uri"`
	RegistryTimeout int      `json:"registry_timeout_sec" yaml:"registry_timeout_sec" toml:"registry_timeout_sec"`
	SignalPath      string   `json:"signal_path" yaml:"signal_path" toml:"signal_path"`
	PollInterval    int      `json:"poll_interval_sec" yaml:"poll_interval_sec" toml:"poll_interval_sec"`
	JobCommand      []string `json:"job_command" yaml:"job_command" toml:"job_command"`
	JobTimeout      int      `json:"job_timeout_sec" yaml:"job_timeout_sec" toml:"job_timeout_sec"`
	CORSEnabled     bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins     []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	LogLevel        string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	MaxBodyBytes    int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
