package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from path on top of Default, expands ${VAR}
// references, applies environment overrides and validates the result. An empty
// path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		//nolint:gosec // Config file path is controlled by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := decode(path, []byte(os.ExpandEnv(string(data))), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		resolveModulePaths(cfg, filepath.Dir(path))
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

// resolveModulePaths makes relative policy module and TLS file paths relative
// to the directory holding the config file.
func resolveModulePaths(cfg *Config, dir string) {
	for i, module := range cfg.Policy.Modules {
		cfg.Policy.Modules[i] = resolvePath(dir, module)
	}
	cfg.Server.TLS.CertFile = resolvePath(dir, cfg.Server.TLS.CertFile)
	cfg.Server.TLS.KeyFile = resolvePath(dir, cfg.Server.TLS.KeyFile)
}

func resolvePath(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
