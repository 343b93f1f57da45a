package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leadblacktech/datasets/pkg/dserrors"
)

// Load reads an EngineConfig from a YAML file. Values of the form
// ${VAR_NAME} are substituted from the environment before parsing, which
// keeps credentials out of checked-in files.
func Load(filePath string) (*EngineConfig, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path is caller-controlled
	if err != nil {
		return nil, dserrors.Wrap(err, dserrors.ErrorTypeConfig, "failed to read config file")
	}

	content := substituteEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, dserrors.Wrap(err, dserrors.ErrorTypeConfig, "failed to parse YAML")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a configuration to a YAML file.
func Save(filePath string, cfg *EngineConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return dserrors.Wrap(err, dserrors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil { //nolint:gosec
		return dserrors.Wrap(err, dserrors.ErrorTypeConfig, "failed to write config file")
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		varName := content[start+2 : end]
		envValue := os.Getenv(varName)
		content = content[:start] + envValue + content[end+1:]
	}
	return content
}
