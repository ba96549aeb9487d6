package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/sitepipe/internal/errors"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/validation"
)

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	var problems []string

	if err := validateServerConfig(&config.Server); err != nil {
		problems = append(problems, "server: "+err.Error())
	}

	for key, path := range config.Paths.roles() {
		if err := validation.ValidatePath(path); err != nil {
			problems = append(problems, fmt.Sprintf("paths.%s: %v", key, err))
		}
	}
	if strings.ContainsRune(config.Paths.Src.SassEntry, filepath.Separator) {
		problems = append(problems, "paths.src.sass_entry: must be a file name inside paths.src.sass")
	}

	if strings.TrimSpace(config.Tools.Sass) == "" {
		problems = append(problems, "tools.sass: command is empty")
	}
	if strings.TrimSpace(config.Tools.Tailwind) == "" {
		problems = append(problems, "tools.tailwind: command is empty")
	}
	if config.Lint.Enabled && strings.TrimSpace(config.Tools.Lint) == "" {
		problems = append(problems, "tools.lint: command is empty while lint is enabled")
	}

	if config.Watch.Debounce < 0 {
		problems = append(problems, fmt.Sprintf("watch.debounce: %s is negative", config.Watch.Debounce))
	}

	if _, err := logging.ParseLevel(config.Log.Level); err != nil {
		problems = append(problems, "log.level: "+err.Error())
	}

	switch config.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format: %q is not one of text, json", config.Log.Format))
	}

	if config.Build.StateDir != "" {
		if err := validation.ValidatePath(config.Build.StateDir); err != nil {
			problems = append(problems, "build.state_dir: "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid configuration: "+strings.Join(problems, "; "))
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	return validation.ValidateHost(config.Host)
}
