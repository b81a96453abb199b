// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/avtoolkit/encodarr/internal/validation"
)

// Sentinel error kinds surfaced by the loader.
var (
	ErrRead  = errors.New("config read failed")
	ErrParse = errors.New("config parse failed")
)

// ValidationError reports that a loaded config failed validation.
type ValidationError struct {
	Result *validation.Result
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed with %d error(s)", e.Result.ErrorCount())
}

// Load reads and parses the configuration file without validating it.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRead, path, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadAndValidate loads the configuration and runs all validation
// layers against the detected capabilities. Warnings are logged;
// errors reject the config.
func LoadAndValidate(path string, caps *validation.Capabilities) (*AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	result := ValidateConfig(cfg, caps)
	logger := logValidation()
	for _, w := range result.Warnings() {
		logger.Warn().
			Str("path", w.Path).
			Str("suggestion", w.Suggestion).
			Msg(w.Message)
	}

	if result.ErrorCount() > 0 {
		return nil, &ValidationError{Result: result}
	}

	return cfg, nil
}
