package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"chatguard/internal/constants"
	"chatguard/internal/models"
	"chatguard/internal/security"
)

var (
	ErrMissingDBPath        = models.ConfigError{Message: "missing database path"}
	ErrMissingClassifierURL = models.ConfigError{Message: "missing classifier base URL"}
)

// LoadConfig reads the JSON configuration file, applies environment
// overrides and validates the result. Missing required configuration is
// fatal to startup by contract, so validation errors are returned rather
// than defaulted away.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}
	if c.Classifier.BaseURL == "" {
		return ErrMissingClassifierURL
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Classifier.TimeoutSec <= 0 {
		c.Classifier.TimeoutSec = constants.DefaultClassifierTimeoutSec
	}
	if c.Database.ReconnectDelaySec <= 0 {
		c.Database.ReconnectDelaySec = constants.DefaultReconnectDelaySec
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if path := os.Getenv("CHATGUARD_DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if url := os.Getenv("CLASSIFIER_URL"); url != "" {
		c.Classifier.BaseURL = url
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
}
