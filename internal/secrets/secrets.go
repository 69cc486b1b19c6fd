package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Get retrieves a secret value. A KEY_FILE env var pointing at a file (the
// Docker secrets pattern) takes precedence over the KEY env var itself.
func Get(envKey, defaultValue string) (string, error) {
	if filePath := os.Getenv(envKey + "_FILE"); filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("read secret file %s: %w", filePath, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if value := os.Getenv(envKey); value != "" {
		return value, nil
	}
	return defaultValue, nil
}

// GetOptional retrieves a secret with a default value, never fails.
func GetOptional(envKey, defaultValue string) string {
	value, err := Get(envKey, defaultValue)
	if err != nil {
		return defaultValue
	}
	return value
}
