// Package util holds small helpers for reading configuration from the environment.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv reads a boolean toggle from the environment. It accepts
// true/1/yes/on and false/0/no/off case-insensitively; unset or unrecognized
// values fall back to def with a warning.
func ParseBoolEnv(key string, def bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		slog.Warn("Ignoring unrecognized boolean environment value", "key", key, "value", val, "default", def)
		return def
	}
}
