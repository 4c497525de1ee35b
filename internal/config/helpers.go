package config

import (
	"os"
	"strconv"
	"strings"
)

func getEnvWithDefault(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

// getEnvAsBytesWithDefault reads a byte count such as "524288000", "512M"
// or "1G". Suffixes are powers of 1024.
func getEnvAsBytesWithDefault(key string, defaultVal int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultVal
	}
	if n, ok := parseByteSize(value); ok {
		return n
	}
	return defaultVal
}

func parseByteSize(value string) (int64, bool) {
	multiplier := int64(1)
	upper := strings.TrimSuffix(strings.ToUpper(value), "B")
	if upper == "" {
		return 0, false
	}
	switch upper[len(upper)-1] {
	case 'K':
		multiplier = 1 << 10
	case 'M':
		multiplier = 1 << 20
	case 'G':
		multiplier = 1 << 30
	}
	if multiplier > 1 {
		upper = upper[:len(upper)-1]
	}

	n, err := strconv.ParseInt(upper, 10, 64)
	if err != nil || n > (1<<62)/multiplier {
		return 0, false
	}
	return n * multiplier, true
}

func getEnvAsBoolWithDefault(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultVal
}

func getEnvAsIntWithDefault(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}
