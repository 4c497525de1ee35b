package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// SwiftConfig contains the raw Swift connection settings as read from the
// environment. Precedence and defaults are resolved by the storage package.
type SwiftConfig struct {
	PreAuthURL   string `json:"preauth_url"`
	PreAuthToken string `json:"-"`

	Username string `json:"username"`
	Password string `json:"-"`
	AuthURL  string `json:"auth_url"`

	AuthVersion string `json:"auth_version"`
	SegmentSize int64  `json:"segment_size"`

	UserDomainName    string `json:"user_domain_name"`
	UserDomainID      string `json:"user_domain_id"`
	ProjectDomainName string `json:"project_domain_name"`
	ProjectDomainID   string `json:"project_domain_id"`
	TenantName        string `json:"tenant_name"`
	TenantID          string `json:"tenant_id"`
	EndpointType      string `json:"endpoint_type"`
	UserID            string `json:"user_id"`
	RegionName        string `json:"region_name"`
}

// MonitoringConfig contains monitoring and metrics settings
type MonitoringConfig struct {
	MetricsPort int `json:"metrics_port"`
}

// InventoryConfig controls the scheduled remote inventory
type InventoryConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level string `json:"level"`
}

// Log levels accepted by LOG_LEVEL
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

type Config struct {
	Swift      SwiftConfig
	Monitoring MonitoringConfig
	Inventory  InventoryConfig
	Log        LogConfig

	// Target is the default backend URL, e.g. swift://container/prefix
	Target string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Swift: SwiftConfig{
			PreAuthURL:        os.Getenv("SWIFT_PREAUTHURL"),
			PreAuthToken:      os.Getenv("SWIFT_PREAUTHTOKEN"),
			Username:          os.Getenv("SWIFT_USERNAME"),
			Password:          os.Getenv("SWIFT_PASSWORD"),
			AuthURL:           os.Getenv("SWIFT_AUTHURL"),
			AuthVersion:       os.Getenv("SWIFT_AUTHVERSION"),
			SegmentSize:       getEnvAsBytesWithDefault("SWIFT_SEGMENT_SIZE", 0),
			UserDomainName:    os.Getenv("SWIFT_USER_DOMAIN_NAME"),
			UserDomainID:      os.Getenv("SWIFT_USER_DOMAIN_ID"),
			ProjectDomainName: os.Getenv("SWIFT_PROJECT_DOMAIN_NAME"),
			ProjectDomainID:   os.Getenv("SWIFT_PROJECT_DOMAIN_ID"),
			TenantName:        os.Getenv("SWIFT_TENANTNAME"),
			TenantID:          os.Getenv("SWIFT_TENANTID"),
			EndpointType:      os.Getenv("SWIFT_ENDPOINT_TYPE"),
			UserID:            os.Getenv("SWIFT_USERID"),
			RegionName:        os.Getenv("SWIFT_REGIONNAME"),
		},
		Monitoring: MonitoringConfig{
			MetricsPort: getEnvAsIntWithDefault("METRICS_PORT", 9100),
		},
		Inventory: InventoryConfig{
			Enabled:  getEnvAsBoolWithDefault("INVENTORY_ENABLED", false),
			Schedule: getEnvWithDefault("INVENTORY_SCHEDULE", "0 * * * *"),
		},
		Log: LogConfig{
			Level: strings.ToLower(getEnvWithDefault("LOG_LEVEL", LevelInfo)),
		},
		Target: os.Getenv("DUPLY_TARGET"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks the ambient settings. Missing Swift credentials are
// reported by the storage package when the backend is opened.
func (c *Config) validate() error {
	var errors []error

	if c.Monitoring.MetricsPort < 0 || c.Monitoring.MetricsPort > 65535 {
		errors = append(errors, fmt.Errorf("invalid METRICS_PORT: %d", c.Monitoring.MetricsPort))
	}

	if c.Inventory.Enabled {
		if err := ParseCronSchedule(c.Inventory.Schedule); err != nil {
			errors = append(errors, fmt.Errorf("invalid INVENTORY_SCHEDULE: %v", err))
		}
	}

	if !isValidLevel(c.Log.Level) {
		errors = append(errors, fmt.Errorf("invalid LOG_LEVEL: %s", c.Log.Level))
	}

	if c.Swift.AuthURL != "" {
		if err := validateURL(c.Swift.AuthURL); err != nil {
			errors = append(errors, fmt.Errorf("invalid SWIFT_AUTHURL: %v", err))
		}
	}
	if c.Swift.PreAuthURL != "" {
		if err := validateURL(c.Swift.PreAuthURL); err != nil {
			errors = append(errors, fmt.Errorf("invalid SWIFT_PREAUTHURL: %v", err))
		}
	}

	return combineErrors(errors)
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	return nil
}

// Helper function to combine multiple errors
func combineErrors(errors []error) error {
	if len(errors) == 0 {
		return nil
	}
	return NewValidationError(errors)
}

// ValidationError represents multiple configuration validation errors
type ValidationError struct {
	Errors []error
}

// NewValidationError creates a new ValidationError
func NewValidationError(errors []error) *ValidationError {
	return &ValidationError{Errors: errors}
}

// Error implements the error interface
func (ve *ValidationError) Error() string {
	var errorMsgs []string
	errorMsgs = append(errorMsgs, "configuration validation failed:")
	for _, err := range ve.Errors {
		errorMsgs = append(errorMsgs, "  - "+err.Error())
	}
	return strings.Join(errorMsgs, "\n")
}

func isValidLevel(level string) bool {
	switch level {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return true
	}
	return false
}
