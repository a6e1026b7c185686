package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the connection and behaviour settings of the alarm console.
type Config struct {
	// APIBaseURL is the base URL of the external alarm service (alarms, users, auth).
	APIBaseURL string `yaml:"api_url"`
	// SpeakerBaseURL is the base URL of the LAN server controlling the camera speaker.
	SpeakerBaseURL string `yaml:"speaker_url"`
	// PushURL is the Socket.IO server emitting live "new_alarm" events, as ws:// or
	// wss://. The /socket.io/ path is added when the URL does not name one.
	// Empty disables the push channel; the registry then relies on polling only.
	PushURL string `yaml:"push_url"`
	// SessionFile is the path of the JSON file keeping the login session between runs.
	SessionFile string `yaml:"session_file"`
	// Timeout bounds every remote call.
	Timeout time.Duration `yaml:"timeout"`
	// SessionTTL is the lifetime of a session measured from its last write.
	SessionTTL time.Duration `yaml:"session_ttl"`
	// PageSize is the fixed page size of paginated alarm fetches.
	PageSize int `yaml:"page_size"`
	// PollInterval is the period of the page-1 refresh in watch mode.
	PollInterval time.Duration `yaml:"poll_interval"`
	// HealthAddress is the gRPC health listen address of the watch daemon (optional).
	HealthAddress string `yaml:"health_addr"`
	// MetricsAddress is the Prometheus listen address of the watch daemon (optional).
	MetricsAddress string `yaml:"metrics_addr"`
	// LogLevel is the minimum zap level (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the default filename for console settings.
	DefaultConfigFilename = "alarm-console-settings.yaml"

	// DefaultSessionFilename is the default filename of the persisted session.
	DefaultSessionFilename = "alarm-console-session.json"

	// DefaultTimeout is the bound applied to every remote call.
	DefaultTimeout = 10 * time.Second

	// DefaultSessionTTL is the session lifetime after the last write.
	DefaultSessionTTL = 30 * time.Minute

	// DefaultPageSize is the number of alarms requested per page.
	DefaultPageSize = 10

	// DefaultPollInterval is the period of the active-partition refresh in watch mode.
	DefaultPollInterval = 15 * time.Second

	// DefaultFilePermissions is the permission of files written by the console.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errAPIURLRequired is returned when the alarm service URL is missing.
	errAPIURLRequired = errors.New("api_url must be provided")
	// errBadPageSize is returned for a negative page size.
	errBadPageSize = errors.New("page_size must be positive")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields, URL formats and listen addresses, and fills defaults.
//
//nolint:cyclop // Flat list of independent checks.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.APIBaseURL == "" {
		return errAPIURLRequired
	}

	if err := checkURL(settings.APIBaseURL, "http", "https"); err != nil {
		return fmt.Errorf("invalid api_url: %w", err)
	}

	if settings.SpeakerBaseURL != "" {
		if err := checkURL(settings.SpeakerBaseURL, "http", "https"); err != nil {
			return fmt.Errorf("invalid speaker_url: %w", err)
		}
	}

	if settings.PushURL != "" {
		if err := checkURL(settings.PushURL, "ws", "wss"); err != nil {
			return fmt.Errorf("invalid push_url: %w", err)
		}
	}

	for name, addr := range map[string]string{
		"health_addr":  settings.HealthAddress,
		"metrics_addr": settings.MetricsAddress,
	} {
		if addr == "" {
			continue
		}

		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if settings.PageSize < 0 {
		return errBadPageSize
	}

	applyDefaults(settings)

	return nil
}

// applyDefaults fills zero values with package defaults.
func applyDefaults(settings *Config) {
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.SessionTTL <= 0 {
		settings.SessionTTL = DefaultSessionTTL
	}

	if settings.PageSize == 0 {
		settings.PageSize = DefaultPageSize
	}

	if settings.PollInterval <= 0 {
		settings.PollInterval = DefaultPollInterval
	}

	if settings.SessionFile == "" {
		settings.SessionFile = DefaultSessionFilename
	}
}

// checkURL parses raw as an absolute URL with one of the allowed schemes.
func checkURL(raw string, schemes ...string) error {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return err
	}

	for _, scheme := range schemes {
		if u.Scheme == scheme {
			return nil
		}
	}

	return fmt.Errorf("unsupported scheme %q", u.Scheme)
}
