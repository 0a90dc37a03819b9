package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/axget/internal/domain/release"
)

// Config holds the settings of a download run.
type Config struct {
	// OutputDir is where archives are written and the release folder is created.
	OutputDir string `yaml:"output_dir"`
	// BrandFile is an optional logo copied into the extracted release.
	BrandFile string `yaml:"brand_file"`
	// Owner is the service account receiving ownership of the extracted tree.
	Owner string `yaml:"owner"`
	// Group is the group receiving ownership; defaults to Owner.
	Group string `yaml:"group"`
	// ConnectTimeout bounds dialing and waiting for response headers.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// DownloadTimeout bounds a whole request including the body transfer.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	// ServletProcesses are executable names that indicate a running servlet container.
	ServletProcesses []string `yaml:"servlet_processes"`
	// URLs overrides the upstream download locations.
	URLs release.Templates `yaml:"urls"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

const (
	// DefaultConfigFilename is the settings file looked up when --config is not given.
	DefaultConfigFilename = "axget-settings.yaml"

	// DefaultBrandFile is used only when it exists in the working directory.
	DefaultBrandFile = "branding_logo.png"

	// DefaultOwner is the conventional servlet container account.
	DefaultOwner = "tomcat"

	// DefaultConnectTimeout limits connection setup and time to first byte.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultDownloadTimeout limits a complete archive transfer.
	DefaultDownloadTimeout = 30 * time.Minute

	// DefaultLogLevel is the level used when none is configured.
	DefaultLogLevel = "info"

	// DefaultFilePermissions is the mode of a saved settings file.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errTimeoutOrder is returned when the connect timeout exceeds the download timeout.
	errTimeoutOrder = errors.New("connect_timeout must not exceed download_timeout")
	// errBadOwner is returned for account names containing separators.
	errBadOwner = errors.New("owner and group must be plain account names")
)

// DefaultServletProcesses lists executables of common servlet containers.
func DefaultServletProcesses() []string {
	return []string{"tomcat", "tomcat9", "tomcat10", "catalina.sh", "jetty"}
}

// Default returns a Config with every field at its default.
func Default() *Config {
	cfg := new(Config)

	// Validate only fills defaults on an empty config.
	_ = Validate(cfg)

	return cfg
}

// Load reads settings from path. When path is the default filename and the
// file does not exist, defaults are returned instead of an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && filepath.Clean(path) == DefaultConfigFilename {
			return Default(), nil
		}

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

// Save writes settings to path.
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

// Validate fills defaults and checks the settings for consistency.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.OutputDir == "" {
		settings.OutputDir = "."
	}

	if settings.BrandFile == "" {
		settings.BrandFile = DefaultBrandFile
	}

	if settings.Owner == "" {
		settings.Owner = DefaultOwner
	}

	if settings.Group == "" {
		settings.Group = settings.Owner
	}

	if strings.ContainsAny(settings.Owner, ":/ ") || strings.ContainsAny(settings.Group, ":/ ") {
		return fmt.Errorf("%w: %q:%q", errBadOwner, settings.Owner, settings.Group)
	}

	if settings.ConnectTimeout <= 0 {
		settings.ConnectTimeout = DefaultConnectTimeout
	}

	if settings.DownloadTimeout <= 0 {
		settings.DownloadTimeout = DefaultDownloadTimeout
	}

	if settings.ConnectTimeout > settings.DownloadTimeout {
		return errTimeoutOrder
	}

	if len(settings.ServletProcesses) == 0 {
		settings.ServletProcesses = DefaultServletProcesses()
	}

	if settings.LogLevel == "" {
		settings.LogLevel = DefaultLogLevel
	}

	settings.URLs = settings.URLs.WithDefaults()

	if err := settings.URLs.Validate(); err != nil {
		return fmt.Errorf("invalid urls: %w", err)
	}

	return nil
}
