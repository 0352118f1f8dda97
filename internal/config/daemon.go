package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "argo"
	configFile = "argod.yaml"

	// CurrentVersion is the only configuration version understood.
	CurrentVersion = 1
)

// Mutex for thread-safe file operations
var fileMutex sync.Mutex

// Daemon is the argod configuration file.
type Daemon struct {
	Version       int         `yaml:"version"`
	LogLevel      string      `yaml:"logLevel,omitempty"`
	MetricsAddr   string      `yaml:"metricsAddr,omitempty"` // empty disables /metrics and /stats
	StatsInterval Duration    `yaml:"statsInterval,omitempty"`
	Responder     Responder   `yaml:"responder"`
	Transports    []Transport `yaml:"transports"`
	Plugins       []Plugin    `yaml:"plugins"`
}

// Responder tunes probe dispatch and response delivery.
type Responder struct {
	Workers                 int      `yaml:"workers"`                      // 0 dispatches inline on the receive goroutine
	QueueSize               int      `yaml:"queueSize"`                    // probes buffered for the worker pool
	MaxProbesPerSecond      float64  `yaml:"maxProbesPerSecond,omitempty"` // 0 disables rate limiting
	DeliveryTimeout         Duration `yaml:"deliveryTimeout"`
	MaxConcurrentDeliveries int      `yaml:"maxConcurrentDeliveries"`
}

// Transport configures one receiver transport.
type Transport struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Disabled   bool              `yaml:"disabled,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// Plugin configures one probe-handler plugin.
type Plugin struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type,omitempty"`       // registry key, defaults to Name
	Properties string `yaml:"properties,omitempty"` // path to the plugin's YAML properties file
	Disabled   bool   `yaml:"disabled,omitempty"`
}

// PluginType returns the registry key for the plugin.
func (p Plugin) PluginType() string {
	if p.Type != "" {
		return p.Type
	}
	return p.Name
}

// Defaults
const (
	DefaultWorkers                 = 4
	DefaultQueueSize               = 64
	DefaultDeliveryTimeout         = 5 * time.Second
	DefaultMaxConcurrentDeliveries = 8
	DefaultStatsInterval           = time.Minute
)

// NewDaemon returns a configuration with a single multicast receiver and
// the directory plugin.
func NewDaemon() *Daemon {
	dir, err := GetConfigDir()
	if err != nil {
		dir = "."
	}
	return &Daemon{
		Version:       CurrentVersion,
		LogLevel:      "info",
		StatsInterval: NewDuration(DefaultStatsInterval),
		Responder: Responder{
			Workers:                 DefaultWorkers,
			QueueSize:               DefaultQueueSize,
			DeliveryTimeout:         NewDuration(DefaultDeliveryTimeout),
			MaxConcurrentDeliveries: DefaultMaxConcurrentDeliveries,
		},
		Transports: []Transport{
			{
				Name: "lan",
				Type: "multicast",
				Properties: map[string]string{
					"multicastAddress": "230.0.0.1",
					"multicastPort":    "4003",
				},
			},
		},
		Plugins: []Plugin{
			{Name: "directory", Properties: filepath.Join(dir, "directory.yaml")},
		},
	}
}

// applyDefaults fills zero values left out of a loaded file.
func (d *Daemon) applyDefaults() {
	if d.Responder.QueueSize == 0 {
		d.Responder.QueueSize = DefaultQueueSize
	}
	if d.Responder.DeliveryTimeout.Duration == 0 {
		d.Responder.DeliveryTimeout = NewDuration(DefaultDeliveryTimeout)
	}
	if d.Responder.MaxConcurrentDeliveries == 0 {
		d.Responder.MaxConcurrentDeliveries = DefaultMaxConcurrentDeliveries
	}
	if d.StatsInterval.Duration == 0 {
		d.StatsInterval = NewDuration(DefaultStatsInterval)
	}
}

// ValidationError reports an invalid configuration value.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks the configuration for values the daemon cannot run with.
func (d *Daemon) Validate() error {
	var errs []error
	if d.Version != CurrentVersion {
		errs = append(errs, &ValidationError{Field: "version", Message: fmt.Sprintf("unsupported config version: %d (expected %d)", d.Version, CurrentVersion)})
	}
	if d.Responder.Workers < 0 {
		errs = append(errs, &ValidationError{Field: "responder.workers", Message: "must not be negative"})
	}
	if d.Responder.QueueSize < 0 {
		errs = append(errs, &ValidationError{Field: "responder.queueSize", Message: "must not be negative"})
	}
	if d.Responder.MaxProbesPerSecond < 0 {
		errs = append(errs, &ValidationError{Field: "responder.maxProbesPerSecond", Message: "must not be negative"})
	}
	if d.Responder.DeliveryTimeout.Duration < 0 {
		errs = append(errs, &ValidationError{Field: "responder.deliveryTimeout", Message: "must not be negative"})
	}

	names := make(map[string]bool)
	for i, t := range d.Transports {
		field := fmt.Sprintf("transports[%d]", i)
		if t.Name == "" {
			errs = append(errs, &ValidationError{Field: field + ".name", Message: "required"})
		} else if names[t.Name] {
			errs = append(errs, &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate transport name %q", t.Name)})
		}
		names[t.Name] = true
		if t.Type == "" {
			errs = append(errs, &ValidationError{Field: field + ".type", Message: "required"})
		}
	}

	plugins := make(map[string]bool)
	for i, p := range d.Plugins {
		field := fmt.Sprintf("plugins[%d]", i)
		if p.Name == "" {
			errs = append(errs, &ValidationError{Field: field + ".name", Message: "required"})
		} else if plugins[p.Name] {
			errs = append(errs, &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate plugin name %q", p.Name)})
		}
		plugins[p.Name] = true
	}
	return errors.Join(errs...)
}

// GetConfigDir returns the OS-appropriate configuration directory for the application.
// This follows platform conventions:
//   - Linux: $XDG_CONFIG_HOME/argo or $HOME/.config/argo
//   - macOS: $HOME/.config/argo (following XDG convention on macOS)
//   - Windows: %LOCALAPPDATA%\argo
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			return filepath.Join(xdgConfigHome, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the default path of the daemon configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads the configuration at path, or at GetConfigPath when path is
// empty. A missing file at the default location yields NewDaemon; a missing
// explicit path is an error.
func Load(path string) (*Daemon, error) {
	explicit := path != ""
	if !explicit {
		p, err := GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return NewDaemon(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration document.
func Parse(data []byte) (*Daemon, error) {
	var d Daemon
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	d.applyDefaults()
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Save writes the configuration to path, or to GetConfigPath when path is
// empty. The write is atomic.
func (d *Daemon) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	// Create directory with user-only permissions (0700)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Argo responder daemon configuration
#
# transports: receivers that listen for probes (multicast, amqp, redis)
# plugins:    probe handlers that answer them (directory, mdns)
#
# Location: ` + path + `

`)
	data = append(header, data...)

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// LoadYAMLFile decodes a YAML file into v, rejecting unknown keys. Plugins
// use it for their properties files.
func LoadYAMLFile(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
