// Package directory answers probes from a static services file and reloads
// it when the file changes.
//
// Properties file (YAML):
//
//	servicesFile: printers.yaml   # relative to the properties file
//	reloadInterval: 30s           # 0 disables reloading
//
// Services file (YAML, or JSON when the name ends in .json):
//
//	services:
//	  - id: urn:example:printer:3rd-floor
//	    serviceContractID: urn:example:printer
//	    serviceName: 3rd floor laser
//	    consumability: HUMAN_CONSUMABLE
//	    ttl: 10
//	    accessPoints:
//	      - label: ipp
//	        url: ipp://10.0.3.20/printers/laser
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/muurk/argo/internal/config"
	"github.com/muurk/argo/internal/logging"
	"github.com/muurk/argo/internal/plugin"
	"github.com/muurk/argo/internal/wire"
)

// Name is the plugin type used in configuration.
const Name = "directory"

// Properties is the plugin's properties file.
type Properties struct {
	ServicesFile   string          `yaml:"servicesFile"`
	ReloadInterval config.Duration `yaml:"reloadInterval"`
}

// File is the services file layout.
type File struct {
	Services []wire.Service `yaml:"services" json:"services"`
}

// Plugin serves a file-backed directory.
type Plugin struct {
	name string
	dir  *plugin.Directory

	mu       sync.Mutex
	path     string
	interval time.Duration
	modTime  time.Time
	size     int64
}

// New creates an uninitialized plugin.
func New(name string) *Plugin {
	return &Plugin{name: name, dir: plugin.NewDirectory()}
}

// Register adds the directory plugin to r.
func Register(r *plugin.Registry) {
	r.Register(Name, func(name string) plugin.Plugin { return New(name) })
}

// Name returns the configured instance name.
func (p *Plugin) Name() string { return p.name }

// Initialize reads the properties and loads the first generation. A
// services file that cannot be loaded at startup is a config error.
func (p *Plugin) Initialize(propertiesPath string) error {
	var props Properties
	if err := config.LoadYAMLFile(propertiesPath, &props); err != nil {
		return &plugin.ConfigError{Plugin: p.name, Path: propertiesPath, Message: "cannot read properties", Err: err}
	}
	if props.ServicesFile == "" {
		return &plugin.ConfigError{Plugin: p.name, Path: propertiesPath, Message: "servicesFile is required"}
	}
	if props.ReloadInterval.Duration < 0 {
		return &plugin.ConfigError{Plugin: p.name, Path: propertiesPath, Message: "reloadInterval must not be negative"}
	}

	path := props.ServicesFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(propertiesPath), path)
	}

	p.mu.Lock()
	p.path = path
	p.interval = props.ReloadInterval.Duration
	p.mu.Unlock()

	if _, err := p.Reload(); err != nil {
		return &plugin.ConfigError{Plugin: p.name, Path: path, Message: "cannot load services", Err: err}
	}
	return nil
}

// HandleProbe matches against the current generation.
func (p *Plugin) HandleProbe(probe *wire.Probe) *wire.Response {
	return p.dir.Respond(probe)
}

// Services returns the current generation.
func (p *Plugin) Services() []wire.Service {
	return p.dir.Services()
}

// Serve reloads the services file whenever its modification time or size
// changes.
func (p *Plugin) Serve(ctx context.Context) error {
	p.mu.Lock()
	interval := p.interval
	p.mu.Unlock()

	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.Reload(); err != nil {
				logging.Warn("Directory reload failed, keeping previous services",
					zap.String("plugin", p.name),
					zap.Error(err))
			}
		}
	}
}

// Reload loads the services file if it changed since the last load and
// publishes it as a new generation. It reports whether a swap happened. On
// error the current generation is kept.
func (p *Plugin) Reload() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	info, err := os.Stat(p.path)
	if err != nil {
		return false, fmt.Errorf("failed to stat services file: %w", err)
	}
	if !p.modTime.IsZero() && info.ModTime().Equal(p.modTime) && info.Size() == p.size {
		return false, nil
	}

	services, err := LoadServices(p.path)
	if err != nil {
		return false, err
	}
	p.dir.Swap(services)
	p.modTime = info.ModTime()
	p.size = info.Size()

	logging.Info("Directory loaded",
		zap.String("plugin", p.name),
		zap.String("path", p.path),
		zap.Int("services", len(services)))
	return true, nil
}

// LoadServices reads and validates a services file.
func LoadServices(path string) ([]wire.Service, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read services file: %w", err)
	}

	var f File
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &f)
	} else {
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse services file: %w", err)
	}

	for i := range f.Services {
		s := &f.Services[i]
		c, err := wire.ParseConsumability(string(s.Consumability))
		if err != nil {
			return nil, fmt.Errorf("services[%d]: %w", i, err)
		}
		s.Consumability = c
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("services[%d]: %w", i, err)
		}
	}
	return f.Services, nil
}

var (
	_ plugin.Plugin = (*Plugin)(nil)
	_ plugin.Runner = (*Plugin)(nil)
)
