// Package plugin defines the probe-handler contract the responder engine
// dispatches to, together with the reference matching policy and the
// atomically swapped service directory the bundled plugins share.
//
// A plugin is selected by a configuration key through a Registry:
//
//	reg := builtin.Registry()
//	p, err := reg.New("directory", "printers")
//	if err != nil {
//	    return err
//	}
//	if err := p.Initialize("/etc/argo/printers.yaml"); err != nil {
//	    return err
//	}
//
// HandleProbe is called concurrently by the engine and must not block on
// I/O. Plugins with background work (reloading a file, browsing mDNS)
// also implement Runner and are supervised by the daemon.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/muurk/argo/internal/wire"
)

// Plugin answers probes from a local service directory.
type Plugin interface {
	// Name is the configured instance name.
	Name() string

	// Initialize loads the plugin's properties file. Failures are
	// *ConfigError and disable this plugin only.
	Initialize(propertiesPath string) error

	// HandleProbe returns the matching services, or an empty response.
	HandleProbe(p *wire.Probe) *wire.Response
}

// Runner is implemented by plugins that keep their directory current in the
// background. Serve blocks until ctx is done.
type Runner interface {
	Serve(ctx context.Context) error
}

// ConfigError reports a plugin that could not be initialized.
type ConfigError struct {
	Plugin  string
	Path    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("plugin %s", e.Plugin)
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s)", e.Path)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError checks if an error is (or wraps) a plugin config error
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Factory creates an uninitialized plugin with the given instance name.
type Factory func(name string) Plugin

// Registry maps plugin type names to constructors.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a constructor under typeName.
func (r *Registry) Register(typeName string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typeName] = f
}

// New constructs a plugin of typeName called name.
func (r *Registry) New(typeName, name string) (Plugin, error) {
	r.mu.RLock()
	f, ok := r.factories[typeName]
	r.mu.RUnlock()
	if !ok {
		return nil, &ConfigError{Plugin: name, Message: fmt.Sprintf("unknown plugin type %q (known: %v)", typeName, r.Types())}
	}
	return f(name), nil
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
