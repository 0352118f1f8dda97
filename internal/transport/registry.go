package transport

import (
	"fmt"
	"sort"
	"sync"
)

// SenderFactory creates an uninitialized Sender.
type SenderFactory func() Sender

// ReceiverFactory creates an uninitialized Receiver.
type ReceiverFactory func() Receiver

// Registry maps configuration type names to transport constructors.
type Registry struct {
	mu        sync.RWMutex
	senders   map[string]SenderFactory
	receivers map[string]ReceiverFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		senders:   make(map[string]SenderFactory),
		receivers: make(map[string]ReceiverFactory),
	}
}

// RegisterSender adds a sender constructor under name.
func (r *Registry) RegisterSender(name string, f SenderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[name] = f
}

// RegisterReceiver adds a receiver constructor under name.
func (r *Registry) RegisterReceiver(name string, f ReceiverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receivers[name] = f
}

// NewSender constructs the named sender without initializing it.
func (r *Registry) NewSender(name string) (Sender, error) {
	r.mu.RLock()
	f, ok := r.senders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &ConfigError{Transport: name, Key: "type", Message: fmt.Sprintf("no sender registered (known: %v)", r.Names())}
	}
	return f(), nil
}

// NewReceiver constructs the named receiver without initializing it.
func (r *Registry) NewReceiver(name string) (Receiver, error) {
	r.mu.RLock()
	f, ok := r.receivers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &ConfigError{Transport: name, Key: "type", Message: fmt.Sprintf("no receiver registered (known: %v)", r.Names())}
	}
	return f(), nil
}

// Names returns every registered type name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for n := range r.senders {
		seen[n] = struct{}{}
	}
	for n := range r.receivers {
		seen[n] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
