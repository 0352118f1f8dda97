// Package builtin assembles the registry of plugins shipped with Argo.
package builtin

import (
	"github.com/muurk/argo/internal/plugin"
	"github.com/muurk/argo/internal/plugin/directory"
	"github.com/muurk/argo/internal/plugin/mdns"
)

// Registry returns a registry with the directory and mdns plugins.
func Registry() *plugin.Registry {
	r := plugin.NewRegistry()
	directory.Register(r)
	mdns.Register(r)
	return r
}
