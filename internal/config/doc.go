// Package config loads and saves the argod daemon configuration.
//
// The configuration is a YAML file that lists the receiver transports to
// run, the probe-handler plugins to load and the responder tuning knobs.
// The file follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/argo/argod.yaml or $HOME/.config/argo/argod.yaml
//   - macOS: $HOME/.config/argo/argod.yaml
//   - Windows: %LOCALAPPDATA%\argo\argod.yaml
//
// # Example
//
//	version: 1
//	logLevel: info
//	metricsAddr: ":9105"
//	responder:
//	  workers: 4
//	  queueSize: 64
//	  deliveryTimeout: 5s
//	transports:
//	  - name: lan
//	    type: multicast
//	    properties:
//	      multicastAddress: 230.0.0.1
//	      multicastPort: "4003"
//	      networkInterfaceName: eth0,wlan0
//	plugins:
//	  - name: directory
//	    properties: /etc/argo/directory.yaml
//
// Property values may contain ${ni:eth0:ipv4:sitelocal} style tokens; the
// daemon expands them before handing the properties to a transport.
//
// Saving writes a temporary file and renames it over the target, so a crash
// never leaves a truncated configuration behind.
package config
