package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/muurk/argo/internal/config"
	"github.com/muurk/argo/internal/daemon"
	"github.com/muurk/argo/internal/logging"
	pluginbuiltin "github.com/muurk/argo/internal/plugin/builtin"
	"github.com/muurk/argo/internal/plugin/directory"
	transportbuiltin "github.com/muurk/argo/internal/transport/builtin"
	"github.com/muurk/argo/internal/ui"
	"github.com/muurk/argo/internal/version"
	"github.com/muurk/argo/internal/wire"
)

var configTips = []string{
	"Run 'argod init' to write a starter configuration",
	"Run 'argod check' to validate the file before starting",
	"Run 'argod plugins' to list the transport and plugin types",
}

// resolveConfigPath returns --config or the default location.
func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

// runCmd starts the daemon
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the responder daemon",
	Long: `Start the responder daemon and answer probes until interrupted.

Every enabled transport gets its own supervised receiver; a receiver that
fails is restarted with backoff unless its configuration is invalid. Plugins
that fail to load are logged and skipped.`,
	Example: `  # Run with the default config file
  argod run

  # Run with a specific config and debug logging
  argod run --config /etc/argo/argod.yaml --log-level debug`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if level == "" {
		level = "info"
	}
	if err := logging.Initialize(level); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logging.Sync()

	printer := ui.NewPrinter(cmd.OutOrStdout())
	printer.PrintHeader("Responder Daemon", "argod run",
		ui.Param{Key: "Config", Value: path},
		ui.Param{Key: "Transports", Value: transportSummary(cfg)},
		ui.Param{Key: "Plugins", Value: pluginSummary(cfg)},
		ui.Param{Key: "Metrics", Value: valueOr(cfg.MetricsAddr, "disabled")},
		ui.Param{Key: "Log Level", Value: level},
	)

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}
	if len(d.Plugins()) == 0 {
		logging.Warn("No plugins loaded, probes will be received but never answered")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.Info("argod starting", zap.String("version", version.Version), zap.String("config", path))
	if err := d.Run(ctx); err != nil {
		return fmt.Errorf("daemon failed: %w", err)
	}
	logging.Info("argod stopped")
	return nil
}

// initCmd writes a starter configuration
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration",
	Long: `Write a starter argod.yaml with one multicast receiver and the directory
plugin, plus an example directory properties file and services file next to
it. Existing files are only replaced after confirmation or with --force.`,
	Example: `  # Write to the default config directory
  argod init

  # Write somewhere else without prompting
  argod init --config ./argod.yaml --force`,
	RunE: runInit,
}

var forceInit bool

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files without asking")
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printer := ui.NewPrinter(out)

	if !forceInit && exists(path) && !ui.ConfirmOverwrite(cmd.InOrStdin(), out, path) {
		printer.PrintWarning("Nothing written", ui.Param{Key: "Config", Value: path})
		return nil
	}

	cfg := config.NewDaemon()
	dir := filepath.Dir(path)
	propsPath := filepath.Join(dir, "directory.yaml")
	servicesPath := filepath.Join(dir, "services.yaml")
	for i := range cfg.Plugins {
		if cfg.Plugins[i].PluginType() == directory.Name {
			cfg.Plugins[i].Properties = propsPath
		}
	}

	if err := cfg.Save(path); err != nil {
		printer.PrintError("Init failed", err, nil)
		return err
	}
	details := []ui.Param{{Key: "Config", Value: path}}

	written, err := writeIfAbsent(propsPath, directory.Properties{
		ServicesFile:   filepath.Base(servicesPath),
		ReloadInterval: config.NewDuration(30 * time.Second),
	})
	if err != nil {
		printer.PrintError("Init failed", err, nil)
		return err
	}
	if written {
		details = append(details, ui.Param{Key: "Directory", Value: propsPath})
	}

	written, err = writeIfAbsent(servicesPath, directory.File{Services: []wire.Service{exampleService()}})
	if err != nil {
		printer.PrintError("Init failed", err, nil)
		return err
	}
	if written {
		details = append(details, ui.Param{Key: "Services", Value: servicesPath})
	}

	printer.PrintSuccess("Configuration written", details...)
	printer.Println("Edit " + servicesPath + " to publish your services, then run 'argod run'.")
	return nil
}

func exampleService() wire.Service {
	return wire.Service{
		ID:                "urn:example:printer:lobby",
		ServiceContractID: "urn:example:printer",
		ServiceName:       "Lobby printer",
		Description:       "Colour laser by the front desk",
		Consumability:     wire.HumanConsumable,
		TTLMinutes:        10,
		AccessPoints: []wire.AccessPoint{
			{Label: "ipp", URL: "ipp://192.0.2.10/printers/lobby"},
		},
	}
}

// writeIfAbsent marshals v to path unless the file already exists.
func writeIfAbsent(path string, v any) (bool, error) {
	if exists(path) {
		return false, nil
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}

// checkCmd validates the configuration
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and load plugins",
	Long: `Load and validate argod.yaml, then initialize every enabled plugin the
same way 'argod run' would. Nothing is bound and no probes are answered.`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := logging.Initialize(valueOr(logLevel, "warn")); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logging.Sync()

	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	printer := ui.NewPrinter(cmd.OutOrStdout())

	cfg, err := config.Load(configPath)
	if err != nil {
		printer.PrintError("Invalid configuration", err, configTips)
		return err
	}
	d, err := daemon.New(cfg)
	if err != nil {
		printer.PrintError("Invalid configuration", err, configTips)
		return err
	}

	var loaded []string
	for _, p := range d.Plugins() {
		loaded = append(loaded, p.Name())
	}
	details := []ui.Param{
		{Key: "Config", Value: path},
		{Key: "Transports", Value: transportSummary(cfg)},
		{Key: "Plugins", Value: valueOr(strings.Join(loaded, ", "), "none")},
	}
	if len(loaded) < enabledPlugins(cfg) {
		printer.PrintWarning("Some plugins failed to load, see the log above", details...)
		return nil
	}
	printer.PrintSuccess("Configuration OK", details...)
	return nil
}

// pluginsCmd lists the available types
var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List transport and plugin types",
	Run: func(cmd *cobra.Command, args []string) {
		printer := ui.NewPrinter(cmd.OutOrStdout())
		printer.PrintSuccess("Built-in types",
			ui.Param{Key: "Transports", Value: strings.Join(transportbuiltin.Registry().Names(), ", ")},
			ui.Param{Key: "Plugins", Value: strings.Join(pluginbuiltin.Registry().Types(), ", ")},
		)
	},
}

func transportSummary(cfg *config.Daemon) string {
	var parts []string
	for _, t := range cfg.Transports {
		if t.Disabled {
			continue
		}
		parts = append(parts, t.Name+" ("+t.Type+")")
	}
	return valueOr(strings.Join(parts, ", "), "none")
}

func pluginSummary(cfg *config.Daemon) string {
	var parts []string
	for _, p := range cfg.Plugins {
		if !p.Disabled {
			parts = append(parts, p.Name)
		}
	}
	return valueOr(strings.Join(parts, ", "), "none")
}

func enabledPlugins(cfg *config.Daemon) int {
	n := 0
	for _, p := range cfg.Plugins {
		if !p.Disabled {
			n++
		}
	}
	return n
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
