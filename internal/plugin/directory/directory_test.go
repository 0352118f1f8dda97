package directory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muurk/argo/internal/plugin"
	"github.com/muurk/argo/internal/wire"
)

const servicesYAML = `
services:
  - id: urn:example:printer:1
    serviceContractID: urn:example:printer
    serviceName: Laser
    consumability: human_consumable
    ttl: 10
    accessPoints:
      - label: ipp
        url: ipp://10.0.3.20/printers/laser
  - id: urn:example:scanner:1
    serviceContractID: urn:example:scanner
    consumability: MACHINE_CONSUMABLE
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func setup(t *testing.T, services string, reload string) (props string, servicesPath string) {
	t.Helper()
	dir := t.TempDir()
	servicesPath = filepath.Join(dir, "services.yaml")
	writeFile(t, servicesPath, services)
	props = filepath.Join(dir, "directory.yaml")
	writeFile(t, props, "servicesFile: services.yaml\nreloadInterval: "+reload+"\n")
	return props, servicesPath
}

func TestInitializeLoadsServices(t *testing.T) {
	props, _ := setup(t, servicesYAML, "0")

	p := New("printers")
	if err := p.Initialize(props); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	services := p.Services()
	if len(services) != 2 {
		t.Fatalf("Services() = %d entries, want 2", len(services))
	}
	if services[0].Consumability != wire.HumanConsumable {
		t.Errorf("consumability = %q, want normalized HUMAN_CONSUMABLE", services[0].Consumability)
	}

	probe, _ := wire.NewProbe(wire.WithServiceContractIDs("urn:example:scanner"))
	resp := p.HandleProbe(probe)
	if resp.Len() != 1 || resp.Services()[0].ID != "urn:example:scanner:1" {
		t.Errorf("HandleProbe() = %+v", resp.Services())
	}
}

func TestInitializeErrors(t *testing.T) {
	dir := t.TempDir()
	noFile := filepath.Join(dir, "nofile.yaml")
	writeFile(t, noFile, "reloadInterval: 1s\n")
	missing := filepath.Join(dir, "missing.yaml")
	writeFile(t, missing, "servicesFile: does-not-exist.yaml\n")
	badService := filepath.Join(dir, "bad.yaml")
	writeFile(t, badService, "servicesFile: bad-services.yaml\n")
	writeFile(t, filepath.Join(dir, "bad-services.yaml"), "services:\n  - id: x\n    consumability: HUMAN_CONSUMABLE\n")

	tests := []struct {
		name string
		path string
	}{
		{name: "properties file missing", path: filepath.Join(dir, "absent.yaml")},
		{name: "servicesFile not set", path: noFile},
		{name: "services file missing", path: missing},
		{name: "service without contract", path: badService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New("d").Initialize(tt.path)
			if !plugin.IsConfigError(err) {
				t.Errorf("Initialize() error = %v, want ConfigError", err)
			}
		})
	}
}

func TestReloadKeepsGenerationOnError(t *testing.T) {
	props, servicesPath := setup(t, servicesYAML, "0")
	p := New("printers")
	if err := p.Initialize(props); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	swapped, err := p.Reload()
	if err != nil || swapped {
		t.Fatalf("Reload() of unchanged file = %v, %v", swapped, err)
	}

	writeFile(t, servicesPath, "services: [not: valid")
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(servicesPath, future, future); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Reload(); err == nil {
		t.Fatal("Reload() of broken file succeeded")
	}
	if len(p.Services()) != 2 {
		t.Errorf("failed reload replaced the directory: %d services", len(p.Services()))
	}

	writeFile(t, servicesPath, "services:\n  - id: only\n    serviceContractID: c\n    consumability: MACHINE_CONSUMABLE\n")
	later := future.Add(time.Hour)
	if err := os.Chtimes(servicesPath, later, later); err != nil {
		t.Fatal(err)
	}
	swapped, err = p.Reload()
	if err != nil || !swapped {
		t.Fatalf("Reload() = %v, %v", swapped, err)
	}
	if got := p.Services(); len(got) != 1 || got[0].ID != "only" {
		t.Errorf("Services() after reload = %+v", got)
	}
}

func TestReloadSeesSizeChangeWithSameModTime(t *testing.T) {
	props, servicesPath := setup(t, servicesYAML, "0")
	p := New("printers")
	if err := p.Initialize(props); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	info, err := os.Stat(servicesPath)
	if err != nil {
		t.Fatal(err)
	}

	writeFile(t, servicesPath, "services:\n  - id: only\n    serviceContractID: c\n    consumability: MACHINE_CONSUMABLE\n")
	if err := os.Chtimes(servicesPath, info.ModTime(), info.ModTime()); err != nil {
		t.Fatal(err)
	}

	swapped, err := p.Reload()
	if err != nil || !swapped {
		t.Fatalf("Reload() = %v, %v, want a swap", swapped, err)
	}
	if got := p.Services(); len(got) != 1 || got[0].ID != "only" {
		t.Errorf("Services() after reload = %+v", got)
	}
}

func TestLoadServicesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.json")
	writeFile(t, path, `{"services":[{"id":"a","serviceContractID":"c","consumability":"MACHINE_CONSUMABLE","ttl":0,
		"accessPoints":[{"label":"http","ipAddress":"10.0.0.5","port":8080}]}]}`)

	services, err := LoadServices(path)
	if err != nil {
		t.Fatalf("LoadServices() error = %v", err)
	}
	if len(services) != 1 || services[0].AccessPoints[0].Port != 8080 {
		t.Errorf("LoadServices() = %+v", services)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	props, _ := setup(t, servicesYAML, "10ms")
	p := New("printers")
	if err := p.Initialize(props); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
