package builtin

import (
	"strings"
	"testing"
)

func TestRegistryTypes(t *testing.T) {
	got := strings.Join(Registry().Types(), ",")
	if got != "directory,mdns" {
		t.Errorf("Types() = %s", got)
	}
}
