package builtin

import (
	"strings"
	"testing"
)

func TestRegistryNames(t *testing.T) {
	got := strings.Join(Registry().Names(), ",")
	if got != "amqp,multicast,redis" {
		t.Errorf("Names() = %s", got)
	}
}
