package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/argo/internal/wire"
)

type fakeCache struct {
	mu       sync.Mutex
	services []wire.Service
}

func (c *fakeCache) Values() []wire.Service {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]wire.Service(nil), c.services...)
}

func (c *fakeCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services = nil
}

func update(t *testing.T, m BrowseModel, msg tea.Msg) (BrowseModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	bm, ok := next.(BrowseModel)
	if !ok {
		t.Fatalf("Update() returned %T", next)
	}
	return bm, cmd
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testServices() []wire.Service {
	return []wire.Service{
		{ID: "a", ServiceContractID: "urn:example:printer", ServiceName: "Laser", Consumability: wire.HumanConsumable,
			AccessPoints: []wire.AccessPoint{{URL: "ipp://10.0.0.2/laser"}}},
		{ID: "b", ServiceContractID: "urn:example:scanner", Consumability: wire.MachineConsumable},
	}
}

func TestBrowseResponsesRefreshList(t *testing.T) {
	c := &fakeCache{}
	m := NewBrowseModel(Config{Services: c.Values, Responses: make(chan *wire.Response)})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	c.services = testServices()
	m, cmd := update(t, m, responseMsg{resp: wire.NewResponse("p", c.services)})
	if cmd == nil {
		t.Error("response did not re-arm the subscription")
	}
	if m.Responses != 1 {
		t.Errorf("Responses = %d, want 1", m.Responses)
	}
	if got := m.Services(); len(got) != 2 || got[0].ID != "a" {
		t.Errorf("Services() = %+v", got)
	}

	view := m.View()
	for _, w := range []string{"Laser", "urn:example:scanner", "2 services"} {
		if !strings.Contains(view, w) {
			t.Errorf("View() missing %q", w)
		}
	}
}

func TestBrowseClosedSubscription(t *testing.T) {
	m := NewBrowseModel(Config{Responses: make(chan *wire.Response)})
	m, cmd := update(t, m, responseMsg{})
	if cmd != nil {
		t.Error("closed subscription was re-armed")
	}
	if m.Responses != 0 {
		t.Errorf("Responses = %d", m.Responses)
	}
}

func TestBrowseProbeLifecycle(t *testing.T) {
	probeErr := errors.New("no route to host")
	var calls int
	m := NewBrowseModel(Config{
		Probe: func(context.Context) error {
			calls++
			return probeErr
		},
		ProbeWindow: time.Millisecond,
	})

	m, cmd := update(t, m, probeStartMsg{})
	if !m.Probing || cmd == nil {
		t.Fatalf("probe did not start: probing=%v", m.Probing)
	}

	// a second start while in flight is ignored
	m, cmd = update(t, m, probeStartMsg{})
	if cmd != nil {
		t.Error("second probe started while one is in flight")
	}

	msg := m.sendProbe()()
	if calls != 1 {
		t.Errorf("probe called %d times, want 1", calls)
	}
	m, _ = update(t, m, msg)
	if m.Probing || !errors.Is(m.Err, probeErr) {
		t.Errorf("after failed send: probing=%v err=%v", m.Probing, m.Err)
	}
	if !strings.Contains(m.View(), "no route to host") {
		t.Error("View() does not show the probe error")
	}
}

func TestBrowseWindowCloses(t *testing.T) {
	c := &fakeCache{services: testServices()}
	m := NewBrowseModel(Config{Services: c.Values, ProbeWindow: time.Millisecond})
	m, _ = update(t, m, probeStartMsg{})
	time.Sleep(5 * time.Millisecond)

	m, cmd := update(t, m, windowTickMsg(time.Now()))
	if m.Probing || cmd != nil {
		t.Errorf("window did not close: probing=%v", m.Probing)
	}
	if len(m.Services()) != 2 {
		t.Errorf("list not refreshed at window close: %d services", len(m.Services()))
	}
}

func TestBrowseDetailAndClear(t *testing.T) {
	c := &fakeCache{services: testServices()}
	m := NewBrowseModel(Config{Services: c.Values, Clear: c.Clear})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
	m.refresh()

	m, _ = update(t, m, keyPress("enter"))
	if m.view != viewDetail {
		t.Fatal("enter did not open the detail view")
	}
	if !strings.Contains(m.View(), "ipp://10.0.0.2/laser") {
		t.Error("detail view does not show the access point")
	}

	m, _ = update(t, m, keyPress("esc"))
	if m.view != viewList {
		t.Fatal("esc did not return to the list")
	}

	m, _ = update(t, m, keyPress("c"))
	if len(m.Services()) != 0 || len(c.Values()) != 0 {
		t.Errorf("clear left %d listed, %d cached", len(m.Services()), len(c.Values()))
	}
	if !strings.Contains(m.View(), "No services have answered") {
		t.Error("empty view missing hint")
	}
}

func TestBrowseQuit(t *testing.T) {
	m := NewBrowseModel(Config{})
	m, cmd := update(t, m, keyPress("q"))
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
	if m.ctx.Err() == nil {
		t.Error("quit did not cancel in-flight probes")
	}
}
