package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/argo/internal/ui"
	"github.com/muurk/argo/internal/wire"
)

// DefaultProbeWindow is how long the browser shows a probe as in flight.
const DefaultProbeWindow = 5 * time.Second

// Config wires the browser to a probe sender and a response listener.
type Config struct {
	// Probe sends one probe. It runs off the UI goroutine.
	Probe func(ctx context.Context) error

	// Responses delivers every response the listener accepts.
	Responses <-chan *wire.Response

	// Services returns the live cache contents, ordered by id.
	Services func() []wire.Service

	// Clear empties the cache before a fresh probe. Optional.
	Clear func()

	// ProbeWindow is how long a probe shows as in flight.
	ProbeWindow time.Duration
}

type probeStartMsg struct{}

type probeSentMsg struct {
	err error
}

type responseMsg struct {
	resp *wire.Response
}

type windowTickMsg time.Time

type view int

const (
	viewList view = iota
	viewDetail
)

type browseKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Probe  key.Binding
	Clear  key.Binding
	Back   key.Binding
	Quit   key.Binding
	Filter key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k browseKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Filter, k.Probe, k.Clear, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k browseKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Enter, k.Filter},
		{k.Probe, k.Clear, k.Quit},
	}
}

type detailKeyMap struct {
	Scroll key.Binding
	Back   key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k detailKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Scroll, k.Back, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k detailKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Scroll, k.Back, k.Quit}}
}

// serviceItem wraps a Service for bubbles/list
type serviceItem struct {
	service wire.Service
}

func (s serviceItem) FilterValue() string {
	return s.service.ID + " " + s.service.ServiceContractID + " " + s.service.ServiceName
}

func (s serviceItem) Title() string {
	if s.service.ServiceName != "" {
		return s.service.ServiceName
	}
	return s.service.ID
}

func (s serviceItem) Description() string {
	return s.service.ServiceContractID
}

// serviceDelegate renders a compact three-line card per service
type serviceDelegate struct{}

func (d serviceDelegate) Height() int { return 3 }

func (d serviceDelegate) Spacing() int { return 1 }

func (d serviceDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }

func (d serviceDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	si, ok := item.(serviceItem)
	if !ok {
		return
	}
	row := ui.ServiceRow(si.service)

	title := "  " + si.Title()
	if index == m.Index() {
		title = SelectedItemStyle.Render("→ " + si.Title())
	}
	badge := ui.ConsumabilityBadge(si.service.Consumability)

	lines := []string{
		title + "  " + badge,
		"    " + ui.ContractStyle.Render(row[1]),
		"    " + ui.URLStyle.Render(row[3]),
	}
	fmt.Fprint(w, strings.Join(lines, "\n"))
}

// BrowseModel lists the services found by probing.
type BrowseModel struct {
	config Config

	Probing    bool
	ProbeStart time.Time
	Responses  int
	Err        error

	view     view
	list     list.Model
	detail   viewport.Model
	spinner  spinner.Model
	bar      progress.Model
	help     help.Model
	keys     browseKeyMap
	dKeys    detailKeyMap
	Width    int
	Height   int
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewBrowseModel creates the browser. It probes as soon as it starts.
func NewBrowseModel(config Config) BrowseModel {
	if config.ProbeWindow <= 0 {
		config.ProbeWindow = DefaultProbeWindow
	}
	if config.Services == nil {
		config.Services = func() []wire.Service { return nil }
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	l := list.New(nil, serviceDelegate{}, 0, 0)
	l.Title = "Discovered Services"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.SetShowHelp(false)
	l.Styles.Title = TitleStyle

	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40

	ctx, cancel := context.WithCancel(context.Background())

	return BrowseModel{
		config:  config,
		list:    l,
		detail:  viewport.New(0, 0),
		spinner: s,
		bar:     bar,
		help:    help.New(),
		keys: browseKeyMap{
			Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
			Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
			Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "details")),
			Filter: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
			Probe:  key.NewBinding(key.WithKeys("p", "r"), key.WithHelp("p", "probe again")),
			Clear:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
			Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
			Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		},
		dKeys: detailKeyMap{
			Scroll: key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑/↓", "scroll")),
			Back:   key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
			Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		},
		Width:    MinTerminalWidth,
		Height:   24,
		ctx:      ctx,
		cancelFn: cancel,
	}
}

// Init starts the first probe and the response pump
func (m BrowseModel) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return probeStartMsg{} },
		m.waitForResponse(),
		m.spinner.Tick,
	)
}

// Services returns the services currently listed
func (m BrowseModel) Services() []wire.Service {
	items := m.list.Items()
	out := make([]wire.Service, 0, len(items))
	for _, it := range items {
		if si, ok := it.(serviceItem); ok {
			out = append(out, si.service)
		}
	}
	return out
}

// Update handles messages and updates the model
func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width, m.Height = msg.Width, msg.Height
		m.list.SetSize(msg.Width-6, msg.Height-10)
		m.detail.Width = msg.Width - 6
		m.detail.Height = msg.Height - 8
		return m, nil

	case probeStartMsg:
		if m.Probing {
			return m, nil
		}
		m.Probing = true
		m.ProbeStart = time.Now()
		m.Err = nil
		return m, tea.Batch(m.sendProbe(), tickWindow())

	case probeSentMsg:
		if msg.err != nil {
			m.Probing = false
			m.Err = msg.err
		}
		return m, nil

	case windowTickMsg:
		if !m.Probing {
			return m, nil
		}
		if time.Since(m.ProbeStart) >= m.config.ProbeWindow {
			m.Probing = false
			m.refresh()
			return m, nil
		}
		return m, tickWindow()

	case responseMsg:
		if msg.resp == nil {
			// subscription closed
			return m, nil
		}
		m.Responses++
		m.refresh()
		return m, m.waitForResponse()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.view == viewDetail {
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m BrowseModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// While filtering, every key belongs to the filter input
	if m.list.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancelFn()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Probe):
		return m, func() tea.Msg { return probeStartMsg{} }

	case key.Matches(msg, m.keys.Clear):
		if m.config.Clear != nil {
			m.config.Clear()
		}
		m.Responses = 0
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if it, ok := m.list.SelectedItem().(serviceItem); ok {
			m.view = viewDetail
			m.detail.SetContent(ui.RenderService(it.service, m.Width-6))
			m.detail.GotoTop()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m BrowseModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.dKeys.Quit):
		m.cancelFn()
		return m, tea.Quit
	case key.Matches(msg, m.dKeys.Back):
		m.view = viewList
		return m, nil
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

// refresh reloads the list from the cache, keeping the selection.
func (m *BrowseModel) refresh() {
	services := m.config.Services()
	items := make([]list.Item, len(services))
	for i, s := range services {
		items[i] = serviceItem{service: s}
	}
	idx := m.list.Index()
	m.list.SetItems(items)
	if idx < len(items) {
		m.list.Select(idx)
	}
}

func (m BrowseModel) sendProbe() tea.Cmd {
	probe := m.config.Probe
	ctx := m.ctx
	return func() tea.Msg {
		if probe == nil {
			return probeSentMsg{}
		}
		return probeSentMsg{err: probe(ctx)}
	}
}

func (m BrowseModel) waitForResponse() tea.Cmd {
	ch := m.config.Responses
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		return responseMsg{resp: <-ch}
	}
}

func tickWindow() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return windowTickMsg(t)
	})
}

// View renders the current screen
func (m BrowseModel) View() string {
	if m.view == viewDetail {
		return RenderApplicationContainer(m.detail.View(), m.status(), m.help.View(m.dKeys), m.Width, m.Height)
	}

	var b strings.Builder
	if m.Probing {
		elapsed := time.Since(m.ProbeStart)
		pct := float64(elapsed) / float64(m.config.ProbeWindow)
		if pct > 1 {
			pct = 1
		}
		b.WriteString(lipgloss.JoinVertical(lipgloss.Center,
			TitleStyle.Render(m.spinner.View()+" PROBING"),
			m.bar.ViewAs(pct),
		))
		b.WriteString("\n")
	}
	if m.Err != nil {
		b.WriteString(RenderError(fmt.Sprintf("Probe failed: %v", m.Err)))
		b.WriteString("\n")
	}

	if len(m.list.Items()) == 0 && !m.Probing {
		b.WriteString("\n  ")
		b.WriteString(WarningStyle.Render("⚠ No services have answered"))
		b.WriteString("\n\n")
		b.WriteString(SubtitleStyle.Render("  Press p to probe again. Responders must be able to reach this host's listener."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.list.View())
	}

	return RenderApplicationContainer(b.String(), m.status(), m.help.View(m.keys), m.Width, m.Height)
}

func (m BrowseModel) status() string {
	return fmt.Sprintf("%d services · %d responses", len(m.list.Items()), m.Responses)
}

// Run shows the browser until the user quits or ctx is done.
func Run(ctx context.Context, config Config) error {
	p := tea.NewProgram(NewBrowseModel(config), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
