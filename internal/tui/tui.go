// Package tui provides the Bubble Tea dashboard for live typing activity and
// the read-only viewer for exported files.
package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/typetrace/internal/export"
)

const (
	// DefaultRefresh is the live dashboard's statistics refresh period.
	DefaultRefresh = 2 * time.Second
	actionTimeout  = 5 * time.Second
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	loggingBadge = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82"))
	stoppedBadge = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))

	kindAdditionStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	kindDeletionStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	kindModificationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	barStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	// Inline diff
	diffAddStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Underline(true)
	diffDelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Strikethrough(true)
	diffSameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabOverview tabID = iota
	tabChanges
	tabCPS
	tabCount
)

var tabNames = [tabCount]string{"Overview", "Changes", "CPS"}

// ── Messages ────────────────────

type tickMsg time.Time

type snapshotMsg struct {
	snap Snapshot
	err  error
}

// actionMsg reports a key-triggered backend call and the state after it.
type actionMsg struct {
	note string
	snap *Snapshot
	err  error
}

// ── Model ────────────────────

// Model is the root Bubble Tea model.
type Model struct {
	backend Backend          // nil in viewer mode
	doc     *export.Document // set in viewer mode
	title   string
	refresh time.Duration

	snap Snapshot
	err  error
	note string

	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool

	// Changes tab: cursor over the newest-first list and expanded rows
	// keyed by capture time.
	cursor   int
	expanded map[time.Time]bool
}

// NewLive returns a dashboard that polls b every refresh.
func NewLive(b Backend, title string, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return Model{
		backend:  b,
		title:    title,
		refresh:  refresh,
		expanded: make(map[time.Time]bool),
	}
}

// NewViewer returns a read-only model for an exported document.
func NewViewer(doc *export.Document, filename string) Model {
	return Model{
		doc:      doc,
		title:    filepath.Base(filename),
		snap:     documentSnapshot(doc),
		expanded: make(map[time.Time]bool),
	}
}

func (m Model) live() bool { return m.backend != nil }

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd {
	if !m.live() {
		return nil
	}
	return m.fetch()
}

func (m Model) fetch() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		snap, err := b.Snapshot(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// act runs fn against the backend and re-reads the snapshot afterwards.
func (m Model) act(note string, fn func(context.Context, Backend) (string, error)) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		detail, err := fn(ctx, b)
		if err != nil {
			return actionMsg{err: err}
		}
		if detail != "" {
			note += " " + detail
		}
		msg := actionMsg{note: note}
		if snap, err := b.Snapshot(ctx); err == nil {
			msg.snap = &snap
		}
		return msg
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil

	case tickMsg:
		return m, m.fetch()

	case snapshotMsg:
		m.err = msg.err
		if msg.err == nil {
			m.setSnapshot(msg.snap)
		}
		return m, m.tick()

	case actionMsg:
		m.err = msg.err
		if msg.err == nil {
			m.note = msg.note
		}
		if msg.snap != nil {
			m.setSnapshot(*msg.snap)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab", "l", "right":
		m.activeTab = (m.activeTab + 1) % tabCount
		return m, nil
	case "shift+tab", "h", "left":
		m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		return m, nil
	case "1", "2", "3":
		m.activeTab = tabID(msg.String()[0] - '1')
		return m, nil
	case "s":
		if !m.live() {
			return m, nil
		}
		if m.snap.Stats.IsLogging {
			return m, m.act("logging stopped.", func(ctx context.Context, b Backend) (string, error) {
				return "", b.Stop(ctx)
			})
		}
		return m, m.act("logging started.", func(ctx context.Context, b Backend) (string, error) {
			return "", b.Start(ctx)
		})
	case "c":
		if !m.live() {
			return m, nil
		}
		return m, m.act("changes cleared.", func(ctx context.Context, b Backend) (string, error) {
			return "", b.Clear(ctx)
		})
	case "e":
		if !m.live() {
			return m, nil
		}
		return m, m.act("exported to", func(ctx context.Context, b Backend) (string, error) {
			return b.Export(ctx)
		})
	case "up", "k":
		if m.activeTab == tabChanges && m.cursor > 0 {
			m.cursor--
			m.rebuild(tabChanges)
			return m, nil
		}
	case "down", "j":
		if m.activeTab == tabChanges && m.cursor < len(m.snap.Changes)-1 {
			m.cursor++
			m.rebuild(tabChanges)
			return m, nil
		}
	case "enter", " ":
		if m.activeTab == tabChanges {
			if rec, ok := m.selected(); ok {
				if m.expanded[rec.Timestamp] {
					delete(m.expanded, rec.Timestamp)
				} else {
					m.expanded[rec.Timestamp] = true
				}
				m.rebuild(tabChanges)
			}
			return m, nil
		}
	}
	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
	return m, cmd
}

func (m *Model) setSnapshot(s Snapshot) {
	m.snap = s
	if m.cursor >= len(s.Changes) {
		m.cursor = max(0, len(s.Changes)-1)
	}
	if m.ready {
		for i := tabID(0); i < tabCount; i++ {
			m.rebuild(i)
		}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	// ── Row 1: title bar ──
	mode := "live"
	if !m.live() {
		mode = "viewer"
	}
	title := titleStyle.Width(m.width).Render("  typetrace  " + mode + "  " + m.title)

	// ── Row 2: tab bar ──
	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	// ── Row 3…N-1: scrollable content ──
	content := m.viewports[m.activeTab].View()

	// ── Row N: status / hint bar ──
	hint := "  ←/→ tab  ↑/↓ scroll  q quit"
	if m.live() {
		hint += "  s start/stop  c clear  e export"
	}
	if m.activeTab == tabChanges {
		hint += "  enter diff"
	}
	switch {
	case m.err != nil:
		hint += "  " + errorStyle.Render(m.err.Error())
	case m.note != "":
		hint += "  " + m.note
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(hint + strings.Repeat(" ", pad) + pct)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ──

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := max(1, m.height-3)
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) rebuild(t tabID) {
	m.viewports[t].SetContent(m.renderTab(t))
}

// Run starts a live dashboard over b.
func Run(b Backend, title string, refresh time.Duration) error {
	p := tea.NewProgram(NewLive(b, title, refresh), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RunViewer opens an exported document read-only.
func RunViewer(doc *export.Document, filename string) error {
	p := tea.NewProgram(NewViewer(doc, filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
