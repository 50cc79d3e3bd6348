package ui

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"

	"github.com/cwarden/afisha/internal/afisha"
	"github.com/cwarden/afisha/internal/config"
	"github.com/cwarden/afisha/internal/listing"
	"github.com/cwarden/afisha/internal/parser"
)

type ViewMode int

const (
	ViewList ViewMode = iota
	ViewFilter
	ViewGotoDate
	ViewHelp
)

const messageTimeout = 3 * time.Second

type Model struct {
	// Core components
	config *config.Config
	ctrl   *listing.Controller
	parser *parser.DateParser
	logger *slog.Logger
	ctx    context.Context
	watch  <-chan afisha.ChangeEvent

	// Initial request, issued from Init
	initial listing.Request

	// View state
	mode     ViewMode
	cursor   int // index into the filtered items
	offset   int // first visible body line
	messages listing.Messages

	// UI state
	width      int
	height     int
	message    string
	messageSeq int

	// Input state shared by the filter and date prompts
	inputBuffer string
	cursorPos   int
	prevFilter  string

	// Styles
	styles Styles
}

type Options struct {
	Clock  clockwork.Clock
	Logger *slog.Logger
	// Watch delivers source changes; each one restarts the listing.
	Watch <-chan afisha.ChangeEvent
	// Date is the initially selected day.
	Date afisha.Date
	// Filter is the initial title filter.
	Filter string
}

type Styles struct {
	Normal   lipgloss.Style
	Selected lipgloss.Style
	Header   lipgloss.Style
	Date     lipgloss.Style
	Time     lipgloss.Style
	Help     lipgloss.Style
	Footer   lipgloss.Style
	Loading  lipgloss.Style
	Error    lipgloss.Style
	Prompt   lipgloss.Style
	Message  lipgloss.Style
}

func NewModel(ctx context.Context, cfg *config.Config, ctrl *listing.Controller, opts Options) *Model {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	m := &Model{
		config:   cfg,
		ctrl:     ctrl,
		parser:   parser.NewDateParser(opts.Clock),
		logger:   opts.Logger,
		ctx:      ctx,
		watch:    opts.Watch,
		mode:     ViewList,
		messages: ctrl.Locale().Messages(),
		styles:   StylesFromConfig(cfg),
	}

	ctrl.SetFilter(opts.Filter)
	m.initial = ctrl.SetDate(opts.Date)
	return m
}

func DefaultStyles() Styles {
	return StylesFromConfig(config.DefaultConfig())
}

// StylesFromConfig builds the styles from the configured colors. A color of
// "default" leaves the terminal's foreground alone.
func StylesFromConfig(cfg *config.Config) Styles {
	fg := func(element string) lipgloss.Style {
		s := lipgloss.NewStyle()
		if c, ok := cfg.Colors[element]; ok && c != "" && c != "default" {
			s = s.Foreground(lipgloss.Color(c))
		}
		return s
	}

	return Styles{
		Normal: fg("title"),
		Selected: fg("title").
			Reverse(true),
		Header: fg("header").
			Bold(true),
		Date: fg("date").
			Bold(true).
			Underline(true),
		Time:   fg("time"),
		Help:   fg("status"),
		Footer: fg("footer").Italic(true),
		Loading: fg("loading").
			Italic(true),
		Error:  fg("error").Bold(true),
		Prompt: fg("prompt").Bold(true),
		Message: fg("prompt").
			Padding(0, 1),
	}
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.fetchCmd(m.initial)}
	if m.watch != nil {
		cmds = append(cmds, waitForChange(m.watch))
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, m.syncAnchor()

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case pageLoadedMsg:
		if m.ctrl.Apply(msg.result) {
			m.clampCursor()
		}
		return m, m.syncAnchor()

	case sourceChangedMsg:
		m.logger.Info("source changed", "path", msg.event.Path)
		cmds := []tea.Cmd{waitForChange(m.watch)}
		if m.config.AutoRefresh {
			m.cursor, m.offset = 0, 0
			cmds = append(cmds, m.fetchCmd(m.ctrl.Refresh()))
			cmds = append(cmds, m.showMessage("Source changed, reloading"))
		}
		return m, tea.Batch(cmds...)

	case messageTimeoutMsg:
		if msg.seq == m.messageSeq {
			m.message = ""
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return m.messages.Loading
	}

	switch m.mode {
	case ViewHelp:
		return m.viewHelp()
	default:
		return m.viewList()
	}
}

func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, m.quit()
	}

	switch m.mode {
	case ViewFilter:
		return m.handleFilterKeys(msg)
	case ViewGotoDate:
		return m.handleDateKeys(msg)
	case ViewHelp:
		// any key returns to the list
		m.mode = ViewList
		return m, nil
	}

	return m.handleListKeys(msg)
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.config.Action(msg.String()) {
	case "quit":
		return m, m.quit()

	case "help":
		m.mode = ViewHelp
		return m, nil

	case "filter":
		m.mode = ViewFilter
		m.prevFilter = m.ctrl.Filter()
		m.setInput(m.prevFilter)
		return m, nil

	case "goto_date":
		m.mode = ViewGotoDate
		m.setInput(m.ctrl.Date().String())
		return m, nil

	case "today":
		return m, m.selectDate(m.mustParse("today"))

	case "tomorrow":
		return m, m.selectDate(m.mustParse("tomorrow"))

	case "reset":
		m.cursor, m.offset = 0, 0
		return m, tea.Batch(m.fetchCmd(m.ctrl.Clear()), m.showMessage("Filters cleared"))

	case "refresh":
		m.cursor, m.offset = 0, 0
		return m, tea.Batch(m.fetchCmd(m.ctrl.Refresh()), m.showMessage("Refreshing"))

	case "down":
		m.moveCursor(1)
	case "up":
		m.moveCursor(-1)
	case "page_down":
		m.moveCursor(m.bodyHeight())
	case "page_up":
		m.moveCursor(-m.bodyHeight())
	case "top":
		m.moveCursor(-m.cursor)
	case "bottom":
		m.moveCursor(len(listing.Flatten(m.ctrl.View().Groups)))
	}

	return m, m.syncAnchor()
}

// handleFilterKeys edits the filter in place; every keystroke re-filters.
func (m *Model) handleFilterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.ctrl.SetFilter(m.prevFilter)
		m.mode = ViewList
		m.clampCursor()
		return m, m.syncAnchor()

	case tea.KeyEnter:
		m.mode = ViewList
		return m, m.syncAnchor()
	}

	if m.editInput(msg) {
		m.ctrl.SetFilter(m.inputBuffer)
		m.cursor, m.offset = 0, 0
	}
	return m, m.syncAnchor()
}

func (m *Model) handleDateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEscape:
		m.mode = ViewList
		return m, nil

	case tea.KeyEnter:
		m.mode = ViewList
		date, err := m.parser.Parse(m.inputBuffer)
		if err != nil {
			return m, m.showMessage(fmt.Sprintf("Parse error: %v", err))
		}
		return m, m.selectDate(date)
	}

	m.editInput(msg)
	return m, nil
}

// editInput applies line editing keys to the input buffer and reports
// whether the text changed.
func (m *Model) editInput(msg tea.KeyMsg) bool {
	runes := []rune(m.inputBuffer)

	switch msg.Type {
	case tea.KeyBackspace:
		if m.cursorPos > 0 {
			runes = append(runes[:m.cursorPos-1], runes[m.cursorPos:]...)
			m.cursorPos--
			m.inputBuffer = string(runes)
			return true
		}

	case tea.KeyDelete:
		if m.cursorPos < len(runes) {
			runes = append(runes[:m.cursorPos], runes[m.cursorPos+1:]...)
			m.inputBuffer = string(runes)
			return true
		}

	case tea.KeyLeft:
		if m.cursorPos > 0 {
			m.cursorPos--
		}

	case tea.KeyRight:
		if m.cursorPos < len(runes) {
			m.cursorPos++
		}

	case tea.KeyHome, tea.KeyCtrlA:
		m.cursorPos = 0

	case tea.KeyEnd, tea.KeyCtrlE:
		m.cursorPos = len(runes)

	case tea.KeyCtrlU:
		m.inputBuffer = string(runes[m.cursorPos:])
		m.cursorPos = 0
		return true

	case tea.KeySpace:
		return m.insertRunes([]rune{' '})

	case tea.KeyRunes:
		return m.insertRunes(msg.Runes)
	}

	return false
}

func (m *Model) insertRunes(in []rune) bool {
	runes := []rune(m.inputBuffer)
	out := make([]rune, 0, len(runes)+len(in))
	out = append(out, runes[:m.cursorPos]...)
	out = append(out, in...)
	out = append(out, runes[m.cursorPos:]...)
	m.inputBuffer = string(out)
	m.cursorPos += len(in)
	return true
}

func (m *Model) setInput(s string) {
	m.inputBuffer = s
	m.cursorPos = len([]rune(s))
}

func (m *Model) selectDate(date afisha.Date) tea.Cmd {
	m.cursor, m.offset = 0, 0
	label := m.messages.AllDates
	if !date.IsZero() {
		label = m.ctrl.Locale().FormatDate(date)
	}
	return tea.Batch(
		m.fetchCmd(m.ctrl.SetDate(date)),
		m.showMessage(fmt.Sprintf("%s: %s", m.messages.DateLabel, label)),
	)
}

func (m *Model) mustParse(input string) afisha.Date {
	date, err := m.parser.Parse(input)
	if err != nil {
		m.logger.Error("date parse failed", "input", input, "error", err)
	}
	return date
}

func (m *Model) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
}

func (m *Model) clampCursor() {
	n := m.ctrl.View().Shown
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// syncAnchor lays the listing out for the current viewport and tells the
// controller whether the anchor item is on screen. A returned command fetches
// the next page.
func (m *Model) syncAnchor() tea.Cmd {
	if m.height == 0 || m.mode == ViewHelp {
		return nil
	}

	v := m.ctrl.View()
	lines := m.layout(v)
	m.scrollToCursor(lines)

	visible := false
	if id, ok := v.Anchor(); ok {
		if idx := anchorLine(lines, id); idx >= 0 {
			visible = idx >= m.offset && idx < m.offset+m.bodyHeight()
		}
	}

	req, ok := m.ctrl.AnchorVisible(visible)
	if !ok {
		return nil
	}
	return m.fetchCmd(req)
}

func (m *Model) fetchCmd(req listing.Request) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return pageLoadedMsg{result: ctrl.Fetch(ctx, req)}
	}
}

func (m *Model) quit() tea.Cmd {
	m.ctrl.Close()
	return tea.Quit
}

func (m *Model) showMessage(msg string) tea.Cmd {
	m.message = msg
	m.messageSeq++
	seq := m.messageSeq
	return tea.Tick(messageTimeout, func(time.Time) tea.Msg {
		return messageTimeoutMsg{seq: seq}
	})
}

func waitForChange(ch <-chan afisha.ChangeEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return sourceChangedMsg{event: event}
	}
}

// Message types
type pageLoadedMsg struct {
	result listing.Result
}

type sourceChangedMsg struct {
	event afisha.ChangeEvent
}

type messageTimeoutMsg struct {
	seq int
}
