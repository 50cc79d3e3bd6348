package ui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"

	"github.com/cwarden/afisha/internal/afisha"
	"github.com/cwarden/afisha/internal/config"
	"github.com/cwarden/afisha/internal/listing"
)

// season returns n performances six hours apart starting 2024-05-01 10:00 UTC,
// four per day.
func season(n int) []afisha.Performance {
	titles := []string{"Гамлет", "Чайка", "Вишнёвый сад"}
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	items := make([]afisha.Performance, n)
	for i := range items {
		items[i] = afisha.Performance{
			ID:       i + 1,
			StartsAt: start.Add(time.Duration(i) * 6 * time.Hour),
			Play: &afisha.Play{
				ID:    i%len(titles) + 1,
				Title: titles[i%len(titles)],
				Poster: &afisha.Media{
					URL: "/uploads/poster.jpg",
					Formats: map[string]afisha.MediaFormat{
						"thumbnail": {URL: "/uploads/thumbnail_poster.jpg"},
					},
				},
			},
		}
	}
	return items
}

type failingSource struct{}

func (failingSource) FetchPage(ctx context.Context, q afisha.Query, page int) (afisha.Page, error) {
	return afisha.Page{}, &afisha.TransportError{URL: "http://cms.local/api/performances", StatusCode: 502, Err: errors.New("bad gateway")}
}

func newTestModel(t *testing.T, src afisha.Source, width, height int) *Model {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2024, 4, 30, 12, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctrl, err := listing.New(listing.Config{
		Source: src,
		Logger: logger,
		Clock:  clock,
	})
	if err != nil {
		t.Fatalf("listing.New: %v", err)
	}

	cfg := config.DefaultConfig()
	m := NewModel(context.Background(), cfg, ctrl, Options{Clock: clock, Logger: logger})
	m.parser.SetLocation(time.UTC)

	m.Update(tea.WindowSizeMsg{Width: width, Height: height})
	drive(m, m.Init())
	return m
}

// runCmd executes cmd and any batched commands. Commands that block, such as
// ticks and watchers, are abandoned.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}

	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	select {
	case msg := <-done:
		if batch, ok := msg.(tea.BatchMsg); ok {
			var out []tea.Msg
			for _, c := range batch {
				out = append(out, runCmd(c)...)
			}
			return out
		}
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// drive feeds page results back into the model until no fetch is pending.
func drive(m *Model, cmd tea.Cmd) {
	for _, msg := range runCmd(cmd) {
		if _, ok := msg.(pageLoadedMsg); ok {
			_, next := m.Update(msg)
			drive(m, next)
		}
	}
}

func press(m *Model, key string) tea.Cmd {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEscape}
	case "end":
		msg = tea.KeyMsg{Type: tea.KeyEnd}
	case "backspace":
		msg = tea.KeyMsg{Type: tea.KeyBackspace}
	case "ctrl+u":
		msg = tea.KeyMsg{Type: tea.KeyCtrlU}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	_, cmd := m.Update(msg)
	return cmd
}

func typeText(m *Model, text string) {
	for _, r := range text {
		press(m, string(r))
	}
}

func TestShortScreenLoadsOnScroll(t *testing.T) {
	m := newTestModel(t, afisha.NewStore(season(25)), 80, 10)

	if got := m.ctrl.View().Loaded; got != 10 {
		t.Fatalf("Expected first page only, got %d items", got)
	}

	tests := []struct {
		loaded  int
		hasMore bool
	}{
		{20, true},
		{25, false},
	}

	for _, tt := range tests {
		cmd := press(m, "end")
		if cmd == nil {
			t.Fatalf("Expected a fetch when the last item scrolls into view")
		}
		drive(m, cmd)

		v := m.ctrl.View()
		if v.Loaded != tt.loaded || v.HasMore != tt.hasMore {
			t.Errorf("Got loaded=%d hasMore=%v, want %d/%v", v.Loaded, v.HasMore, tt.loaded, tt.hasMore)
		}
	}

	if cmd := press(m, "end"); cmd != nil {
		t.Error("No fetch expected once the collection is exhausted")
	}
}

func TestTallScreenFillsItself(t *testing.T) {
	m := newTestModel(t, afisha.NewStore(season(25)), 80, 100)

	v := m.ctrl.View()
	if v.Loaded != 25 {
		t.Errorf("Expected all pages to load on a tall screen, got %d", v.Loaded)
	}
	if v.State != listing.Exhausted {
		t.Errorf("Expected exhausted state, got %v", v.State)
	}

	out := m.View()
	for _, want := range []string{"Афиша", "1 мая 2024 г.", "10:00", "Гамлет", "Больше нет представлений."} {
		if !strings.Contains(out, want) {
			t.Errorf("View missing %q", want)
		}
	}
}

func TestFilterMode(t *testing.T) {
	m := newTestModel(t, afisha.NewStore(season(9)), 80, 40)

	press(m, "/")
	if m.mode != ViewFilter {
		t.Fatalf("Expected filter mode, got %v", m.mode)
	}

	typeText(m, "чай")
	if got := m.ctrl.Filter(); got != "чай" {
		t.Errorf("Filter should follow typing, got %q", got)
	}
	if got := m.ctrl.View().Shown; got != 3 {
		t.Errorf("Expected 3 matches, got %d", got)
	}

	press(m, "enter")
	if m.mode != ViewList {
		t.Errorf("Enter should return to the list")
	}
	if !strings.Contains(m.View(), "Фильтр: чай") {
		t.Errorf("Bar should show the active filter")
	}

	press(m, "/")
	press(m, "backspace")
	press(m, "esc")
	if got := m.ctrl.Filter(); got != "чай" {
		t.Errorf("Escape should restore the previous filter, got %q", got)
	}

	press(m, "/")
	press(m, "ctrl+u")
	typeText(m, "ничего")
	press(m, "enter")
	if !strings.Contains(m.View(), "Представления по вашему запросу не найдены.") {
		t.Errorf("Expected the empty message")
	}
}

func TestGotoDate(t *testing.T) {
	m := newTestModel(t, afisha.NewStore(season(25)), 80, 40)

	press(m, "g")
	if m.mode != ViewGotoDate {
		t.Fatalf("Expected date prompt, got %v", m.mode)
	}
	typeText(m, "2024-05-02")
	drive(m, press(m, "enter"))

	v := m.ctrl.View()
	want := afisha.Date{Year: 2024, Month: time.May, Day: 2}
	if v.Date != want {
		t.Errorf("Date not applied: %v", v.Date)
	}
	if v.Loaded != 4 {
		t.Errorf("Expected the 4 performances of May 2, got %d", v.Loaded)
	}
	if len(v.Groups) != 1 || v.Groups[0].Label != "2 мая 2024 г." {
		t.Errorf("Unexpected groups: %+v", v.Groups)
	}

	press(m, "g")
	if m.inputBuffer != "2024-05-02" {
		t.Errorf("Prompt should start from the current date, got %q", m.inputBuffer)
	}
	press(m, "ctrl+u")
	typeText(m, "someday")
	press(m, "enter")
	if !strings.HasPrefix(m.message, "Parse error") {
		t.Errorf("Expected parse error message, got %q", m.message)
	}
	if m.ctrl.Date() != want {
		t.Errorf("A bad date must not change the selection")
	}

	drive(m, press(m, "T"))
	if got := m.ctrl.Date(); got != (afisha.Date{Year: 2024, Month: time.May, Day: 1}) {
		t.Errorf("Tomorrow should select May 1, got %v", got)
	}
}

func TestResetClearsFilterAndDate(t *testing.T) {
	m := newTestModel(t, afisha.NewStore(season(25)), 80, 40)

	press(m, "g")
	typeText(m, "2024-05-02")
	drive(m, press(m, "enter"))
	press(m, "/")
	typeText(m, "гам")
	press(m, "enter")

	drive(m, press(m, "x"))

	if !m.ctrl.Date().IsZero() || m.ctrl.Filter() != "" {
		t.Errorf("Reset should clear both, got date=%v filter=%q", m.ctrl.Date(), m.ctrl.Filter())
	}
	if got := m.ctrl.View().Loaded; got != 25 {
		t.Errorf("Expected a full reload, got %d", got)
	}
}

func TestFetchErrorShownInStatusBar(t *testing.T) {
	m := newTestModel(t, failingSource{}, 120, 20)

	v := m.ctrl.View()
	if v.Err == nil {
		t.Fatal("Expected the fetch error to surface")
	}

	out := m.View()
	if !strings.Contains(out, "502") {
		t.Errorf("Status bar should show the error: %s", out)
	}
	if !strings.Contains(out, "Представления по вашему запросу не найдены.") {
		t.Errorf("A failed reset should leave an empty listing")
	}
}

func TestSourceChangeRestartsListing(t *testing.T) {
	m := newTestModel(t, afisha.NewStore(season(25)), 80, 10)
	drive(m, press(m, "end"))
	if got := m.ctrl.View().Loaded; got != 20 {
		t.Fatalf("Expected two pages, got %d", got)
	}

	events := make(chan afisha.ChangeEvent)
	m.watch = events
	_, cmd := m.Update(sourceChangedMsg{event: afisha.ChangeEvent{Path: "fixture.yaml", Timestamp: time.Now()}})
	drive(m, cmd)

	if got := m.ctrl.View().Loaded; got != 10 {
		t.Errorf("Expected a reset to the first page, got %d", got)
	}
	if m.cursor != 0 || m.offset != 0 {
		t.Errorf("Cursor should return to the top")
	}
}

func TestHelpAndQuit(t *testing.T) {
	m := newTestModel(t, afisha.NewStore(season(3)), 80, 40)

	press(m, "?")
	if m.mode != ViewHelp || !strings.Contains(m.View(), "Filter by title") {
		t.Errorf("Expected help view")
	}
	press(m, "j")
	if m.mode != ViewList {
		t.Errorf("Any key should leave help")
	}

	cmd := press(m, "q")
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("Expected tea.QuitMsg")
	}
	if _, anchored := m.ctrl.View().Anchor(); anchored {
		t.Errorf("Quitting should release the observation")
	}
}

func TestLoadingFooterStyle(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Colors["loading"] = "1"
	cfg.Colors["footer"] = "2"

	styles := StylesFromConfig(cfg)
	if got := styles.Loading.GetForeground(); got != lipgloss.Color("1") {
		t.Errorf("Loading foreground = %v, want 1", got)
	}
	if got := styles.Footer.GetForeground(); got != lipgloss.Color("2") {
		t.Errorf("Footer foreground = %v, want 2", got)
	}

	m := newTestModel(t, afisha.NewStore(season(3)), 80, 24)
	m.ctrl.Refresh()
	lines := m.layout(m.ctrl.View())
	last := lines[len(lines)-1]
	if last.kind != lineFooter || !last.loading {
		t.Errorf("Expected the loading footer while a page is in flight, got %+v", last)
	}
}
