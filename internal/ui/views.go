package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m *Model) viewList() string {
	v := m.ctrl.View()
	lines := m.layout(v)

	var rows []string
	rows = append(rows, m.renderHeader())
	rows = append(rows, m.renderBar())

	height := m.bodyHeight()
	for i := m.offset; i < m.offset+height; i++ {
		if i >= len(lines) {
			rows = append(rows, "")
			continue
		}
		rows = append(rows, m.renderLine(lines[i]))
	}

	rows = append(rows, m.renderDetail(lines))
	rows = append(rows, m.renderStatusBar())

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *Model) renderHeader() string {
	return m.styles.Header.Render(fit(m.messages.Title, m.width))
}

// renderBar shows the active filter and date, or the prompt being edited.
func (m *Model) renderBar() string {
	switch m.mode {
	case ViewFilter:
		return m.renderPrompt(m.messages.FilterLabel)
	case ViewGotoDate:
		return m.renderPrompt(m.messages.DateLabel)
	}

	date := m.messages.AllDates
	if d := m.ctrl.Date(); !d.IsZero() {
		date = m.ctrl.Locale().FormatDate(d)
	}
	bar := fmt.Sprintf("%s: %s", m.messages.DateLabel, date)
	if f := m.ctrl.Filter(); f != "" {
		bar += fmt.Sprintf("  %s: %s", m.messages.FilterLabel, f)
	}
	return m.styles.Help.Render(fit(bar, m.width))
}

func (m *Model) renderPrompt(label string) string {
	runes := []rune(m.inputBuffer)
	input := string(runes[:m.cursorPos]) + "█" + string(runes[m.cursorPos:])
	return m.styles.Prompt.Render(label+": ") + m.styles.Normal.Render(input)
}

func (m *Model) renderLine(l line) string {
	switch l.kind {
	case lineDate:
		return m.styles.Date.Render(fit(l.label, m.width))
	case lineItem:
		when := m.styles.Time.Render(m.startTime(l.perf))
		title := fit(m.title(l.perf), m.width-lipgloss.Width(when)-4)
		if l.index == m.cursor && m.mode == ViewList {
			title = m.styles.Selected.Render(title)
		} else {
			title = m.styles.Normal.Render(title)
		}
		return "  " + when + "  " + title
	case lineFooter:
		if l.loading {
			return m.styles.Loading.Render(fit(l.label, m.width))
		}
		return m.styles.Footer.Render(fit(l.label, m.width))
	default:
		return ""
	}
}

// renderDetail describes the performance under the cursor.
func (m *Model) renderDetail(lines []line) string {
	idx := cursorLine(lines, m.cursor)
	if idx < 0 {
		return ""
	}
	p := lines[idx].perf
	detail := fmt.Sprintf("#%d %s %s", p.ID, p.StartsAt.UTC().Format("2006-01-02 15:04"), m.posterURL(p))
	return m.styles.Help.Render(fit(detail, m.width))
}

func (m *Model) renderStatusBar() string {
	v := m.ctrl.View()

	left := fmt.Sprintf(" %d/%d", v.Shown, v.Loaded)
	if v.HasMore {
		left += "+"
	}

	right := "? help | q quit"
	switch {
	case m.message != "":
		right = m.styles.Message.Render(m.message)
	case v.Err != nil:
		right = m.styles.Error.Render(fit(fmt.Sprintf("Error: %v (r to retry)", v.Err), m.width-lipgloss.Width(left)-1))
	}

	width := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if width < 0 {
		width = 0
	}

	middle := strings.Repeat(" ", width)

	return m.styles.Help.Render(left+middle) + right
}

func (m *Model) viewHelp() string {
	help := []string{
		m.styles.Header.Render(m.messages.Title),
		"",
		m.styles.Normal.Render("Navigation:"),
		m.styles.Help.Render("  j/↓     - Next performance"),
		m.styles.Help.Render("  k/↑     - Previous performance"),
		m.styles.Help.Render("  PgDn    - Page down"),
		m.styles.Help.Render("  PgUp    - Page up"),
		m.styles.Help.Render("  Home    - First performance"),
		m.styles.Help.Render("  End     - Last loaded performance"),
		"",
		m.styles.Normal.Render("Actions:"),
		m.styles.Help.Render("  /       - Filter by title"),
		m.styles.Help.Render("  g       - Go to date (2024-05-01, 01.05, tomorrow, next fri, all)"),
		m.styles.Help.Render("  t       - Today"),
		m.styles.Help.Render("  T       - Tomorrow"),
		m.styles.Help.Render("  x       - Clear filter and date"),
		m.styles.Help.Render("  r       - Refresh"),
		m.styles.Help.Render("  ?       - Toggle help"),
		m.styles.Help.Render("  q       - Quit"),
		"",
		m.styles.Help.Render("More performances load as you scroll to the end of the list."),
		m.styles.Help.Render("Press any key to return..."),
	}

	return lipgloss.JoinVertical(lipgloss.Left, help...)
}
