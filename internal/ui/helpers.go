package ui

import (
	"github.com/muesli/reflow/truncate"

	"github.com/cwarden/afisha/internal/afisha"
	"github.com/cwarden/afisha/internal/listing"
)

type lineKind int

const (
	lineDate lineKind = iota
	lineItem
	lineBlank
	lineFooter
)

// line is one row of the scrollable body.
type line struct {
	kind    lineKind
	label   string
	perf    afisha.Performance
	index   int  // position in the filtered list, -1 for non-item rows
	loading bool // footer shown while a page is in flight
}

// layout flattens the grouped listing into body rows: a date header per
// group, one row per performance, a blank between groups and the status
// footer last.
func (m *Model) layout(v listing.View) []line {
	var lines []line
	index := 0
	for i, g := range v.Groups {
		if i > 0 {
			lines = append(lines, line{kind: lineBlank, index: -1})
		}
		lines = append(lines, line{kind: lineDate, label: m.groupLabel(g), index: -1})
		for _, p := range g.Items {
			lines = append(lines, line{kind: lineItem, perf: p, index: index})
			index++
		}
	}

	if footer := m.footer(v); footer != "" {
		if len(lines) > 0 {
			lines = append(lines, line{kind: lineBlank, index: -1})
		}
		lines = append(lines, line{kind: lineFooter, label: footer, index: -1, loading: v.Loading})
	}
	return lines
}

func (m *Model) groupLabel(g listing.Group) string {
	if m.config.DateFormat != "" {
		return g.Date.Start().Format(m.config.DateFormat)
	}
	return g.Label
}

// footer mirrors the listing state: loading, nothing found, or the end of
// the collection.
func (m *Model) footer(v listing.View) string {
	switch {
	case v.Loading:
		return m.messages.Loading
	case v.Empty():
		return m.messages.Empty
	case !v.HasMore:
		return m.messages.NoMore
	default:
		return ""
	}
}

// anchorLine returns the row of the performance with the given id, or -1.
func anchorLine(lines []line, id int) int {
	for i, l := range lines {
		if l.kind == lineItem && l.perf.ID == id {
			return i
		}
	}
	return -1
}

func cursorLine(lines []line, cursor int) int {
	for i, l := range lines {
		if l.kind == lineItem && l.index == cursor {
			return i
		}
	}
	return -1
}

// scrollToCursor adjusts the offset so the cursor row is visible, showing
// its date header too when the cursor is the first item of a group.
func (m *Model) scrollToCursor(lines []line) {
	height := m.bodyHeight()

	if idx := cursorLine(lines, m.cursor); idx >= 0 {
		top := idx
		if top > 0 && lines[top-1].kind == lineDate {
			top--
		}
		if top < m.offset {
			m.offset = top
		}
		if idx >= m.offset+height {
			m.offset = idx - height + 1
		}
	}

	maxOffset := len(lines) - height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if m.offset > maxOffset {
		m.offset = maxOffset
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// bodyHeight is the number of listing rows between the header and the
// detail and status lines.
func (m *Model) bodyHeight() int {
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

func (m *Model) title(p afisha.Performance) string {
	if t := p.Title(); t != "" {
		return t
	}
	return m.messages.Untitled
}

func (m *Model) startTime(p afisha.Performance) string {
	if m.config.TimeFormat != "" {
		return p.StartsAt.UTC().Format(m.config.TimeFormat)
	}
	return m.ctrl.Locale().FormatTime(p.StartsAt)
}

// posterURL resolves the thumbnail of the performance's play against the
// CMS base URL, falling back to the placeholder image.
func (m *Model) posterURL(p afisha.Performance) string {
	var path string
	if p.Play != nil {
		path = p.Play.Poster.Thumbnail()
	}
	return afisha.ResolveMediaURL(m.config.StrapiURL, path, m.config.PlaceholderImage)
}

func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return truncate.StringWithTail(s, uint(width), "…")
}
