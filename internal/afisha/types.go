package afisha

import (
	"fmt"
	"strings"
	"time"
)

type Performance struct {
	ID         int
	DocumentID string
	StartsAt   time.Time // always UTC
	Play       *Play
}

// Title is the display title of the performance, taken from its play.
func (p Performance) Title() string {
	if p.Play == nil {
		return ""
	}
	return p.Play.Title
}

type Play struct {
	ID         int
	DocumentID string
	Title      string
	Poster     *Media
}

type Media struct {
	URL             string
	AlternativeText string
	Formats         map[string]MediaFormat
}

type MediaFormat struct {
	URL    string
	Width  int
	Height int
}

// Thumbnail returns the relative URL of the thumbnail rendition, falling back
// to the original upload.
func (m *Media) Thumbnail() string {
	if m == nil {
		return ""
	}
	if f, ok := m.Formats["thumbnail"]; ok && f.URL != "" {
		return f.URL
	}
	return m.URL
}

type Pagination struct {
	Page      int
	PageSize  int
	PageCount int
	Total     int
}

// HasMore reports whether pages after this one exist.
func (p Pagination) HasMore() bool {
	return p.Page*p.PageSize < p.Total
}

type Page struct {
	Items      []Performance
	Pagination Pagination
}

// Date is a calendar day without a time component. The zero value means no
// date is selected.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Start is 00:00:00 UTC of the day.
func (d Date) Start() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// End is 23:59:59 UTC of the day.
func (d Date) End() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 23, 59, 59, 0, time.UTC)
}

func (d Date) Before(o Date) bool {
	return d.Start().Before(o.Start())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Start().Format("2006-01-02")
}

// ResolveMediaURL prefixes a relative media path with the configured base
// URL. Absolute URLs are returned unchanged and an empty path yields the
// placeholder.
func ResolveMediaURL(base, path, placeholder string) string {
	if path == "" {
		return placeholder
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
