package afisha

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultPageSize = 10

// DatePolicy decides how a selected date interacts with the future-only bound.
type DatePolicy int

const (
	// WholeDay shows every performance of the selected day, including ones
	// that already started.
	WholeDay DatePolicy = iota
	// FutureOnly keeps the "now" lower bound even when a day is selected.
	FutureOnly
)

func ParseDatePolicy(s string) (DatePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "whole_day", "wholeday", "day":
		return WholeDay, nil
	case "future_only", "futureonly", "future":
		return FutureOnly, nil
	default:
		return WholeDay, fmt.Errorf("invalid date policy: %s", s)
	}
}

func (p DatePolicy) String() string {
	if p == FutureOnly {
		return "future_only"
	}
	return "whole_day"
}

type QueryOptions struct {
	Date     Date
	Policy   DatePolicy
	PageSize int
	PlayID   int
}

// Query is a server-side filter over the performance collection together with
// sort and page size. Populate lists the related fields to include.
type Query struct {
	From     time.Time
	To       time.Time // zero means unbounded
	PlayID   int
	PageSize int
	Populate []string
	Sort     string
}

// BuildQuery translates the listing options into a collection query. now must
// be read fresh for every request so the future-only cutoff never goes stale.
func BuildQuery(opts QueryOptions, now time.Time) Query {
	q := Query{
		From:     now.UTC(),
		PlayID:   opts.PlayID,
		PageSize: opts.PageSize,
		Populate: []string{"play", "play.poster"},
		Sort:     "date_time:asc",
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}

	if !opts.Date.IsZero() {
		start := opts.Date.Start()
		if opts.Policy == WholeDay || start.After(q.From) {
			q.From = start
		}
		q.To = opts.Date.End()
	}

	return q
}

// Empty reports whether the window can not contain any performance.
func (q Query) Empty() bool {
	return !q.To.IsZero() && q.To.Before(q.From)
}

// Matches evaluates the filter locally.
func (q Query) Matches(p Performance) bool {
	if p.StartsAt.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && p.StartsAt.After(q.To) {
		return false
	}
	if q.PlayID != 0 && (p.Play == nil || p.Play.ID != q.PlayID) {
		return false
	}
	return true
}

// Values renders the query in Strapi's bracketed query-string syntax.
func (q Query) Values(page int) url.Values {
	v := url.Values{}
	v.Set("filters[date_time][$gte]", formatTimestamp(q.From))
	if !q.To.IsZero() {
		v.Set("filters[date_time][$lte]", formatTimestamp(q.To))
	}
	if q.PlayID != 0 {
		v.Set("filters[play][id][$eq]", strconv.Itoa(q.PlayID))
	}
	for i, field := range q.Populate {
		v.Set(fmt.Sprintf("populate[%d]", i), field)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	v.Set("pagination[page]", strconv.Itoa(page))
	v.Set("pagination[pageSize]", strconv.Itoa(q.PageSize))
	return v
}

// ParseValues is the inverse of Values. It returns the query and the
// requested page.
func ParseValues(v url.Values) (Query, int, error) {
	q := Query{
		Sort:     v.Get("sort"),
		PageSize: DefaultPageSize,
	}

	if s := v.Get("filters[date_time][$gte]"); s != "" {
		t, err := parseTimestamp(s)
		if err != nil {
			return Query{}, 0, fmt.Errorf("filters[date_time][$gte]: %w", err)
		}
		q.From = t
	}
	if s := v.Get("filters[date_time][$lte]"); s != "" {
		t, err := parseTimestamp(s)
		if err != nil {
			return Query{}, 0, fmt.Errorf("filters[date_time][$lte]: %w", err)
		}
		q.To = t
	}
	if s := v.Get("filters[play][id][$eq]"); s != "" {
		id, err := strconv.Atoi(s)
		if err != nil {
			return Query{}, 0, fmt.Errorf("filters[play][id][$eq]: %w", err)
		}
		q.PlayID = id
	}
	for i := 0; ; i++ {
		field := v.Get(fmt.Sprintf("populate[%d]", i))
		if field == "" {
			break
		}
		q.Populate = append(q.Populate, field)
	}

	page := 1
	if s := v.Get("pagination[page]"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return Query{}, 0, fmt.Errorf("invalid pagination[page]: %s", s)
		}
		page = n
	}
	if s := v.Get("pagination[pageSize]"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return Query{}, 0, fmt.Errorf("invalid pagination[pageSize]: %s", s)
		}
		q.PageSize = n
	}

	return q, page, nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// naiveTimestamp is a date_time without a zone designator, read as UTC.
// Fractional seconds are accepted after the seconds field.
const naiveTimestamp = "2006-01-02T15:04:05"

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		naive, nerr := time.ParseInLocation(naiveTimestamp, s, time.UTC)
		if nerr != nil {
			return time.Time{}, err
		}
		t = naive
	}
	return t.UTC(), nil
}
