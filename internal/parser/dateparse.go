// Package parser turns the free-form date typed at the prompt into a
// calendar day.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cwarden/afisha/internal/afisha"
)

type DateParser struct {
	clock    clockwork.Clock
	location *time.Location
}

func NewDateParser(clock clockwork.Clock) *DateParser {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DateParser{
		clock:    clock,
		location: time.Local,
	}
}

// SetLocation sets the zone used to decide which day "today" is.
func (p *DateParser) SetLocation(loc *time.Location) {
	p.location = loc
}

var (
	isoRe       = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	dottedRe    = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})(?:\.(\d{4}))?$`)
	slashRe     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{4}))?$`)
	weekdayRe   = regexp.MustCompile(`^(next|this)\s+(mon|monday|tue|tuesday|wed|wednesday|thu|thursday|fri|friday|sat|saturday|sun|sunday)$`)
	inRe        = regexp.MustCompile(`^in\s+(\d+)\s+(day|days|week|weeks|month|months)$`)
	fromNowRe   = regexp.MustCompile(`^(\d+)\s+(day|days|week|weeks|month|months)\s+from\s+(now|today)$`)
	monthNameRe = regexp.MustCompile(`^(jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|september|oct|october|nov|november|dec|december)\s+(\d{1,2})(?:,?\s+(\d{4}))?$`)
)

// Parse returns the day described by input. Empty input, "all" and "none"
// return the zero Date, meaning no date is selected.
func (p *DateParser) Parse(input string) (afisha.Date, error) {
	lower := strings.ToLower(strings.Join(strings.Fields(input), " "))

	switch lower {
	case "", "all", "none", "все", "всё":
		return afisha.Date{}, nil
	case "today", "сегодня":
		return p.today(), nil
	case "tomorrow", "tmrw", "завтра":
		return p.addDays(p.today(), 1), nil
	case "yesterday", "вчера":
		return p.addDays(p.today(), -1), nil
	}

	if matches := isoRe.FindStringSubmatch(lower); matches != nil {
		return makeDate(matches[1], matches[2], matches[3])
	}

	if matches := dottedRe.FindStringSubmatch(lower); matches != nil {
		return p.withYear(matches[3], matches[2], matches[1])
	}

	if matches := slashRe.FindStringSubmatch(lower); matches != nil {
		return p.withYear(matches[3], matches[1], matches[2])
	}

	if matches := weekdayRe.FindStringSubmatch(lower); matches != nil {
		return p.findNextWeekday(parseWeekday(matches[2]), matches[1] == "next"), nil
	}

	if matches := inRe.FindStringSubmatch(lower); matches != nil {
		return p.offset(matches[1], matches[2]), nil
	}

	if matches := fromNowRe.FindStringSubmatch(lower); matches != nil {
		return p.offset(matches[1], matches[2]), nil
	}

	if matches := monthNameRe.FindStringSubmatch(lower); matches != nil {
		month := parseMonth(matches[1])
		return p.withYear(matches[3], strconv.Itoa(int(month)), matches[2])
	}

	return afisha.Date{}, fmt.Errorf("unrecognized date: %q", input)
}

func (p *DateParser) withYear(year, month, day string) (afisha.Date, error) {
	if year == "" {
		year = strconv.Itoa(p.now().Year())
	}
	return makeDate(year, month, day)
}

// makeDate rejects days that time.Date would normalize, such as 02-30.
func makeDate(year, month, day string) (afisha.Date, error) {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return afisha.Date{}, fmt.Errorf("invalid date: %04d-%02d-%02d", y, m, d)
	}
	return afisha.DateOf(t), nil
}

func (p *DateParser) offset(count, unit string) afisha.Date {
	n, _ := strconv.Atoi(count)
	date := p.today()

	switch {
	case strings.HasPrefix(unit, "day"):
		return p.addDays(date, n)
	case strings.HasPrefix(unit, "week"):
		return p.addDays(date, n*7)
	default:
		return afisha.DateOf(date.Start().AddDate(0, n, 0))
	}
}

func (p *DateParser) findNextWeekday(target time.Weekday, skipThisWeek bool) afisha.Date {
	date := p.today()
	daysUntilTarget := int(target - date.Start().Weekday())

	if daysUntilTarget <= 0 || skipThisWeek {
		daysUntilTarget += 7
	}

	return p.addDays(date, daysUntilTarget)
}

func (p *DateParser) addDays(d afisha.Date, n int) afisha.Date {
	return afisha.DateOf(d.Start().AddDate(0, 0, n))
}

func (p *DateParser) now() time.Time {
	return p.clock.Now().In(p.location)
}

func (p *DateParser) today() afisha.Date {
	y, m, d := p.now().Date()
	return afisha.Date{Year: y, Month: m, Day: d}
}

func parseWeekday(s string) time.Weekday {
	switch s {
	case "mon", "monday":
		return time.Monday
	case "tue", "tuesday":
		return time.Tuesday
	case "wed", "wednesday":
		return time.Wednesday
	case "thu", "thursday":
		return time.Thursday
	case "fri", "friday":
		return time.Friday
	case "sat", "saturday":
		return time.Saturday
	default:
		return time.Sunday
	}
}

func parseMonth(s string) time.Month {
	for m := time.January; m <= time.December; m++ {
		if strings.HasPrefix(strings.ToLower(m.String()), s) && len(s) >= 3 {
			return m
		}
	}
	return time.January
}
