package listing

import (
	"sort"

	"github.com/cwarden/afisha/internal/afisha"
)

// Group is the performances of one UTC calendar day.
type Group struct {
	Date  afisha.Date
	Label string
	Items []afisha.Performance
}

// GroupByDay buckets items by UTC calendar date. Groups are ordered by date
// value, never by label; items keep their input order within a group.
func GroupByDay(items []afisha.Performance, locale Locale) []Group {
	if len(items) == 0 {
		return nil
	}

	index := make(map[afisha.Date]int)
	var groups []Group
	for _, p := range items {
		day := afisha.DateOf(p.StartsAt)
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, Group{Date: day, Label: locale.FormatDate(day)})
		}
		groups[i].Items = append(groups[i].Items, p)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Date.Before(groups[j].Date)
	})
	return groups
}

// Flatten concatenates the groups in order.
func Flatten(groups []Group) []afisha.Performance {
	var out []afisha.Performance
	for _, g := range groups {
		out = append(out, g.Items...)
	}
	return out
}
