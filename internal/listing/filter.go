package listing

import (
	"strings"

	"github.com/cwarden/afisha/internal/afisha"
)

// FilterByTitle keeps the performances whose title contains query,
// ignoring case. An empty query returns items unchanged.
func FilterByTitle(items []afisha.Performance, query string) []afisha.Performance {
	if query == "" {
		return items
	}

	needle := strings.ToLower(query)
	out := make([]afisha.Performance, 0, len(items))
	for _, p := range items {
		if strings.Contains(strings.ToLower(p.Title()), needle) {
			out = append(out, p)
		}
	}
	return out
}
