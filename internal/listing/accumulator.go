package listing

import "github.com/cwarden/afisha/internal/afisha"

// Accumulator owns the performances loaded since the last reset, in server
// order. It never deduplicates: callers request each page once, in order.
type Accumulator struct {
	items    []afisha.Performance
	lastPage int
	hasMore  bool
}

// ResetWith replaces the list with exactly the items of page.
func (a *Accumulator) ResetWith(page afisha.Page) {
	a.items = append([]afisha.Performance(nil), page.Items...)
	a.record(page.Pagination)
}

// AppendWith extends the list with the items of page.
func (a *Accumulator) AppendWith(page afisha.Page) {
	a.items = append(a.items, page.Items...)
	a.record(page.Pagination)
}

// Clear empties the list and reports no more pages.
func (a *Accumulator) Clear() {
	a.items = nil
	a.lastPage = 0
	a.hasMore = false
}

// record takes hasMore from the freshest response only.
func (a *Accumulator) record(p afisha.Pagination) {
	a.lastPage = p.Page
	a.hasMore = p.HasMore()
}

// Items returns the accumulated list. Callers must not modify it.
func (a *Accumulator) Items() []afisha.Performance {
	return a.items
}

func (a *Accumulator) Len() int {
	return len(a.items)
}

// LastPage is the page number of the most recently merged response.
func (a *Accumulator) LastPage() int {
	return a.lastPage
}

func (a *Accumulator) HasMore() bool {
	return a.hasMore
}
