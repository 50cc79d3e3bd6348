package listing

import (
	"fmt"

	"github.com/cwarden/afisha/internal/afisha"
)

type State int

const (
	Idle State = iota
	Loading
	Exhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Exhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Request describes one page fetch. Generation is the reset generation that
// was current when the request was issued.
type Request struct {
	Generation uint64
	Page       int
	Reset      bool
	Query      afisha.Query
}

// Result is the outcome of a Request. A failed fetch carries an empty page
// reporting no further pages, plus the error for display.
type Result struct {
	Request Request
	Page    afisha.Page
	Err     error
}

// Machine gates page requests: at most one fetch per generation is in
// flight, appends are only issued from Idle, and results tagged with a
// superseded generation are dropped.
type Machine struct {
	state      State
	generation uint64
	acc        Accumulator
}

func (m *Machine) State() State {
	return m.state
}

func (m *Machine) Generation() uint64 {
	return m.generation
}

func (m *Machine) Accumulator() *Accumulator {
	return &m.acc
}

// BeginReset starts a new generation and requests its first page. It is
// accepted in every state; an in-flight fetch is not cancelled but its
// result will no longer match the generation. The accumulated list is
// emptied at once so the previous date's items are never shown as loading
// for the new one.
func (m *Machine) BeginReset(q afisha.Query) Request {
	m.generation++
	m.state = Loading
	m.acc.Clear()
	return Request{
		Generation: m.generation,
		Page:       1,
		Reset:      true,
		Query:      q,
	}
}

// BeginAppend requests the next page. It is ignored unless the machine is
// Idle and the last response reported more pages.
func (m *Machine) BeginAppend(q afisha.Query) (Request, bool) {
	if m.state != Idle || !m.acc.HasMore() {
		return Request{}, false
	}
	m.state = Loading
	return Request{
		Generation: m.generation,
		Page:       m.acc.LastPage() + 1,
		Query:      q,
	}, true
}

// Complete merges r into the accumulator. It returns false, leaving every
// piece of state untouched, when r belongs to a superseded generation.
func (m *Machine) Complete(r Result) bool {
	if r.Request.Generation != m.generation || m.state != Loading {
		return false
	}

	// the page counter follows what was asked for, not what the server echoed
	page := r.Page
	page.Pagination.Page = r.Request.Page
	if page.Pagination.PageSize < 1 {
		page.Pagination.PageSize = r.Request.Query.PageSize
	}

	if r.Request.Reset {
		m.acc.ResetWith(page)
	} else {
		m.acc.AppendWith(page)
	}

	if m.acc.HasMore() {
		m.state = Idle
	} else {
		m.state = Exhausted
	}
	return true
}
