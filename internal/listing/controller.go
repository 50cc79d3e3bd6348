// Package listing implements the incremental performance listing: paged
// fetching with a generation-tagged load state machine, accumulation of
// pages, title filtering, grouping by day and the visibility trigger that
// requests the next page.
//
// The controller is driven by discrete signals: a date change (reset), a
// filter change (local only) and anchor visibility (append). Fetch is the
// only blocking call; everything else completes synchronously so it can run
// on a single event loop.
package listing

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/cwarden/afisha/internal/afisha"
)

type Config struct {
	Source     afisha.Source
	Logger     *slog.Logger
	Clock      clockwork.Clock
	Locale     Locale
	DatePolicy afisha.DatePolicy
	PageSize   int
	PlayID     int
}

func (cfg *Config) Validate() error {
	if cfg.Source == nil {
		return errors.New("source is required")
	}
	if cfg.PageSize < 0 {
		return errors.New("page size must not be negative")
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = afisha.DefaultPageSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Locale == "" {
		cfg.Locale = LocaleRU
	}
	return nil
}

// View is the derived state handed to the rendering layer.
type View struct {
	Groups  []Group
	Loading bool
	HasMore bool
	State   State
	Date    afisha.Date
	Filter  string
	Loaded  int // accumulated items before filtering
	Shown   int // items after filtering
	Err     error

	anchorID int
	anchored bool
}

// Anchor returns the id of the observed last item. ok is false when nothing
// is observed.
func (v View) Anchor() (id int, ok bool) {
	return v.anchorID, v.anchored
}

// Empty reports that nothing is loading and nothing matches.
func (v View) Empty() bool {
	return !v.Loading && len(v.Groups) == 0
}

type Controller struct {
	cfg Config
	log *slog.Logger

	mu      sync.Mutex
	machine Machine
	trigger Trigger
	date    afisha.Date
	filter  string
	lastErr error
	closed  bool

	// derived, recomputed when dirty
	dirty    bool
	filtered []afisha.Performance
	groups   []Group
}

func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		cfg: cfg,
		log: cfg.Logger,
	}, nil
}

// SetDate selects a day (the zero Date selects upcoming performances) and
// returns the first-page request of the new generation.
func (c *Controller) SetDate(d afisha.Date) Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.date = d
	return c.resetLocked()
}

// Refresh restarts the listing for the current date.
func (c *Controller) Refresh() Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetLocked()
}

// Clear drops both the date and the filter and restarts the listing.
func (c *Controller) Clear() Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.date = afisha.Date{}
	c.filter = ""
	return c.resetLocked()
}

func (c *Controller) resetLocked() Request {
	c.lastErr = nil
	c.trigger.Release()
	c.dirty = true
	req := c.machine.BeginReset(c.queryLocked())
	c.log.Debug("listing reset", "generation", req.Generation, "date", c.date.String())
	return req
}

// SetFilter changes the title filter. It never touches the network.
func (c *Controller) SetFilter(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filter == s {
		return
	}
	c.filter = s
	c.dirty = true
}

func (c *Controller) Filter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

func (c *Controller) Date() afisha.Date {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.date
}

// AnchorVisible reports whether the observed anchor is currently on screen.
// When the anchor has just entered the viewport and another page is
// available, the append request is returned.
func (c *Controller) AnchorVisible(visible bool) (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.trigger.Observe(visible) {
		return Request{}, false
	}
	return c.beginAppendLocked()
}

// LoadMore requests the next page without a visibility signal.
func (c *Controller) LoadMore() (Request, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Request{}, false
	}
	return c.beginAppendLocked()
}

func (c *Controller) beginAppendLocked() (Request, bool) {
	req, ok := c.machine.BeginAppend(c.queryLocked())
	if ok {
		// the anchor is re-attached once the page lands
		c.trigger.Release()
		c.log.Debug("listing append", "generation", req.Generation, "page", req.Page)
	}
	return req, ok
}

// queryLocked builds the query with a fresh "now".
func (c *Controller) queryLocked() afisha.Query {
	return afisha.BuildQuery(afisha.QueryOptions{
		Date:     c.date,
		Policy:   c.cfg.DatePolicy,
		PageSize: c.cfg.PageSize,
		PlayID:   c.cfg.PlayID,
	}, c.cfg.Clock.Now())
}

// Fetch performs req against the source. Errors are logged and turned into
// an empty page reporting no further pages; Fetch never fails.
func (c *Controller) Fetch(ctx context.Context, req Request) Result {
	start := c.cfg.Clock.Now()
	page, err := c.cfg.Source.FetchPage(ctx, req.Query, req.Page)
	if err != nil {
		c.log.Error("page fetch failed",
			"error", err,
			"generation", req.Generation,
			"page", req.Page,
			"reset", req.Reset,
		)
		return Result{
			Request: req,
			Page: afisha.Page{
				Pagination: afisha.Pagination{Page: req.Page, PageSize: req.Query.PageSize},
			},
			Err: err,
		}
	}

	c.log.Debug("page fetched",
		"generation", req.Generation,
		"page", req.Page,
		"items", len(page.Items),
		"total", page.Pagination.Total,
		"elapsed", c.cfg.Clock.Since(start).Round(time.Millisecond),
	)
	return Result{Request: req, Page: page}
}

// Apply merges a fetch result. Results from a superseded generation, or
// arriving after Close, are dropped and Apply returns false.
func (c *Controller) Apply(r Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	if !c.machine.Complete(r) {
		c.log.Debug("dropped stale page",
			"generation", r.Request.Generation,
			"current", c.machine.Generation(),
			"page", r.Request.Page,
		)
		return false
	}

	c.lastErr = r.Err
	c.dirty = true
	return true
}

// Load fetches and applies req in one blocking step, for drivers without an
// event loop.
func (c *Controller) Load(ctx context.Context, req Request) (Result, bool) {
	r := c.Fetch(ctx, req)
	return r, c.Apply(r)
}

// View recomputes the filtered and grouped listing and re-evaluates the
// anchor: the last item of the last group is observed while the machine is
// Idle, and nothing is observed while Loading or Exhausted.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dirty {
		c.filtered = FilterByTitle(c.machine.Accumulator().Items(), c.filter)
		c.groups = GroupByDay(c.filtered, c.cfg.Locale)
		c.dirty = false
	}

	state := c.machine.State()
	if !c.closed && state == Idle && len(c.groups) > 0 {
		last := c.groups[len(c.groups)-1]
		c.trigger.Attach(last.Items[len(last.Items)-1].ID)
	} else {
		c.trigger.Release()
	}
	anchorID, anchored := c.trigger.Target()

	return View{
		Groups:   c.groups,
		Loading:  state == Loading,
		HasMore:  c.machine.Accumulator().HasMore(),
		State:    state,
		Date:     c.date,
		Filter:   c.filter,
		Loaded:   c.machine.Accumulator().Len(),
		Shown:    len(c.filtered),
		Err:      c.lastErr,
		anchorID: anchorID,
		anchored: anchored,
	}
}

func (c *Controller) Locale() Locale {
	return c.cfg.Locale
}

// Close releases the observation; later results and signals are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trigger.Release()
	c.closed = true
}
