package listing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwarden/afisha/internal/afisha"
)

// recordingSource serves pages from a Store and can fail chosen pages.
type recordingSource struct {
	store *afisha.Store

	mu    sync.Mutex
	fail  map[int]error
	calls []int
}

func (s *recordingSource) FetchPage(ctx context.Context, q afisha.Query, page int) (afisha.Page, error) {
	s.mu.Lock()
	s.calls = append(s.calls, page)
	err := s.fail[page]
	s.mu.Unlock()
	if err != nil {
		return afisha.Page{}, err
	}
	return s.store.FetchPage(ctx, q, page)
}

// season returns n performances six hours apart starting 2024-05-01 10:00 UTC.
func season(n int) []afisha.Performance {
	titles := []string{"Гамлет", "Чайка", "Вишнёвый сад"}
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	items := make([]afisha.Performance, n)
	for i := range items {
		items[i] = afisha.Performance{
			ID:       i + 1,
			StartsAt: start.Add(time.Duration(i) * 6 * time.Hour),
			Play:     &afisha.Play{ID: i%len(titles) + 1, Title: titles[i%len(titles)]},
		}
	}
	return items
}

func newTestController(t *testing.T, src afisha.Source, opts ...func(*Config)) *Controller {
	t.Helper()
	cfg := Config{
		Source: src,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:  clockwork.NewFakeClockAt(time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func viewIDs(v View) []int {
	var ids []int
	for _, p := range Flatten(v.Groups) {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Source: afisha.NewStore(nil), PageSize: -1})
	assert.Error(t, err)

	c, err := New(Config{Source: afisha.NewStore(nil)})
	require.NoError(t, err)
	assert.Equal(t, LocaleRU, c.Locale())
	assert.Equal(t, afisha.DefaultPageSize, c.cfg.PageSize)
}

func TestControllerPagesThroughCollection(t *testing.T) {
	items := season(25)
	src := &recordingSource{store: afisha.NewStore(items)}
	c := newTestController(t, src)
	ctx := context.Background()

	req := c.SetDate(afisha.Date{})
	assert.True(t, c.View().Loading)

	_, ok := c.Load(ctx, req)
	require.True(t, ok)
	v := c.View()
	assert.Equal(t, 10, v.Loaded)
	assert.True(t, v.HasMore)
	id, anchored := v.Anchor()
	assert.True(t, anchored)
	assert.Equal(t, 10, id)

	for _, want := range []struct {
		page    int
		loaded  int
		hasMore bool
	}{
		{2, 20, true},
		{3, 25, false},
	} {
		req, ok := c.AnchorVisible(true)
		require.True(t, ok, "page %d", want.page)
		assert.Equal(t, want.page, req.Page)

		_, again := c.AnchorVisible(true)
		assert.False(t, again, "no second request while loading")

		_, ok = c.Load(ctx, req)
		require.True(t, ok)
		v = c.View()
		assert.Equal(t, want.loaded, v.Loaded)
		assert.Equal(t, want.hasMore, v.HasMore)
	}

	assert.Equal(t, Exhausted, v.State)
	_, anchored = v.Anchor()
	assert.False(t, anchored, "nothing observed once exhausted")
	_, ok = c.AnchorVisible(true)
	assert.False(t, ok)

	assert.Equal(t, []int{1, 2, 3}, src.calls)
	assert.Equal(t, items, Flatten(v.Groups))
}

// totalOnlySource answers with the total count but no page numbers.
type totalOnlySource struct {
	recordingSource
}

func (s *totalOnlySource) FetchPage(ctx context.Context, q afisha.Query, page int) (afisha.Page, error) {
	p, err := s.recordingSource.FetchPage(ctx, q, page)
	p.Pagination = afisha.Pagination{Total: p.Pagination.Total}
	return p, err
}

func TestControllerCountsRequestedPages(t *testing.T) {
	items := season(25)
	src := &totalOnlySource{recordingSource{store: afisha.NewStore(items)}}
	c := newTestController(t, src)
	ctx := context.Background()

	_, ok := c.Load(ctx, c.SetDate(afisha.Date{}))
	require.True(t, ok)
	for i := 0; i < 10; i++ {
		req, more := c.LoadMore()
		if !more {
			break
		}
		c.Load(ctx, req)
	}

	v := c.View()
	assert.Equal(t, []int{1, 2, 3}, src.calls)
	assert.Equal(t, 25, v.Loaded)
	assert.False(t, v.HasMore)
	assert.Equal(t, Exhausted, v.State)
	assert.Equal(t, items, Flatten(v.Groups))
}

func TestControllerAnchorWithZeroID(t *testing.T) {
	items := season(6)
	items[2].ID = 0
	src := &recordingSource{store: afisha.NewStore(items)}
	c := newTestController(t, src, func(cfg *Config) { cfg.PageSize = 3 })

	_, ok := c.Load(context.Background(), c.SetDate(afisha.Date{}))
	require.True(t, ok)

	id, anchored := c.View().Anchor()
	require.True(t, anchored)
	assert.Equal(t, 0, id)

	req, ok := c.AnchorVisible(true)
	require.True(t, ok)
	assert.Equal(t, 2, req.Page)
}

func TestControllerDropsStaleAppend(t *testing.T) {
	src := &recordingSource{store: afisha.NewStore(season(25))}
	c := newTestController(t, src)
	ctx := context.Background()

	_, ok := c.Load(ctx, c.SetDate(afisha.Date{}))
	require.True(t, ok)
	c.View()
	appendReq, ok := c.AnchorVisible(true)
	require.True(t, ok)

	day := afisha.Date{Year: 2024, Month: time.May, Day: 1}
	resetReq := c.SetDate(day)
	assert.Greater(t, resetReq.Generation, appendReq.Generation)

	// the append resolves after the date changed
	stale := c.Fetch(ctx, appendReq)
	assert.False(t, c.Apply(stale))
	assert.Zero(t, c.View().Loaded)

	_, ok = c.Load(ctx, resetReq)
	require.True(t, ok)
	v := c.View()
	assert.Equal(t, []int{1, 2, 3}, viewIDs(v), "10:00, 16:00 and 22:00 on May 1")
	require.Len(t, v.Groups, 1)
	assert.Equal(t, "1 мая 2024 г.", v.Groups[0].Label)
	assert.Equal(t, day, v.Date)
}

func TestControllerFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection refused")

	t.Run("reset failure leaves the list empty", func(t *testing.T) {
		src := &recordingSource{store: afisha.NewStore(season(25)), fail: map[int]error{1: boom}}
		c := newTestController(t, src)

		r, ok := c.Load(ctx, c.SetDate(afisha.Date{}))
		require.True(t, ok)
		assert.ErrorIs(t, r.Err, boom)

		v := c.View()
		assert.Zero(t, v.Loaded)
		assert.False(t, v.HasMore)
		assert.True(t, v.Empty())
		assert.ErrorIs(t, v.Err, boom)

		// a refresh clears the error once the source recovers
		src.mu.Lock()
		src.fail = nil
		src.mu.Unlock()
		_, ok = c.Load(ctx, c.Refresh())
		require.True(t, ok)
		v = c.View()
		assert.NoError(t, v.Err)
		assert.Equal(t, 10, v.Loaded)
	})

	t.Run("append failure keeps loaded items", func(t *testing.T) {
		src := &recordingSource{store: afisha.NewStore(season(25)), fail: map[int]error{2: boom}}
		c := newTestController(t, src)

		_, ok := c.Load(ctx, c.SetDate(afisha.Date{}))
		require.True(t, ok)
		c.View()
		req, ok := c.AnchorVisible(true)
		require.True(t, ok)
		_, ok = c.Load(ctx, req)
		require.True(t, ok)

		v := c.View()
		assert.Equal(t, 10, v.Loaded)
		assert.False(t, v.HasMore)
		assert.Equal(t, Exhausted, v.State)
		assert.ErrorIs(t, v.Err, boom)
	})
}

func TestControllerVisibilityWhileLoading(t *testing.T) {
	src := &recordingSource{store: afisha.NewStore(season(25))}
	c := newTestController(t, src)

	req := c.SetDate(afisha.Date{})
	v := c.View()
	assert.True(t, v.Loading)
	_, anchored := v.Anchor()
	assert.False(t, anchored)
	_, ok := c.AnchorVisible(true)
	assert.False(t, ok)

	_, ok = c.Load(context.Background(), req)
	require.True(t, ok)

	// the anchor is attached on the next render and fires at once if it is
	// already on screen
	c.View()
	req, ok = c.AnchorVisible(true)
	require.True(t, ok)
	assert.Equal(t, 2, req.Page)
}

func TestControllerFilter(t *testing.T) {
	items := []afisha.Performance{
		perf(1, "2024-05-01T10:00:00Z", "Гамлет"),
		perf(2, "2024-05-01T12:00:00Z", "Чайка"),
		perf(3, "2024-05-02T10:00:00Z", "Гамлет"),
	}
	src := &recordingSource{store: afisha.NewStore(items)}
	c := newTestController(t, src)

	_, ok := c.Load(context.Background(), c.SetDate(afisha.Date{}))
	require.True(t, ok)

	c.SetFilter("гам")
	v := c.View()
	assert.Equal(t, []int{1, 3}, viewIDs(v))
	assert.Equal(t, 3, v.Loaded)
	assert.Equal(t, 2, v.Shown)
	assert.Len(t, v.Groups, 2)

	c.SetFilter("")
	assert.Equal(t, []int{1, 2, 3}, viewIDs(c.View()))

	c.SetFilter("ничего")
	v = c.View()
	assert.True(t, v.Empty())
	_, anchored := v.Anchor()
	assert.False(t, anchored)

	assert.Equal(t, []int{1}, src.calls, "filtering never fetches")
}

func TestControllerFilterHidesAnchor(t *testing.T) {
	src := &recordingSource{store: afisha.NewStore(season(25))}
	c := newTestController(t, src)

	_, ok := c.Load(context.Background(), c.SetDate(afisha.Date{}))
	require.True(t, ok)

	c.SetFilter("Три сестры")
	v := c.View()
	assert.True(t, v.HasMore)
	assert.True(t, v.Empty())
	_, ok = c.AnchorVisible(true)
	assert.False(t, ok, "no anchor without rendered items")

	// explicit load more still works
	req, ok := c.LoadMore()
	require.True(t, ok)
	assert.Equal(t, 2, req.Page)
}

func TestControllerDatePolicy(t *testing.T) {
	now := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	day := afisha.Date{Year: 2024, Month: time.May, Day: 1}

	tests := []struct {
		policy   afisha.DatePolicy
		wantFrom time.Time
	}{
		{afisha.WholeDay, day.Start()},
		{afisha.FutureOnly, now},
	}

	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			c := newTestController(t, afisha.NewStore(nil), func(cfg *Config) {
				cfg.Clock = clockwork.NewFakeClockAt(now)
				cfg.DatePolicy = tt.policy
				cfg.PageSize = 5
				cfg.PlayID = 3
			})
			req := c.SetDate(day)
			assert.Equal(t, tt.wantFrom, req.Query.From)
			assert.Equal(t, day.End(), req.Query.To)
			assert.Equal(t, 5, req.Query.PageSize)
			assert.Equal(t, 3, req.Query.PlayID)
		})
	}
}

func TestControllerFreshNowPerRequest(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC))
	c := newTestController(t, afisha.NewStore(season(25)), func(cfg *Config) {
		cfg.Clock = clock
	})

	first := c.SetDate(afisha.Date{})
	_, ok := c.Load(context.Background(), first)
	require.True(t, ok)
	c.View()

	clock.Advance(time.Hour)
	next, ok := c.AnchorVisible(true)
	require.True(t, ok)
	assert.Equal(t, first.Query.From.Add(time.Hour), next.Query.From)
}

func TestControllerClear(t *testing.T) {
	c := newTestController(t, afisha.NewStore(season(5)))
	c.SetDate(afisha.Date{Year: 2024, Month: time.May, Day: 2})
	c.SetFilter("Чайка")

	req := c.Clear()
	assert.True(t, req.Reset)
	assert.True(t, req.Query.To.IsZero())
	assert.Equal(t, "", c.Filter())
	assert.True(t, c.Date().IsZero())
}

func TestControllerClose(t *testing.T) {
	c := newTestController(t, afisha.NewStore(season(25)))
	req := c.SetDate(afisha.Date{})
	r := c.Fetch(context.Background(), req)

	c.Close()
	assert.False(t, c.Apply(r))
	_, ok := c.LoadMore()
	assert.False(t, ok)
	_, anchored := c.View().Anchor()
	assert.False(t, anchored)
}

func TestControllerConcurrentSignals(t *testing.T) {
	c := newTestController(t, afisha.NewStore(season(25)))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := c.SetDate(afisha.Date{})
			c.SetFilter(fmt.Sprint(i % 2))
			c.Load(ctx, req)
			c.View()
		}(i)
	}
	wg.Wait()

	// whichever reset came last owns the list
	v := c.View()
	assert.LessOrEqual(t, v.Loaded, 10)
}
