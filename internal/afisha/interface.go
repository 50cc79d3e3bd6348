package afisha

import (
	"context"
	"time"
)

// Source is a paginated collection of performances
type Source interface {
	// FetchPage returns one page of performances matching q
	FetchPage(ctx context.Context, q Query, page int) (Page, error)
}

// WatchableSource is implemented by sources whose data can change underneath
// a running listing
type WatchableSource interface {
	Source
	// Watch returns a channel that sends updates when the source changes
	Watch() (<-chan ChangeEvent, error)
	// StopWatching stops any watching
	StopWatching() error
}

// ChangeEvent represents a change to a source's backing data
type ChangeEvent struct {
	Path      string
	Timestamp time.Time
}
