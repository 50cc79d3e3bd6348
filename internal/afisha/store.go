package afisha

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Store is an in-memory performance collection answering queries with the
// same filter, sort and pagination semantics as the REST endpoint.
type Store struct {
	mu    sync.RWMutex
	items []Performance
}

func NewStore(items []Performance) *Store {
	s := &Store{}
	s.Replace(items)
	return s
}

// Replace swaps the whole collection.
func (s *Store) Replace(items []Performance) {
	sorted := make([]Performance, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartsAt.Equal(sorted[j].StartsAt) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].StartsAt.Before(sorted[j].StartsAt)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = sorted
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Query returns one page of the matching performances.
func (s *Store) Query(q Query, page int) Page {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		page = 1
	}

	s.mu.RLock()
	var matched []Performance
	if !q.Empty() {
		for _, p := range s.items {
			if q.Matches(p) {
				matched = append(matched, p)
			}
		}
	}
	s.mu.RUnlock()

	total := len(matched)
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page{
		Items: matched[start:end],
		Pagination: Pagination{
			Page:      page,
			PageSize:  pageSize,
			PageCount: (total + pageSize - 1) / pageSize,
			Total:     total,
		},
	}
}

// FetchPage implements Source.
func (s *Store) FetchPage(ctx context.Context, q Query, page int) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	return s.Query(q, page), nil
}

// fixtureFile is the on-disk layout of a fixture. JSON fixtures parse too,
// being valid YAML.
type fixtureFile struct {
	Performances []fixturePerformance `yaml:"performances"`
}

type fixturePerformance struct {
	ID         int          `yaml:"id"`
	DocumentID string       `yaml:"documentId"`
	DateTime   time.Time    `yaml:"date_time"`
	Play       *fixturePlay `yaml:"play"`
}

type fixturePlay struct {
	ID         int           `yaml:"id"`
	DocumentID string        `yaml:"documentId"`
	Title      string        `yaml:"title"`
	Poster     *fixtureMedia `yaml:"poster"`
}

type fixtureMedia struct {
	URL             string                   `yaml:"url"`
	AlternativeText string                   `yaml:"alternativeText"`
	Formats         map[string]fixtureFormat `yaml:"formats"`
}

type fixtureFormat struct {
	URL    string `yaml:"url"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// ParseFixture decodes a YAML or JSON fixture.
func ParseFixture(data []byte) ([]Performance, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}

	items := make([]Performance, 0, len(f.Performances))
	for i, fp := range f.Performances {
		if fp.DateTime.IsZero() {
			return nil, fmt.Errorf("performance #%d (id %d): missing date_time", i+1, fp.ID)
		}
		p := Performance{
			ID:         fp.ID,
			DocumentID: fp.DocumentID,
			StartsAt:   fp.DateTime.UTC(),
		}
		if fp.Play != nil {
			p.Play = &Play{
				ID:         fp.Play.ID,
				DocumentID: fp.Play.DocumentID,
				Title:      fp.Play.Title,
			}
			if m := fp.Play.Poster; m != nil && m.URL != "" {
				p.Play.Poster = &Media{URL: m.URL, AlternativeText: m.AlternativeText}
				if len(m.Formats) > 0 {
					p.Play.Poster.Formats = make(map[string]MediaFormat, len(m.Formats))
					for name, f := range m.Formats {
						p.Play.Poster.Formats[name] = MediaFormat{URL: f.URL, Width: f.Width, Height: f.Height}
					}
				}
			}
		}
		items = append(items, p)
	}
	return items, nil
}

// LoadFixture reads a fixture file from disk.
func LoadFixture(path string) ([]Performance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	items, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}
