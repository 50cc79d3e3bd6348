package afisha

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CollectionJSON is the envelope of a Strapi collection response
type CollectionJSON struct {
	Data []PerformanceJSON `json:"data"`
	Meta *MetaJSON         `json:"meta"`
}

type MetaJSON struct {
	Pagination *PaginationJSON `json:"pagination"`
}

type PaginationJSON struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

// PerformanceJSON is a single performance entry. Strapi v4 nests fields under
// "attributes" and relations under "data"; v5 returns them flat. Both are
// accepted.
type PerformanceJSON struct {
	ID         int       `json:"id"`
	DocumentID string    `json:"documentId,omitempty"`
	DateTime   string    `json:"date_time"`
	Play       *PlayJSON `json:"play,omitempty"`
}

type PlayJSON struct {
	ID         int        `json:"id"`
	DocumentID string     `json:"documentId,omitempty"`
	Title      string     `json:"title"`
	Poster     *MediaJSON `json:"poster,omitempty"`
}

type MediaJSON struct {
	URL             string                     `json:"url"`
	AlternativeText string                     `json:"alternativeText,omitempty"`
	Formats         map[string]MediaFormatJSON `json:"formats,omitempty"`
}

type MediaFormatJSON struct {
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

func (p *PerformanceJSON) UnmarshalJSON(b []byte) error {
	type flat PerformanceJSON
	var v struct {
		flat
		Attributes *flat `json:"attributes"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = PerformanceJSON(v.flat)
	if v.Attributes != nil {
		id := p.ID
		*p = PerformanceJSON(*v.Attributes)
		p.ID = id
	}
	return nil
}

func (p *PlayJSON) UnmarshalJSON(b []byte) error {
	type flat PlayJSON
	var v struct {
		flat
		Attributes *flat `json:"attributes"`
		Data       *struct {
			ID         int   `json:"id"`
			Attributes *flat `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = PlayJSON(v.flat)
	switch {
	case v.Data != nil && v.Data.Attributes != nil:
		*p = PlayJSON(*v.Data.Attributes)
		p.ID = v.Data.ID
	case v.Attributes != nil:
		id := p.ID
		*p = PlayJSON(*v.Attributes)
		p.ID = id
	}
	return nil
}

func (m *MediaJSON) UnmarshalJSON(b []byte) error {
	type flat MediaJSON
	var v struct {
		flat
		Data *struct {
			Attributes *flat `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*m = MediaJSON(v.flat)
	if v.Data != nil && v.Data.Attributes != nil {
		*m = MediaJSON(*v.Data.Attributes)
	}
	return nil
}

// ParseCollectionJSON decodes a collection response into a Page.
func ParseCollectionJSON(data []byte) (Page, error) {
	var c CollectionJSON
	if err := json.Unmarshal(data, &c); err != nil {
		return Page{}, &DecodeError{Err: fmt.Errorf("failed to parse collection JSON: %w", err)}
	}
	if c.Meta == nil || c.Meta.Pagination == nil {
		return Page{}, &DecodeError{Err: errors.New("missing meta.pagination")}
	}

	pg := c.Meta.Pagination
	if pg.Page < 1 || pg.PageSize < 1 {
		return Page{}, &DecodeError{Err: fmt.Errorf("invalid pagination: page %d, pageSize %d", pg.Page, pg.PageSize)}
	}

	items, err := ConvertJSONToPerformances(c.Data)
	if err != nil {
		return Page{}, &DecodeError{Err: err}
	}

	return Page{
		Items: items,
		Pagination: Pagination{
			Page:      pg.Page,
			PageSize:  pg.PageSize,
			PageCount: pg.PageCount,
			Total:     pg.Total,
		},
	}, nil
}

// ConvertJSONToPerformances converts collection entries to Performance values.
// An entry without a parseable date_time fails the whole page.
func ConvertJSONToPerformances(entries []PerformanceJSON) ([]Performance, error) {
	items := make([]Performance, 0, len(entries))

	for _, entry := range entries {
		startsAt, err := parseTimestamp(entry.DateTime)
		if err != nil {
			return nil, fmt.Errorf("performance %d: invalid date_time %q: %w", entry.ID, entry.DateTime, err)
		}

		perf := Performance{
			ID:         entry.ID,
			DocumentID: entry.DocumentID,
			StartsAt:   startsAt,
		}

		// v4 renders a missing relation as {"data": null}
		if entry.Play != nil && (entry.Play.ID != 0 || entry.Play.Title != "") {
			perf.Play = &Play{
				ID:         entry.Play.ID,
				DocumentID: entry.Play.DocumentID,
				Title:      entry.Play.Title,
			}
			if poster := entry.Play.Poster; poster != nil && poster.URL != "" {
				media := &Media{
					URL:             poster.URL,
					AlternativeText: poster.AlternativeText,
				}
				if len(poster.Formats) > 0 {
					media.Formats = make(map[string]MediaFormat, len(poster.Formats))
					for name, f := range poster.Formats {
						media.Formats[name] = MediaFormat{URL: f.URL, Width: f.Width, Height: f.Height}
					}
				}
				perf.Play.Poster = media
			}
		}

		items = append(items, perf)
	}

	return items, nil
}

// ConvertPerformancesToJSON is the inverse of ConvertJSONToPerformances and
// produces the flat (v5) shape.
func ConvertPerformancesToJSON(items []Performance) []PerformanceJSON {
	out := make([]PerformanceJSON, 0, len(items))
	for _, p := range items {
		entry := PerformanceJSON{
			ID:         p.ID,
			DocumentID: p.DocumentID,
			DateTime:   formatTimestamp(p.StartsAt),
		}
		if p.Play != nil {
			entry.Play = &PlayJSON{
				ID:         p.Play.ID,
				DocumentID: p.Play.DocumentID,
				Title:      p.Play.Title,
			}
			if m := p.Play.Poster; m != nil {
				entry.Play.Poster = &MediaJSON{URL: m.URL, AlternativeText: m.AlternativeText}
				if len(m.Formats) > 0 {
					entry.Play.Poster.Formats = make(map[string]MediaFormatJSON, len(m.Formats))
					for name, f := range m.Formats {
						entry.Play.Poster.Formats[name] = MediaFormatJSON{URL: f.URL, Width: f.Width, Height: f.Height}
					}
				}
			}
		}
		out = append(out, entry)
	}
	return out
}
