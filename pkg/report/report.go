// Package report assembles the analysis output: per-page color events
// in stream order plus a deduplicated summary of in-bounds colors.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// Bounds element types.
const (
	BoundsRectangle = "rectangle"
	BoundsPath      = "path"
	BoundsText      = "text"
)

// Event kinds.
const (
	KindText  = "text"
	KindShape = "shape"
)

// Bounds is a painted element's position in millimeters. Width and
// height are omitted for text origins.
type Bounds struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Type   string  `json:"type"`
}

// ColorEvent is one painting or text-showing operation: the resolved
// color, its effective opacity, where it landed and whether it lies
// within the page boundary. Events are immutable once constructed and
// kept in stream order.
type ColorEvent struct {
	Colorspace  string `json:"colorspace"`
	Value       []int  `json:"value"`
	Opacity     int    `json:"opacity"`
	OutOfBounds bool   `json:"out_of_bounds"`
	Bounds      Bounds `json:"bounds"`
	Kind        string `json:"kind"`
	Text        string `json:"text,omitempty"`
}

// ColorRef is a deduplicated (colorspace, value, opacity) triple.
type ColorRef struct {
	Colorspace string `json:"colorspace"`
	Value      []int  `json:"value"`
	Opacity    int    `json:"opacity"`
}

// PageColors holds the events of one page in stream order.
type PageColors struct {
	Colors []ColorEvent `json:"colors"`
}

// PageError records a page that could not be analyzed.
type PageError struct {
	Page int
	Err  error
}

func (e PageError) Error() string {
	return fmt.Sprintf("page %d: %v", e.Page, e.Err)
}

func (e PageError) Unwrap() error {
	return e.Err
}

// Report is the final analysis result. ColorsInBounds deduplicates
// in-bounds triples in insertion order; Pages maps 1-based page
// numbers (as strings, per the output contract) to their events.
type Report struct {
	ColorsInBounds []ColorRef             `json:"colors_in_bounds"`
	Pages          map[string]*PageColors `json:"pages"`

	// Failed pages, not serialized; the run succeeded partially.
	Errors []PageError `json:"-"`
}

// MarshalIndent renders the report as indented JSON.
func (r *Report) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Builder accumulates per-page results from concurrent workers and
// finalizes them into a Report in page order.
type Builder struct {
	mu     sync.Mutex
	pages  map[int][]ColorEvent
	errors map[int]error
}

// NewBuilder creates an empty report builder.
func NewBuilder() *Builder {
	return &Builder{
		pages:  make(map[int][]ColorEvent),
		errors: make(map[int]error),
	}
}

// AddPage records the events of one page. Safe for concurrent use.
func (b *Builder) AddPage(pageNum int, events []ColorEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[pageNum] = events
}

// AddPageError records a page-level failure. Safe for concurrent use.
func (b *Builder) AddPageError(pageNum int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errors[pageNum] = err
}

// Finalize assembles the report: pages in ascending order, the
// in-bounds summary deduplicated by (colorspace, value, opacity) with
// first-seen ordering.
func (b *Builder) Finalize() *Report {
	b.mu.Lock()
	defer b.mu.Unlock()

	rep := &Report{
		ColorsInBounds: []ColorRef{},
		Pages:          make(map[string]*PageColors, len(b.pages)),
	}

	pageNums := make([]int, 0, len(b.pages))
	for n := range b.pages {
		pageNums = append(pageNums, n)
	}
	sort.Ints(pageNums)

	seen := make(map[string]bool)
	for _, n := range pageNums {
		events := b.pages[n]
		if len(events) == 0 {
			continue
		}
		rep.Pages[strconv.Itoa(n)] = &PageColors{Colors: events}

		for _, ev := range events {
			if ev.OutOfBounds {
				continue
			}
			key := colorKey(ev.Colorspace, ev.Value, ev.Opacity)
			if seen[key] {
				continue
			}
			seen[key] = true
			rep.ColorsInBounds = append(rep.ColorsInBounds, ColorRef{
				Colorspace: ev.Colorspace,
				Value:      ev.Value,
				Opacity:    ev.Opacity,
			})
		}
	}

	errNums := make([]int, 0, len(b.errors))
	for n := range b.errors {
		errNums = append(errNums, n)
	}
	sort.Ints(errNums)
	for _, n := range errNums {
		rep.Errors = append(rep.Errors, PageError{Page: n, Err: b.errors[n]})
	}

	return rep
}

func colorKey(cs string, value []int, opacity int) string {
	return fmt.Sprintf("%s|%v|%d", cs, value, opacity)
}
