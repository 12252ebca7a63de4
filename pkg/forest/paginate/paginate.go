// Package paginate splits the top level of a forest into fixed-size pages.
package paginate

import (
	"errors"
	"fmt"
)

// DefaultPageSize is used when a Paginator is created without a valid size.
const DefaultPageSize = 10

// ErrInvalidPageSize is returned for a page size that is not positive.
var ErrInvalidPageSize = errors.New("page size must be positive")

// Page describes one page of a sequence: its 1-based number, the total page
// count and the half-open [Start, End) window of item indexes.
type Page struct {
	Number int `json:"number"`
	Total  int `json:"total_pages"`
	Start  int `json:"start"`
	End    int `json:"end"`
}

// Compute returns the page for requested over count items. Total is at least
// one and Number is clamped into [1, Total]. A non-positive pageSize yields
// the empty first page.
func Compute(count, pageSize, requested int) Page {
	if pageSize <= 0 {
		return Page{Number: 1, Total: 1}
	}

	count = max(count, 0)

	total := max(1, (count+pageSize-1)/pageSize)
	number := max(1, min(requested, total))

	start := min((number-1)*pageSize, count)
	end := min(start+pageSize, count)

	return Page{Number: number, Total: total, Start: start, End: end}
}

// Paginator holds the page size and current page of a view.
type Paginator struct {
	pageSize int
	current  int
	count    int
}

// New creates a Paginator on page one. A non-positive size falls back to
// DefaultPageSize.
func New(pageSize int) *Paginator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &Paginator{pageSize: pageSize, current: 1}
}

// PageSize returns the configured page size.
func (p *Paginator) PageSize() int {
	return p.pageSize
}

// Current returns the page for the last known item count.
func (p *Paginator) Current() Page {
	return Compute(p.count, p.pageSize, p.current)
}

// SetPageSize changes the page size and re-clamps the current page. A
// non-positive size is rejected and the previous size is kept.
func (p *Paginator) SetPageSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPageSize, size)
	}

	p.pageSize = size
	p.Clamp(p.count)

	return nil
}

// Clamp records a new item count and moves the current page back into range.
func (p *Paginator) Clamp(count int) Page {
	p.count = max(count, 0)

	page := p.Current()
	p.current = page.Number

	return page
}

// GoTo moves to the requested page, clamped into range.
func (p *Paginator) GoTo(requested int) Page {
	p.current = requested

	return p.Clamp(p.count)
}

// Next moves one page forward.
func (p *Paginator) Next() Page {
	return p.GoTo(p.current + 1)
}

// Prev moves one page back.
func (p *Paginator) Prev() Page {
	return p.GoTo(p.current - 1)
}

// First moves to page one.
func (p *Paginator) First() Page {
	return p.GoTo(1)
}

// Last moves to the final page.
func (p *Paginator) Last() Page {
	return p.GoTo(p.Current().Total)
}

// Slice returns the window of items for the current page after clamping to
// len(items). The result aliases items.
func Slice[T any](p *Paginator, items []T) []T {
	page := p.Clamp(len(items))

	return items[page.Start:page.End]
}
