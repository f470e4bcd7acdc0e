// Package history provides a page-indexed view over the server-side record
// log. Pages are always fetched fresh and replaced wholesale; on a failed
// fetch the previously displayed page is kept, so the table never blanks on
// a transient error.
package history

import (
	"context"
	"fmt"

	"github.com/voltlab/battwatch/internal/client"
	"github.com/voltlab/battwatch/internal/telemetry"
)

// Source abstracts the getHistory call so the pager can be tested against a
// fake. *client.Client satisfies it.
type Source interface {
	History(ctx context.Context, page, limit int) (*client.HistoryResult, error)
}

// Page is the currently displayed slice of the record log.
type Page struct {
	Records      []telemetry.HistoryRow `json:"records"`
	PageNumber   int                    `json:"page"`
	TotalPages   int                    `json:"total_pages"`
	TotalRecords int                    `json:"total_records"`
}

// Pager navigates the paginated log. Not safe for concurrent use; the owning
// session serializes all access.
type Pager struct {
	source   Source
	pageSize int
	current  Page
}

// DefaultPageSize matches the reference table height.
const DefaultPageSize = 10

// NewPager creates a pager positioned on an empty page 1.
func NewPager(source Source, pageSize int) *Pager {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Pager{
		source:   source,
		pageSize: pageSize,
		current:  Page{PageNumber: 1, TotalPages: 1},
	}
}

// Current returns the displayed page.
func (p *Pager) Current() Page {
	return p.current
}

// HasNext reports whether a later page exists; presentation uses this to
// disable the forward control.
func (p *Pager) HasNext() bool {
	return p.current.PageNumber < p.current.TotalPages
}

// HasPrevious reports whether an earlier page exists.
func (p *Pager) HasPrevious() bool {
	return p.current.PageNumber > 1
}

// FetchPage retrieves and coerces page n without touching the displayed
// page. The source and page size are fixed at construction, so FetchPage is
// safe to call without holding the owner's lock; pair it with Install so a
// slow upstream is never waited on under that lock.
func (p *Pager) FetchPage(ctx context.Context, n int) (Page, error) {
	if n < 1 {
		return Page{}, fmt.Errorf("page %d out of range", n)
	}

	res, err := p.source.History(ctx, n, p.pageSize)
	if err != nil {
		return Page{}, err
	}

	totalPages := int(res.Pagination.TotalPages.Or(1))
	if totalPages < 1 {
		totalPages = 1
	}
	totalRecords := int(res.Pagination.TotalRecords.Or(0))
	if totalRecords < 0 {
		totalRecords = 0
	}
	pageNumber := int(res.Pagination.Page.Or(float64(n)))
	if pageNumber < 1 {
		pageNumber = n
	}

	return Page{
		Records:      res.Data,
		PageNumber:   pageNumber,
		TotalPages:   totalPages,
		TotalRecords: totalRecords,
	}, nil
}

// Install replaces the displayed page wholesale.
func (p *Pager) Install(page Page) {
	p.current = page
}

// LoadPage fetches page n and replaces the displayed page on success. On any
// failure the displayed page is left untouched and the error is returned for
// the caller to surface.
func (p *Pager) LoadPage(ctx context.Context, n int) error {
	page, err := p.FetchPage(ctx, n)
	if err != nil {
		return err
	}
	p.Install(page)
	return nil
}

// Next advances one page. At the upper bound it is a no-op and performs no
// request.
func (p *Pager) Next(ctx context.Context) error {
	if !p.HasNext() {
		return nil
	}
	return p.LoadPage(ctx, p.current.PageNumber+1)
}

// Previous steps back one page. At page 1 it is a no-op and performs no
// request.
func (p *Pager) Previous(ctx context.Context) error {
	if !p.HasPrevious() {
		return nil
	}
	return p.LoadPage(ctx, p.current.PageNumber-1)
}
