// Package paging turns continuation-token APIs into an iterative page loop.
package paging

import (
	"context"
	"errors"
	"fmt"

	"github.com/lherron/ghl2hs/internal/domain"
)

// ErrMissingCursor is returned when a page that has more items after it
// carries no continuation field. The feed cannot be resumed past it.
var ErrMissingCursor = errors.New("page is missing its continuation field")

// Page is one batch of items plus the token of the page after it. An empty
// Next marks the last page.
type Page struct {
	Items []domain.Document
	Next  string
}

// FetchFunc fetches the page that starts at token ("" for the first page)
type FetchFunc func(ctx context.Context, token string) (Page, error)

// Pager walks a feed one page at a time. Each fetch depends only on the
// token, so a pager can be restarted from any token it has handed out.
type Pager struct {
	fetch FetchFunc
	token string
	done  bool
	pages int
}

// New creates a pager starting at token
func New(fetch FetchFunc, token string) *Pager {
	return &Pager{fetch: fetch, token: token}
}

// Next fetches the next page. ok is false once the feed is exhausted.
func (p *Pager) Next(ctx context.Context) (Page, bool, error) {
	if p.done {
		return Page{}, false, nil
	}
	page, err := p.fetch(ctx, p.token)
	if err != nil {
		return Page{}, false, fmt.Errorf("page %d: %w", p.pages+1, err)
	}
	p.pages++
	if page.Next == "" || page.Next == p.token || len(page.Items) == 0 {
		p.done = true
	} else {
		p.token = page.Next
	}
	return page, len(page.Items) > 0, nil
}

// Token returns the token of the next page to fetch
func (p *Pager) Token() string {
	return p.token
}

// Pages returns the number of pages fetched so far
func (p *Pager) Pages() int {
	return p.pages
}

// Each calls fn for every item of every remaining page and returns the
// number of items visited.
func (p *Pager) Each(ctx context.Context, fn func(domain.Document) error) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		page, ok, err := p.Next(ctx)
		if err != nil {
			return n, err
		}
		if !ok {
			return n, nil
		}
		for _, item := range page.Items {
			if err := fn(item); err != nil {
				return n, err
			}
			n++
		}
	}
}
