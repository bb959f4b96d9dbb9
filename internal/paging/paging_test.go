package paging

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/lherron/ghl2hs/internal/domain"
)

// numbered serves total items in pages of size, using the item index as token
func numbered(total, size int, calls *int) FetchFunc {
	return func(_ context.Context, token string) (Page, error) {
		*calls++
		start := 0
		if token != "" {
			start, _ = strconv.Atoi(token)
		}
		var page Page
		for i := start; i < total && i < start+size; i++ {
			page.Items = append(page.Items, domain.NewDocument(map[string]interface{}{"id": strconv.Itoa(i)}))
		}
		if end := start + size; end < total {
			page.Next = strconv.Itoa(end)
		}
		return page, nil
	}
}

func TestEachVisitsEveryItemOnce(t *testing.T) {
	calls := 0
	p := New(numbered(7, 3, &calls), "")

	var ids []string
	n, err := p.Each(context.Background(), func(d domain.Document) error {
		ids = append(ids, d.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("Each failed: %v", err)
	}
	if n != 7 || len(ids) != 7 {
		t.Fatalf("expected 7 items, got %d", n)
	}
	if ids[0] != "0" || ids[6] != "6" {
		t.Errorf("unexpected order %v", ids)
	}
	if calls != 3 {
		t.Errorf("expected 3 fetches, got %d", calls)
	}
	if p.Pages() != 3 {
		t.Errorf("expected 3 pages, got %d", p.Pages())
	}
}

func TestRestartFromToken(t *testing.T) {
	calls := 0
	p := New(numbered(7, 3, &calls), "")
	if _, _, err := p.Next(context.Background()); err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	token := p.Token()
	if token != "3" {
		t.Fatalf("expected token 3, got %q", token)
	}

	again := New(numbered(7, 3, &calls), token)
	page, ok, err := again.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("Next failed: %v", err)
	}
	if page.Items[0].ID != "3" {
		t.Errorf("restarted pager began at %s", page.Items[0].ID)
	}
}

func TestFetchErrorStops(t *testing.T) {
	p := New(func(context.Context, string) (Page, error) {
		return Page{}, ErrMissingCursor
	}, "")
	_, err := p.Each(context.Background(), func(domain.Document) error { return nil })
	if !errors.Is(err, ErrMissingCursor) {
		t.Fatalf("expected ErrMissingCursor, got %v", err)
	}
}

func TestRepeatedTokenEndsFeed(t *testing.T) {
	calls := 0
	p := New(func(context.Context, string) (Page, error) {
		calls++
		return Page{Items: []domain.Document{domain.NewDocument(map[string]interface{}{"id": "x"})}, Next: "same"}, nil
	}, "same")
	n, err := p.Each(context.Background(), func(domain.Document) error { return nil })
	if err != nil {
		t.Fatalf("Each failed: %v", err)
	}
	if n != 1 || calls != 1 {
		t.Errorf("expected one page, got %d items in %d calls", n, calls)
	}
}
