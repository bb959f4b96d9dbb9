package hubspot

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/lherron/ghl2hs/internal/domain"
)

const (
	searchPageSize = 100
	batchSize      = 100
)

// Object is a destination CRM object
type Object struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	Archived   bool              `json:"archived,omitempty"`
}

// Filter is one exact-match search condition
type Filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value,omitempty"`
}

// Eq builds an equality filter
func Eq(property, value string) Filter {
	return Filter{PropertyName: property, Operator: "EQ", Value: value}
}

type filterGroup struct {
	Filters []Filter `json:"filters"`
}

type searchRequest struct {
	FilterGroups []filterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties,omitempty"`
	Limit        int           `json:"limit"`
	After        string        `json:"after,omitempty"`
}

// SearchPage is one page of search results
type SearchPage struct {
	Total   int      `json:"total"`
	Results []Object `json:"results"`
	Paging  *struct {
		Next *struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

// NextAfter returns the continuation token, or "" on the last page
func (p *SearchPage) NextAfter() string {
	if p.Paging == nil || p.Paging.Next == nil {
		return ""
	}
	return p.Paging.Next.After
}

// CreateObject creates one object and returns it with its new id
func (c *Client) CreateObject(ctx context.Context, objectType domain.ObjectType, properties map[string]string) (*Object, error) {
	var out Object
	in := map[string]interface{}{"properties": properties}
	if err := c.do(ctx, "objects.create", http.MethodPost, "/crm/v3/objects/"+objectType.APIName(), in, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("hubspot objects.create: response for %s has no id", objectType)
	}
	return &out, nil
}

// GetObject fetches one object with the named properties
func (c *Client) GetObject(ctx context.Context, objectType domain.ObjectType, id string, properties ...string) (*Object, error) {
	path := "/crm/v3/objects/" + objectType.APIName() + "/" + url.PathEscape(id)
	if len(properties) > 0 {
		path += "?properties=" + url.QueryEscape(strings.Join(properties, ","))
	}
	var out Object
	if err := c.do(ctx, "objects.get", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search fetches one page of objects matching all filters
func (c *Client) Search(ctx context.Context, objectType domain.ObjectType, filters []Filter, properties []string, after string) (*SearchPage, error) {
	in := searchRequest{
		FilterGroups: []filterGroup{{Filters: filters}},
		Properties:   properties,
		Limit:        searchPageSize,
		After:        after,
	}
	var out SearchPage
	if err := c.do(ctx, "objects.search", http.MethodPost, "/crm/v3/objects/"+objectType.APIName()+"/search", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchAll walks every page of a search
func (c *Client) SearchAll(ctx context.Context, objectType domain.ObjectType, filters []Filter, properties []string) ([]Object, error) {
	var all []Object
	after := ""
	for {
		page, err := c.Search(ctx, objectType, filters, properties, after)
		if err != nil {
			return all, err
		}
		all = append(all, page.Results...)
		after = page.NextAfter()
		if after == "" || len(page.Results) == 0 {
			return all, nil
		}
	}
}

// ArchiveObject archives one object; an already absent object is not an error
func (c *Client) ArchiveObject(ctx context.Context, objectType domain.ObjectType, id string) error {
	err := c.do(ctx, "objects.archive", http.MethodDelete, "/crm/v3/objects/"+objectType.APIName()+"/"+url.PathEscape(id), nil, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}

type objectID struct {
	ID string `json:"id"`
}

type batchIDs struct {
	Inputs []objectID `json:"inputs"`
}

// BatchArchive archives objects in chunks of 100 and returns how many were sent
func (c *Client) BatchArchive(ctx context.Context, objectType domain.ObjectType, ids []string) (int, error) {
	sent := 0
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		var in batchIDs
		for _, id := range ids[start:end] {
			in.Inputs = append(in.Inputs, objectID{ID: id})
		}
		if err := c.do(ctx, "objects.batch_archive", http.MethodPost, "/crm/v3/objects/"+objectType.APIName()+"/batch/archive", in, nil); err != nil {
			return sent, err
		}
		sent += end - start
	}
	return sent, nil
}
