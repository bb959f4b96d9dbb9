package hubspot

import (
	"context"
	"net/http"
	"net/url"

	"github.com/lherron/ghl2hs/internal/domain"
)

func propertiesPath(objectType domain.ObjectType) string {
	return "/crm/v3/properties/" + objectType.APIName()
}

// GetProperty fetches one property definition. A missing property is a 404 APIError.
func (c *Client) GetProperty(ctx context.Context, objectType domain.ObjectType, name string) (*domain.DestinationProperty, error) {
	var out domain.DestinationProperty
	if err := c.do(ctx, "properties.get", http.MethodGet, propertiesPath(objectType)+"/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProperties fetches every property definition of an object type
func (c *Client) ListProperties(ctx context.Context, objectType domain.ObjectType) ([]domain.DestinationProperty, error) {
	var out struct {
		Results []domain.DestinationProperty `json:"results"`
	}
	if err := c.do(ctx, "properties.list", http.MethodGet, propertiesPath(objectType), nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// CreateProperty creates a property definition
func (c *Client) CreateProperty(ctx context.Context, objectType domain.ObjectType, prop domain.DestinationProperty) (*domain.DestinationProperty, error) {
	var out domain.DestinationProperty
	if err := c.do(ctx, "properties.create", http.MethodPost, propertiesPath(objectType), prop, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ArchiveProperty archives a property; an absent property is not an error
func (c *Client) ArchiveProperty(ctx context.Context, objectType domain.ObjectType, name string) error {
	err := c.do(ctx, "properties.archive", http.MethodDelete, propertiesPath(objectType)+"/"+url.PathEscape(name), nil, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}

// EnsurePropertyGroup creates a property group; an existing group is not an error
func (c *Client) EnsurePropertyGroup(ctx context.Context, objectType domain.ObjectType, name, label string) error {
	in := map[string]interface{}{"name": name, "label": label}
	err := c.do(ctx, "properties.create_group", http.MethodPost, propertiesPath(objectType)+"/groups", in, nil)
	if IsConflict(err) {
		return nil
	}
	return err
}
