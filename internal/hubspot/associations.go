package hubspot

import (
	"context"
	"net/http"
	"net/url"

	"github.com/lherron/ghl2hs/internal/domain"
)

// Association categories
const (
	CategoryHubSpotDefined = "HUBSPOT_DEFINED"
	CategoryUserDefined    = "USER_DEFINED"
)

// AssociationType describes one relationship kind between two object types
type AssociationType struct {
	Category string `json:"category"`
	TypeID   int    `json:"typeId"`
	Label    string `json:"label"`
}

type associationSpec struct {
	Category string `json:"associationCategory"`
	TypeID   int    `json:"associationTypeId"`
}

// AssociationLabels lists the association types defined from one object type to another
func (c *Client) AssociationLabels(ctx context.Context, from, to domain.ObjectType) ([]AssociationType, error) {
	var out struct {
		Results []AssociationType `json:"results"`
	}
	path := "/crm/v4/associations/" + from.APIName() + "/" + to.APIName() + "/labels"
	if err := c.do(ctx, "associations.labels", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Associate links two objects with the given association types
func (c *Client) Associate(ctx context.Context, from domain.ObjectType, fromID string, to domain.ObjectType, toID string, types ...AssociationType) error {
	specs := make([]associationSpec, 0, len(types))
	for _, t := range types {
		specs = append(specs, associationSpec{Category: t.Category, TypeID: t.TypeID})
	}
	path := "/crm/v4/objects/" + from.APIName() + "/" + url.PathEscape(fromID) +
		"/associations/" + to.APIName() + "/" + url.PathEscape(toID)
	err := c.do(ctx, "associations.create", http.MethodPut, path, specs, nil)
	if IsConflict(err) {
		return nil
	}
	return err
}
