package migrate

import (
	"context"
	"strings"

	"github.com/lherron/ghl2hs/internal/domain"
)

type companyMigrator struct{}

func (companyMigrator) Entity() domain.EntityType { return domain.EntityCompanies }

func (companyMigrator) ObjectType(domain.Document) domain.ObjectType { return domain.ObjectCompany }

func (companyMigrator) Plan(ctx context.Context, rc *RunContext, doc domain.Document) (*Plan, error) {
	name := strings.TrimSpace(doc.Str("name"))
	if name == "" {
		return skip(domain.SkipMissingName, "company %s has no name", doc.ID), nil
	}

	props := map[string]string{
		"name":            name,
		"ghl_business_id": doc.ID,
	}
	setIf(props, "phone", doc.Str("phone"))
	setIf(props, "website", doc.Str("website"))
	setIf(props, "address", doc.FirstStr("address", "address1"))
	setIf(props, "city", doc.Str("city"))
	setIf(props, "state", doc.Str("state"))
	setIf(props, "zip", doc.FirstStr("postalCode", "zip"))
	setIf(props, "country", doc.Str("country"))
	setIf(props, "description", doc.Str("description"))

	custom, err := customProperties(ctx, rc, doc, "company", domain.ObjectCompany, "customFields")
	if err != nil {
		return nil, err
	}
	mergeProps(props, custom)

	return &Plan{ObjectType: domain.ObjectCompany, Properties: props}, nil
}
