package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/schema"
)

// PrimaryCompanyLabel is the contact to company association label used for companions
const PrimaryCompanyLabel = "Primary"

type contactMigrator struct{}

func (contactMigrator) Entity() domain.EntityType { return domain.EntityContacts }

func (contactMigrator) ObjectType(domain.Document) domain.ObjectType { return domain.ObjectContact }

func (contactMigrator) Plan(ctx context.Context, rc *RunContext, doc domain.Document) (*Plan, error) {
	email := strings.ToLower(strings.TrimSpace(doc.Str("email")))
	if email == "" {
		return skip(domain.SkipMissingEmail, "contact %s has no email", doc.ID), nil
	}

	first := titleWords(doc.Str("firstName"))
	last := titleWords(doc.Str("lastName"))
	company := strings.TrimSpace(doc.Str("companyName"))
	if company == "" {
		company = NoCompanyName(first, last)
	}

	props := map[string]string{
		"email":          email,
		"company":        company,
		"ghl_contact_id": doc.ID,
	}
	setIf(props, "firstname", first)
	setIf(props, "lastname", last)
	setIf(props, "phone", doc.Str("phone"))
	setIf(props, "address", doc.FirstStr("address1", "address"))
	setIf(props, "city", doc.Str("city"))
	setIf(props, "state", doc.Str("state"))
	setIf(props, "zip", doc.FirstStr("postalCode", "zip"))
	setIf(props, "country", doc.Str("country"))
	setIf(props, "website", doc.Str("website"))
	setIf(props, "ghl_tags", strings.Join(doc.Strings("tags"), ";"))
	setIf(props, "ghl_source", doc.Str("source"))

	values, defs, err := customValues(ctx, rc, doc, "contact", "customFields", "customField")
	if err != nil {
		return nil, err
	}
	companyProps := map[string]string{"name": company}
	if len(values) > 0 {
		mergeProps(props, schema.CustomFieldProperties(domain.ObjectContact, values, defs, rc.Rules()))
		mergeProps(companyProps, schema.RuleProperties(domain.ObjectCompany, values, defs, rc.Rules()))
	}

	return &Plan{
		ObjectType: domain.ObjectContact,
		Properties: props,
		Companion: &CompanionPlan{
			ObjectType: domain.ObjectCompany,
			Properties: companyProps,
			Label:      PrimaryCompanyLabel,
			Required:   true,
		},
	}, nil
}

// NoCompanyName is the placeholder company name of a contact without one
func NoCompanyName(first, last string) string {
	return strings.TrimSpace(fmt.Sprintf("NO-COMPANY NAME - %s %s", first, last))
}
