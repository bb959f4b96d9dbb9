package migrate

import (
	"context"
	"strings"

	"github.com/lherron/ghl2hs/internal/domain"
)

type opportunityMigrator struct{}

func (opportunityMigrator) Entity() domain.EntityType { return domain.EntityOpportunities }

func (opportunityMigrator) ObjectType(domain.Document) domain.ObjectType { return domain.ObjectDeal }

func (opportunityMigrator) Plan(ctx context.Context, rc *RunContext, doc domain.Document) (*Plan, error) {
	props := map[string]string{
		"ghl_opportunity_id": doc.ID,
	}

	custom, err := customProperties(ctx, rc, doc, "opportunity", domain.ObjectDeal, "customFields")
	if err != nil {
		return nil, err
	}
	mergeProps(props, custom)

	if props["dealstage"] == "" {
		pipeline, stage, ok, err := rc.DealStage(ctx)
		if err != nil {
			return nil, err
		}
		switch {
		case ok:
			props["dealstage"] = stage
			setIf(props, "pipeline", pipeline)
		case !rc.Config.DryRun:
			return skip(domain.SkipMissingStage, "no deal stage configured and no open stage in the default pipeline"), nil
		}
	}

	name := strings.TrimSpace(doc.Str("name"))
	if name == "" {
		name = "Opportunity " + doc.ID
	}
	props["dealname"] = name
	setIf(props, "amount", doc.Str("monetaryValue"))
	setIf(props, "ghl_status", doc.Str("status"))
	setIf(props, "ghl_pipeline_id", doc.Str("pipelineId"))
	setIf(props, "ghl_stage_id", doc.Str("pipelineStageId"))
	setIf(props, "ghl_source", doc.Str("source"))

	plan := &Plan{ObjectType: domain.ObjectDeal, Properties: props}

	contactID := doc.FirstStr("contactId", "contact.id")
	if err := plan.optionalAssociation(ctx, rc, contactID, domain.ObjectContact); err != nil {
		return nil, err
	}

	// the contact's companion company lends the deal its apex id
	if contactID != "" {
		companyID, ok, err := rc.Mapping(ctx, contactID, domain.ObjectCompany)
		if err != nil {
			return nil, err
		}
		if ok {
			plan.Associations = append(plan.Associations, AssociationPlan{ToObjectType: domain.ObjectCompany, ToID: companyID})
			if props["apex_id"] == "" {
				company, err := rc.CompanyProperties(ctx, companyID, "apex_id")
				if err != nil {
					rc.fieldLog(doc).WithError(err).Warn("company apex id unavailable")
				} else {
					setIf(props, "apex_id", company["apex_id"])
				}
			}
		}
	}
	return plan, nil
}
