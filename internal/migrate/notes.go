package migrate

import (
	"context"
	"strings"

	"github.com/lherron/ghl2hs/internal/domain"
)

// noteMigrator walks staged contacts and migrates the notes of each
type noteMigrator struct{}

func (noteMigrator) Entity() domain.EntityType { return domain.EntityNotes }

func (noteMigrator) ParentCollection() domain.EntityType { return domain.EntityContacts }

func (noteMigrator) ChildCollection() domain.EntityType { return domain.EntityNotes }

func (noteMigrator) ObjectType(domain.Document) domain.ObjectType { return domain.ObjectNote }

func (noteMigrator) Plan(ctx context.Context, rc *RunContext, doc domain.Document) (*Plan, error) {
	body := strings.TrimSpace(doc.FirstStr("bodyHtml", "body"))
	if body == "" {
		return skip(domain.SkipEmptyBody, "note %s has no body", doc.ID), nil
	}

	contactID := doc.Str("contactId")
	if contactID == "" {
		return skip(domain.SkipMissingMapping, "note %s has no contact", doc.ID), nil
	}
	destContact, ok, err := rc.Mapping(ctx, contactID, domain.ObjectContact)
	if err != nil {
		return nil, err
	}
	if !ok {
		return skip(domain.SkipMissingMapping, "note %s: contact %q not migrated", doc.ID, contactID), nil
	}

	props := map[string]string{
		"hs_note_body": body,
		"ghl_note_id":  doc.ID,
	}
	if ts, ok := timestampOf(doc, "dateAdded", "createdAt"); ok {
		props["hs_timestamp"] = hubspotTime(ts)
	} else {
		props["hs_timestamp"] = hubspotTime(rc.started)
	}

	return &Plan{
		ObjectType:   domain.ObjectNote,
		Properties:   props,
		Associations: []AssociationPlan{{ToObjectType: domain.ObjectContact, ToID: destContact}},
	}, nil
}
