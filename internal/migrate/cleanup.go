package migrate

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/hubspot"
)

// Archiver finds and archives tagged destination objects
type Archiver interface {
	SearchAll(ctx context.Context, objectType domain.ObjectType, filters []hubspot.Filter, properties []string) ([]hubspot.Object, error)
	BatchArchive(ctx context.Context, objectType domain.ObjectType, ids []string) (int, error)
}

// ObjectTypesFor lists the destination object types a stream creates
func ObjectTypesFor(cfg StreamConfig) []domain.ObjectType {
	switch cfg.Entity {
	case domain.EntityContacts:
		return []domain.ObjectType{domain.ObjectContact, domain.ObjectCompany}
	case domain.EntityCompanies:
		return []domain.ObjectType{domain.ObjectCompany}
	case domain.EntityOpportunities:
		return []domain.ObjectType{domain.ObjectDeal}
	case domain.EntityCalendars:
		if cfg.CalendarObject != "" {
			return []domain.ObjectType{cfg.CalendarObject}
		}
	case domain.EntityAppointments:
		return []domain.ObjectType{domain.ObjectMeeting}
	case domain.EntityConversations:
		return []domain.ObjectType{domain.ObjectNote, domain.ObjectEmail, domain.ObjectCall}
	case domain.EntityNotes:
		return []domain.ObjectType{domain.ObjectNote}
	}
	return nil
}

// DeleteImportTag archives every object of the given types carrying the
// import tag. It returns the number archived per object type. Identity
// mappings are left alone; reset the stream to forget them.
func DeleteImportTag(ctx context.Context, api Archiver, tag string, objectTypes []domain.ObjectType, log *logrus.Entry) (map[domain.ObjectType]int, error) {
	if tag == "" {
		return nil, &domain.ConfigError{Field: "import tag", Reason: "is required"}
	}
	archived := make(map[domain.ObjectType]int, len(objectTypes))
	for _, objectType := range objectTypes {
		objects, err := api.SearchAll(ctx, objectType, []hubspot.Filter{hubspot.Eq(ImportTagProperty, tag)}, nil)
		if err != nil {
			return archived, fmt.Errorf("failed to find tagged %s objects: %w", objectType, err)
		}
		if len(objects) == 0 {
			archived[objectType] = 0
			continue
		}
		ids := make([]string, 0, len(objects))
		for _, o := range objects {
			ids = append(ids, o.ID)
		}
		n, err := api.BatchArchive(ctx, objectType, ids)
		if err != nil {
			return archived, fmt.Errorf("failed to archive tagged %s objects: %w", objectType, err)
		}
		archived[objectType] = n
		log.WithFields(logrus.Fields{"object_type": objectType, "archived": n, "tag": tag}).Info("archived tagged objects")
	}
	return archived, nil
}
