package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lherron/ghl2hs/internal/domain"
)

// exitError returns an error that will cause the CLI to exit with the given code
func exitError(code int, err error) error {
	// main exits 1 on any error; the code documents intent at the call site
	return err
}

// interruptible cancels the command context on SIGINT or SIGTERM so a
// stream stops after the record in flight, with its checkpoint saved.
func interruptible(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

// primaryObjectType is the destination type whose mappings represent a
// stream's progress in status output
func primaryObjectType(entity domain.EntityType, calendarObject string) domain.ObjectType {
	switch entity {
	case domain.EntityContacts:
		return domain.ObjectContact
	case domain.EntityCompanies:
		return domain.ObjectCompany
	case domain.EntityOpportunities:
		return domain.ObjectDeal
	case domain.EntityCalendars:
		return domain.ObjectType(calendarObject)
	case domain.EntityAppointments:
		return domain.ObjectMeeting
	case domain.EntityConversations:
		return domain.ObjectEmail
	case domain.EntityNotes:
		return domain.ObjectNote
	}
	return ""
}

// resetObjectTypes lists the mapping types a stream reset forgets. A
// contacts reset keeps companion company mappings. Note mappings are shared
// by conversations and notes and only a notes reset forgets them.
func resetObjectTypes(entity domain.EntityType, calendarObject string) ([]domain.ObjectType, error) {
	switch entity {
	case domain.EntityConversations:
		return []domain.ObjectType{domain.ObjectEmail, domain.ObjectCall}, nil
	case domain.EntityCalendars:
		if calendarObject == "" {
			return nil, &domain.ConfigError{Field: "calendar object", Reason: "is required to reset calendars"}
		}
	}
	if t := primaryObjectType(entity, calendarObject); t != "" {
		return []domain.ObjectType{t}, nil
	}
	return nil, fmt.Errorf("no destination object type for %s", entity)
}
