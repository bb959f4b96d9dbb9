package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lherron/ghl2hs/internal/cli/appctx"
	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/ghl"
	"github.com/lherron/ghl2hs/internal/paging"
)

var extractCmd = &cobra.Command{
	Use:   "extract <entity>",
	Short: "Pull records from the GoHighLevel API into the staging store",
	Long: `Extract pages through one GoHighLevel feed and upserts every record into
the staging store. Feeds that hang off another entity read their parents
from staging: messages follow staged conversations, notes follow staged
contacts and appointments follow staged calendars.

Entities: contacts, companies, opportunities, calendars, appointments,
conversations, messages, notes, custom_fields.

Examples:
  ghl2hs extract custom_fields
  ghl2hs extract contacts
  ghl2hs extract appointments --from 2023-01-01 --to 2024-12-31`,
	Args: cobra.ExactArgs(1),
	RunE: appctx.WithApp(appctx.DefaultOptions(), runExtract),
}

var (
	extractFrom string
	extractTo   string
)

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringVar(&extractFrom, "from", "", "Appointment window start (default one year ago)")
	extractCmd.Flags().StringVar(&extractTo, "to", "", "Appointment window end (default one year ahead)")
	extractCmd.Flags().Duration("delay", 300*time.Millisecond, "Pause after every API call (overrides GHL2HS_REQUEST_DELAY)")
}

func runExtract(app *appctx.App, cmd *cobra.Command, args []string) error {
	entity, err := domain.ValidateStagedEntity(args[0])
	if err != nil {
		return exitError(2, err)
	}
	src, err := app.Source()
	if err != nil {
		return exitError(1, err)
	}

	ctx, stop := interruptible(cmd)
	defer stop()

	x := &extractor{store: app.Store, src: src, log: app.Log.WithField("collection", entity)}
	var n int
	switch entity {
	case domain.EntityContacts:
		n, err = x.feed(ctx, entity, src.Contacts())
	case domain.EntityCompanies:
		n, err = x.feed(ctx, entity, src.Businesses())
	case domain.EntityOpportunities:
		n, err = x.feed(ctx, entity, src.Opportunities())
	case domain.EntityCalendars:
		n, err = x.feed(ctx, entity, src.Calendars())
	case domain.EntityConversations:
		n, err = x.feed(ctx, entity, src.Conversations())
	case domain.EntityCustomFields:
		n, err = x.feed(ctx, entity, src.CustomFields())
	case domain.EntityMessages:
		n, err = x.perParent(ctx, domain.EntityConversations, entity, src.Messages)
	case domain.EntityNotes:
		n, err = x.perParent(ctx, domain.EntityContacts, entity, src.Notes)
	case domain.EntityAppointments:
		from, to, werr := appointmentWindow(time.Now())
		if werr != nil {
			return exitError(2, werr)
		}
		n, err = x.perParent(ctx, domain.EntityCalendars, entity, func(calendarID string) paging.FetchFunc {
			return src.Appointments(calendarID, from, to)
		})
	default:
		return exitError(2, fmt.Errorf("%s cannot be extracted", entity))
	}

	// Report progress even when the feed failed part way
	fmt.Fprintf(cmd.OutOrStdout(), "Staged %d %s document(s)\n", n, entity)
	if err != nil {
		return exitError(1, err)
	}
	return nil
}

func appointmentWindow(now time.Time) (time.Time, time.Time, error) {
	from, to := now.AddDate(-1, 0, 0), now.AddDate(1, 0, 0)
	if extractFrom != "" {
		t, err := domain.ValidateTimestamp(extractFrom)
		if err != nil {
			return from, to, fmt.Errorf("invalid --from: %w", err)
		}
		from = t
	}
	if extractTo != "" {
		t, err := domain.ValidateTimestamp(extractTo)
		if err != nil {
			return from, to, fmt.Errorf("invalid --to: %w", err)
		}
		to = t
	}
	if !to.After(from) {
		return from, to, fmt.Errorf("--to must be after --from")
	}
	return from, to, nil
}

type extractor struct {
	store appctx.Backend
	src   *ghl.Client
	log   *logrus.Entry
}

// feed stages every item of one feed
func (x *extractor) feed(ctx context.Context, collection domain.EntityType, fetch paging.FetchFunc) (int, error) {
	pager := paging.New(fetch, "")
	n, err := pager.Each(ctx, func(doc domain.Document) error {
		if doc.ID == "" {
			x.log.Warn("skipping source record without id")
			return nil
		}
		return x.store.UpsertDocument(ctx, collection, doc)
	})
	x.log.WithFields(logrus.Fields{"pages": pager.Pages(), "records": n}).Info("feed extracted")
	if err != nil {
		return n, fmt.Errorf("failed to extract %s: %w", collection, err)
	}
	return n, nil
}

// perParent runs one feed per staged parent document
func (x *extractor) perParent(ctx context.Context, parents, collection domain.EntityType, fetchFor func(parentID string) paging.FetchFunc) (int, error) {
	total := 0
	after := ""
	for {
		page, err := x.store.ListAfter(ctx, parents, after, 100)
		if err != nil {
			return total, fmt.Errorf("failed to list staged %s: %w", parents, err)
		}
		if len(page) == 0 {
			return total, nil
		}
		for _, parent := range page {
			after = parent.Key
			if parent.ID == "" {
				continue
			}
			n, err := x.feed(ctx, collection, fetchFor(parent.ID))
			total += n
			if err != nil {
				return total, err
			}
		}
	}
}
