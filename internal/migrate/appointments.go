package migrate

import (
	"context"
	"strings"

	"github.com/lherron/ghl2hs/internal/domain"
)

// Meeting outcomes accepted by the destination
const (
	OutcomeScheduled   = "SCHEDULED"
	OutcomeCompleted   = "COMPLETED"
	OutcomeRescheduled = "RESCHEDULED"
	OutcomeNoShow      = "NO_SHOW"
	OutcomeCanceled    = "CANCELED"
)

// meetingOutcomes maps folded statuses (lower case, no spaces, underscores
// or dashes) to outcomes. Only whole statuses match.
var meetingOutcomes = map[string]string{
	"noshow":      OutcomeNoShow,
	"cancel":      OutcomeCanceled,
	"canceled":    OutcomeCanceled,
	"cancelled":   OutcomeCanceled,
	"reschedule":  OutcomeRescheduled,
	"rescheduled": OutcomeRescheduled,
	"showed":      OutcomeCompleted,
	"complete":    OutcomeCompleted,
	"completed":   OutcomeCompleted,
	"attended":    OutcomeCompleted,
	"done":        OutcomeCompleted,
	"confirmed":   OutcomeScheduled,
	"booked":      OutcomeScheduled,
	"scheduled":   OutcomeScheduled,
	"new":         OutcomeScheduled,
	"pending":     OutcomeScheduled,
}

// MeetingOutcome normalizes a free-form appointment status. The second
// result is false for unrecognized statuses, which must be omitted.
func MeetingOutcome(status string) (string, bool) {
	folded := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(status)))
	outcome, ok := meetingOutcomes[folded]
	return outcome, ok
}

type appointmentMigrator struct {
	calendarObject domain.ObjectType
}

func (appointmentMigrator) Entity() domain.EntityType { return domain.EntityAppointments }

func (appointmentMigrator) ObjectType(domain.Document) domain.ObjectType { return domain.ObjectMeeting }

func (m appointmentMigrator) Plan(ctx context.Context, rc *RunContext, doc domain.Document) (*Plan, error) {
	start, ok := timestampOf(doc, "startTime", "start", "dateAdded")
	if !ok {
		return skip(domain.SkipMissingTimestamp, "appointment %s has no start time", doc.ID), nil
	}

	title := strings.TrimSpace(doc.Str("title"))
	if title == "" {
		title = "Appointment"
	}
	props := map[string]string{
		"hs_timestamp":          hubspotTime(start),
		"hs_meeting_start_time": hubspotTime(start),
		"hs_meeting_title":      title,
		"ghl_appointment_id":    doc.ID,
	}
	if end, ok := timestampOf(doc, "endTime", "end"); ok {
		props["hs_meeting_end_time"] = hubspotTime(end)
	}
	if outcome, ok := MeetingOutcome(doc.FirstStr("appointmentStatus", "status")); ok {
		props["hs_meeting_outcome"] = outcome
	}
	setIf(props, "hs_meeting_body", doc.FirstStr("notes", "description"))
	setIf(props, "hs_meeting_location", doc.FirstStr("address", "location"))

	plan := &Plan{ObjectType: domain.ObjectMeeting, Properties: props}
	if err := plan.optionalAssociation(ctx, rc, doc.Str("contactId"), domain.ObjectContact); err != nil {
		return nil, err
	}
	if m.calendarObject != "" {
		if err := plan.optionalAssociation(ctx, rc, doc.Str("calendarId"), m.calendarObject); err != nil {
			return nil, err
		}
	}
	return plan, nil
}
