package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/ghl2hs/internal/domain"
	"github.com/lherron/ghl2hs/internal/hubspot"
	"github.com/lherron/ghl2hs/internal/logger"
	"github.com/lherron/ghl2hs/internal/store"
	"github.com/lherron/ghl2hs/internal/testutil"
)

func salesPipelines() []hubspot.Pipeline {
	return []hubspot.Pipeline{
		{ID: "renewals", Label: "Renewals", DisplayOrder: 1, Stages: []hubspot.Stage{
			{ID: "r1", DisplayOrder: 0},
		}},
		{ID: "default", Label: "Sales", DisplayOrder: 0, Stages: []hubspot.Stage{
			{ID: "closedwon", DisplayOrder: 0, Metadata: map[string]string{"isClosed": "true"}},
			{ID: "qualified", DisplayOrder: 2},
			{ID: "appointmentscheduled", DisplayOrder: 1},
		}},
	}
}

func TestOpportunityWithoutStageIsSkipped(t *testing.T) {
	s, dest, e := setup(t)
	testutil.Stage(t, s, domain.EntityOpportunities, obj{"id": "o1", "name": "Big deal"})
	ctx := context.Background()

	sum, err := e.Run(ctx, StreamConfig{Entity: domain.EntityOpportunities})
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Skipped[domain.SkipMissingStage])
	assert.Equal(t, 0, sum.Errors)
	assert.Empty(t, dest.creates)

	f, err := s.GetFailure(ctx, domain.EntityOpportunities, "o1")
	require.NoError(t, err)
	assert.Equal(t, "missing dealstage", f.Reason)
}

func TestOpportunityUsesDefaultPipelineAndInheritsApexID(t *testing.T) {
	s, dest, e := setup(t)
	dest.pipelines = salesPipelines()
	ctx := context.Background()

	testutil.Stage(t, s, domain.EntityCustomFields,
		obj{"id": "fApex", "name": "Apex ID", "fieldKey": "contact.apex_id", "dataType": "TEXT", "model": "contact"},
	)
	testutil.Stage(t, s, domain.EntityContacts, obj{
		"id": "c1", "email": "jane@x.com", "firstName": "jane", "companyName": "Acme",
		"customField": []interface{}{obj{"id": "fApex", "value": "APX-1"}},
	})
	testutil.Stage(t, s, domain.EntityOpportunities,
		obj{"id": "o1", "name": "Big deal", "contactId": "c1", "monetaryValue": 1500, "status": "open"},
		obj{"id": "o2", "name": "Orphan", "contactId": "c-unknown"},
	)

	_, err := e.Run(ctx, StreamConfig{Entity: domain.EntityContacts})
	require.NoError(t, err)
	company := dest.createsOf(domain.ObjectCompany)
	require.Len(t, company, 1)
	assert.Equal(t, "APX-1", company[0].Properties["apex_id"])
	assert.Equal(t, "Acme", company[0].Properties["name"])

	sum, err := e.Run(ctx, StreamConfig{Entity: domain.EntityOpportunities})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Created)

	deals := dest.createsOf(domain.ObjectDeal)
	require.Len(t, deals, 2)
	assert.Equal(t, "default", deals[0].Properties["pipeline"])
	assert.Equal(t, "appointmentscheduled", deals[0].Properties["dealstage"])
	assert.Equal(t, "1500", deals[0].Properties["amount"])
	assert.Equal(t, "APX-1", deals[0].Properties["apex_id"])
	assert.Equal(t, "o1", deals[0].Properties["ghl_opportunity_id"])
	assert.Equal(t, 1, dest.pipeCalls, "pipelines are looked up once per run")

	// the orphan is created but its missing contact is recorded
	f, err := s.GetFailure(ctx, domain.EntityOpportunities, "o2")
	require.NoError(t, err)
	assert.Equal(t, "missing mapping", f.Reason)
	assert.Contains(t, f.Detail, "c-unknown")
}

func TestOpportunityConfiguredStageWins(t *testing.T) {
	s, dest, e := setup(t)
	dest.pipelines = salesPipelines()
	testutil.Stage(t, s, domain.EntityOpportunities, obj{"id": "o1", "name": "Deal"})

	_, err := e.Run(context.Background(), StreamConfig{Entity: domain.EntityOpportunities, DealStage: "custom-stage", Pipeline: "p9"})
	require.NoError(t, err)

	deals := dest.createsOf(domain.ObjectDeal)
	require.Len(t, deals, 1)
	assert.Equal(t, "custom-stage", deals[0].Properties["dealstage"])
	assert.Equal(t, "p9", deals[0].Properties["pipeline"])
	assert.Equal(t, 0, dest.pipeCalls)
}

func TestCompanyRequiresName(t *testing.T) {
	s, dest, e := setup(t)
	testutil.Stage(t, s, domain.EntityCompanies,
		obj{"id": "b1", "name": "Acme", "website": "acme.test"},
		obj{"id": "b2", "name": "  "},
	)

	sum, err := e.Run(context.Background(), StreamConfig{Entity: domain.EntityCompanies})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Created)
	assert.Equal(t, 1, sum.Skipped[domain.SkipMissingName])
	require.Len(t, dest.creates, 1)
	assert.Equal(t, "b1", dest.creates[0].Properties["ghl_business_id"])
}

func TestCalendarsUseConfiguredObject(t *testing.T) {
	s, dest, e := setup(t)
	testutil.Stage(t, s, domain.EntityCalendars, obj{"id": "cal1", "name": "Consults", "isActive": true})

	sum, err := e.Run(context.Background(), StreamConfig{Entity: domain.EntityCalendars, CalendarObject: "2-123"})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Created)
	require.Len(t, dest.creates, 1)
	assert.Equal(t, domain.ObjectType("2-123"), dest.creates[0].ObjectType)
	assert.Equal(t, "true", dest.creates[0].Properties["is_active"])
	assert.NotEmpty(t, mapping(t, s, "cal1", "2-123"))
}

func TestAppointmentsBecomeMeetings(t *testing.T) {
	s, dest, e := setup(t)
	ctx := context.Background()
	require.NoError(t, s.PutMapping(ctx, domain.IdentityMapping{SourceID: "c1", DestinationID: "501", ObjectType: domain.ObjectContact}))
	testutil.Stage(t, s, domain.EntityAppointments,
		obj{"id": "a1", "title": "Consult", "contactId": "c1", "calendarId": "cal1",
			"startTime": "2024-03-01T15:00:00Z", "endTime": "2024-03-01T15:30:00Z", "appointmentStatus": "no_show"},
		obj{"id": "a2", "contactId": "c1", "startTime": "2024-03-02T15:00:00Z", "appointmentStatus": "invalid"},
		obj{"id": "a3", "contactId": "c1"},
	)

	sum, err := e.Run(ctx, StreamConfig{Entity: domain.EntityAppointments, CalendarObject: "2-123"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Created)
	assert.Equal(t, 1, sum.Skipped[domain.SkipMissingTimestamp])

	meetings := dest.createsOf(domain.ObjectMeeting)
	require.Len(t, meetings, 2)
	assert.Equal(t, "NO_SHOW", meetings[0].Properties["hs_meeting_outcome"])
	assert.Equal(t, "2024-03-01T15:00:00.000Z", meetings[0].Properties["hs_timestamp"])
	assert.Equal(t, "2024-03-01T15:30:00.000Z", meetings[0].Properties["hs_meeting_end_time"])
	_, hasOutcome := meetings[1].Properties["hs_meeting_outcome"]
	assert.False(t, hasOutcome, "unrecognized status must be omitted")

	// the calendar was never migrated: recorded, not fatal
	f, err := s.GetFailure(ctx, domain.EntityAppointments, "a1")
	require.NoError(t, err)
	assert.Equal(t, "missing mapping", f.Reason)
}

func TestNotesRequireBodyAndContact(t *testing.T) {
	s, dest, e := setup(t)
	ctx := context.Background()
	require.NoError(t, s.PutMapping(ctx, domain.IdentityMapping{SourceID: "c1", DestinationID: "501", ObjectType: domain.ObjectContact}))
	testutil.Stage(t, s, domain.EntityContacts, obj{"id": "c1"}, obj{"id": "c9"})
	testutil.Stage(t, s, domain.EntityNotes,
		obj{"id": "n1", "contactId": "c1", "body": "called back", "dateAdded": "2024-01-02T03:04:05Z"},
		obj{"id": "n2", "contactId": "c1", "body": "   "},
		obj{"id": "n3", "contactId": "c9", "bodyHtml": "<p>hi</p>"},
	)

	sum, err := e.Run(ctx, StreamConfig{Entity: domain.EntityNotes})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Created)
	assert.Equal(t, 1, sum.Skipped[domain.SkipEmptyBody])
	assert.Equal(t, 1, sum.Skipped[domain.SkipMissingMapping])

	notes := dest.createsOf(domain.ObjectNote)
	require.Len(t, notes, 1)
	assert.Equal(t, "called back", notes[0].Properties["hs_note_body"])
	require.Len(t, dest.associates, 1)
	assert.Equal(t, "501", dest.associates[0].ToID)
}

func TestNotesResumeInsideAContact(t *testing.T) {
	s, dest, e := setup(t)
	ctx := context.Background()
	require.NoError(t, s.PutMapping(ctx, domain.IdentityMapping{SourceID: "c1", DestinationID: "501", ObjectType: domain.ObjectContact}))
	require.NoError(t, s.PutMapping(ctx, domain.IdentityMapping{SourceID: "c2", DestinationID: "502", ObjectType: domain.ObjectContact}))
	testutil.Stage(t, s, domain.EntityContacts, obj{"id": "c1"}, obj{"id": "c2"})
	// n3 is staged first but notes follow contact order
	testutil.Stage(t, s, domain.EntityNotes,
		obj{"id": "n3", "contactId": "c2", "body": "third"},
		obj{"id": "n1", "contactId": "c1", "body": "first"},
		obj{"id": "n2", "contactId": "c1", "body": "second"},
		obj{"id": "n4", "body": "orphan"},
	)

	first, err := e.Run(ctx, StreamConfig{Entity: domain.EntityNotes, Resume: true, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	cp, err := s.GetCheckpoint(ctx, "notes")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "", cp.LastKey, "first contact is still in progress")
	assert.NotEmpty(t, cp.LastSubKey)

	second, err := e.Run(ctx, StreamConfig{Entity: domain.EntityNotes, Resume: true})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Processed, "orphan notes are never visited")
	assert.Equal(t, 2, second.Created)
	assert.Equal(t, 0, second.SkippedAlreadyMapped)

	notes := dest.createsOf(domain.ObjectNote)
	require.Len(t, notes, 3)
	assert.Equal(t, "first", notes[0].Properties["hs_note_body"])
	assert.Equal(t, "second", notes[1].Properties["hs_note_body"])
	assert.Equal(t, "third", notes[2].Properties["hs_note_body"])

	c2, err := s.GetDocument(ctx, domain.EntityContacts, "c2")
	require.NoError(t, err)
	cp, err = s.GetCheckpoint(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, c2.Key, cp.LastKey)
	assert.Equal(t, "", cp.LastSubKey)
}

func stageConversations(t *testing.T, s *store.Store) {
	t.Helper()
	testutil.Stage(t, s, domain.EntityConversations,
		obj{"id": "cv1", "contactId": "c1"},
		obj{"id": "cv2", "contactId": "c1"},
		obj{"id": "cv3", "contactId": "c-missing"},
	)
	testutil.Stage(t, s, domain.EntityMessages,
		obj{"id": "m1", "conversationId": "cv1", "messageType": "TYPE_SMS", "direction": "inbound", "body": "hello", "dateAdded": "2024-01-01T10:00:00Z"},
		obj{"id": "m2", "conversationId": "cv1", "type": 3, "direction": "outbound", "body": "quote", "dateAdded": "2024-01-01T11:00:00Z"},
		obj{"id": "m3", "conversationId": "cv2", "messageType": "TYPE_CALL", "meta": obj{"call": obj{"duration": 42}}, "dateAdded": "2024-01-02T10:00:00Z"},
		obj{"id": "m4", "conversationId": "cv3", "messageType": "TYPE_SMS", "body": "lost", "dateAdded": "2024-01-03T10:00:00Z"},
	)
}

func TestConversationsResumeInsideAConversation(t *testing.T) {
	s, dest, e := setup(t)
	ctx := context.Background()
	require.NoError(t, s.PutMapping(ctx, domain.IdentityMapping{SourceID: "c1", DestinationID: "501", ObjectType: domain.ObjectContact}))
	stageConversations(t, s)

	first, err := e.Run(ctx, StreamConfig{Entity: domain.EntityConversations, Resume: true, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Created)

	cp, err := s.GetCheckpoint(ctx, "conversations")
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "", cp.LastKey, "first conversation is still in progress")
	assert.NotEmpty(t, cp.LastSubKey)

	second, err := e.Run(ctx, StreamConfig{Entity: domain.EntityConversations, Resume: true})
	require.NoError(t, err)
	assert.Equal(t, 3, second.Processed)
	assert.Equal(t, 2, second.Created)
	assert.Equal(t, 1, second.Skipped[domain.SkipMissingMapping])
	assert.Equal(t, 0, second.SkippedAlreadyMapped)

	require.Len(t, dest.createsOf(domain.ObjectNote), 1)
	require.Len(t, dest.createsOf(domain.ObjectEmail), 1)
	calls := dest.createsOf(domain.ObjectCall)
	require.Len(t, calls, 1)
	assert.Equal(t, "42000", calls[0].Properties["hs_call_duration"])

	email := dest.createsOf(domain.ObjectEmail)[0]
	assert.Equal(t, "EMAIL", email.Properties["hs_email_direction"])
	assert.Equal(t, "cv1", email.Properties["ghl_conversation_id"])

	cv3, err := s.GetDocument(ctx, domain.EntityConversations, "cv3")
	require.NoError(t, err)
	cp, err = s.GetCheckpoint(ctx, "conversations")
	require.NoError(t, err)
	assert.Equal(t, cv3.Key, cp.LastKey)
	assert.Equal(t, "", cp.LastSubKey)
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		name string
		body obj
		want MessageClass
	}{
		{"explicit email", obj{"messageType": "TYPE_EMAIL", "type": 2}, ClassEmail},
		{"explicit call", obj{"messageType": "TYPE_CALL"}, ClassCall},
		{"explicit activity", obj{"messageType": "TYPE_ACTIVITY_CONTACT"}, ClassActivity},
		{"explicit whatsapp", obj{"messageType": "TYPE_WHATSAPP"}, ClassSMS},
		{"explicit instagram short", obj{"messageType": "TYPE_IG"}, ClassSMS},
		{"explicit live chat", obj{"messageType": "TYPE_LIVE_CHAT"}, ClassSMS},
		{"channel facebook", obj{"channel": "facebook"}, ClassSMS},
		{"unrelated ig substring", obj{"messageType": "TYPE_SIGNATURE", "type": 31}, ClassActivity},
		{"unrelated fb substring", obj{"channel": "feedback_form", "type": 3}, ClassEmail},
		{"string type", obj{"type": "Email"}, ClassEmail},
		{"numeric call", obj{"type": 1}, ClassCall},
		{"numeric sms", obj{"type": 2}, ClassSMS},
		{"numeric email", obj{"type": 3}, ClassEmail},
		{"numeric channel", obj{"type": 19}, ClassSMS},
		{"numeric string", obj{"type": "3"}, ClassEmail},
		{"numeric unknown", obj{"type": 31}, ClassActivity},
		{"nothing", obj{}, ClassActivity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyMessage(domain.NewDocument(tt.body)))
		})
	}
}

func TestMeetingOutcome(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"no show", OutcomeNoShow, true},
		{"noshow", OutcomeNoShow, true},
		{"No_Show", OutcomeNoShow, true},
		{"cancelled", OutcomeCanceled, true},
		{"Rescheduled", OutcomeRescheduled, true},
		{"showed", OutcomeCompleted, true},
		{"confirmed", OutcomeScheduled, true},
		{"booked", OutcomeScheduled, true},
		{"Cancelled", OutcomeCanceled, true},
		{"re-schedule", OutcomeRescheduled, true},
		{"invalid", "", false},
		{"abandoned", "", false},
		{"unconfirmed", "", false},
		{"not booked", "", false},
		{"renewal pending", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := MeetingOutcome(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MeetingOutcome(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSelectAssociationType(t *testing.T) {
	types := []hubspot.AssociationType{
		{Category: hubspot.CategoryUserDefined, TypeID: 40, Label: "Billing"},
		{Category: hubspot.CategoryHubSpotDefined, TypeID: 1, Label: "Primary"},
		{Category: hubspot.CategoryHubSpotDefined, TypeID: 279},
	}

	got, ok := selectAssociationType(types, "primary")
	require.True(t, ok)
	assert.Equal(t, 1, got.TypeID)

	got, ok = selectAssociationType(types, "billing")
	require.True(t, ok)
	assert.Equal(t, 40, got.TypeID)

	got, ok = selectAssociationType(types, "")
	require.True(t, ok)
	assert.Equal(t, 279, got.TypeID, "unlabeled platform default wins")

	got, ok = selectAssociationType(types[:2], "unknown")
	require.True(t, ok)
	assert.Equal(t, 1, got.TypeID)

	_, ok = selectAssociationType(types[:1], "")
	assert.False(t, ok)
}

func TestResolveAssociationTypeCachesPerRun(t *testing.T) {
	s, dest, _ := setup(t)
	rc := newRunContext(StreamConfig{StreamID: "x"}.withDefaults(), s, dest, nil, logger.Discard())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := rc.ResolveAssociationType(ctx, domain.ObjectContact, domain.ObjectCompany, PrimaryCompanyLabel)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, dest.labelCalls)

	dest.labels["note->deal"] = nil
	_, err := rc.ResolveAssociationType(ctx, domain.ObjectNote, domain.ObjectDeal, "")
	assert.ErrorIs(t, err, ErrNoAssociationType)
}
