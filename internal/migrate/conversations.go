package migrate

import (
	"context"
	"strconv"
	"strings"

	"github.com/lherron/ghl2hs/internal/domain"
)

// MessageClass is the kind of destination engagement a message becomes
type MessageClass string

const (
	ClassActivity MessageClass = "activity"
	ClassSMS      MessageClass = "sms"
	ClassEmail    MessageClass = "email"
	ClassCall     MessageClass = "call"
)

// ObjectType returns the destination object a message class is created as
func (c MessageClass) ObjectType() domain.ObjectType {
	switch c {
	case ClassEmail:
		return domain.ObjectEmail
	case ClassCall:
		return domain.ObjectCall
	default:
		return domain.ObjectNote
	}
}

var smsChannels = map[string]bool{
	"sms": true, "whatsapp": true, "gmb": true, "facebook": true, "fb": true,
	"instagram": true, "ig": true, "livechat": true, "webchat": true, "custom": true,
}

// isSMSChannel matches whole channel tokens, so "TYPE_IG" and "live_chat"
// match while "signal" or "config" do not.
func isSMSChannel(explicit string) bool {
	name := strings.TrimPrefix(explicit, "type_")
	if smsChannels[strings.NewReplacer("_", "", "-", "", " ", "").Replace(name)] {
		return true
	}
	for _, tok := range strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	}) {
		if smsChannels[tok] {
			return true
		}
	}
	return false
}

// ClassifyMessage assigns a message exactly one class. An explicit type or
// channel string decides first; the legacy numeric type code is the fallback.
func ClassifyMessage(doc domain.Document) MessageClass {
	explicit := strings.ToLower(doc.FirstStr("messageType", "channel"))
	if explicit == "" {
		if s, ok := doc.Value("type").(string); ok {
			if _, err := strconv.Atoi(s); err != nil {
				explicit = strings.ToLower(s)
			}
		}
	}
	if explicit != "" {
		switch {
		case strings.Contains(explicit, "email"):
			return ClassEmail
		case strings.Contains(explicit, "call"), strings.Contains(explicit, "voicemail"):
			return ClassCall
		case strings.Contains(explicit, "activity"), strings.Contains(explicit, "note"):
			return ClassActivity
		}
		if isSMSChannel(explicit) {
			return ClassSMS
		}
	}

	code, ok := doc.Int("type")
	if !ok {
		return ClassActivity
	}
	switch {
	case code == 1:
		return ClassCall
	case code == 2:
		return ClassSMS
	case code == 3:
		return ClassEmail
	case code >= 4 && code <= 24:
		return ClassSMS
	default:
		return ClassActivity
	}
}

// conversationMigrator walks conversations and migrates their messages
type conversationMigrator struct{}

func (conversationMigrator) Entity() domain.EntityType { return domain.EntityConversations }

func (conversationMigrator) ParentCollection() domain.EntityType { return domain.EntityConversations }

func (conversationMigrator) ChildCollection() domain.EntityType { return domain.EntityMessages }

func (conversationMigrator) ObjectType(doc domain.Document) domain.ObjectType {
	return ClassifyMessage(doc).ObjectType()
}

func (conversationMigrator) Plan(ctx context.Context, rc *RunContext, doc domain.Document) (*Plan, error) {
	var parent domain.Document
	if p := rc.Parent(); p != nil {
		parent = *p
	}

	ts, ok := timestampOf(doc, "dateAdded", "dateUpdated")
	if !ok {
		ts, ok = timestampOf(parent, "lastMessageDate", "dateUpdated")
	}
	if !ok {
		return skip(domain.SkipMissingTimestamp, "message %s has no date", doc.ID), nil
	}

	class := ClassifyMessage(doc)
	inbound := strings.EqualFold(doc.Str("direction"), "inbound")

	var props map[string]string
	switch class {
	case ClassEmail:
		props = emailProperties(doc, inbound)
	case ClassCall:
		props = callProperties(doc, inbound)
	case ClassSMS:
		props = noteProperties(smsHeader(doc, inbound), doc.Str("body"))
	default:
		props = noteProperties("Activity", doc.Str("body"))
	}
	props["hs_timestamp"] = hubspotTime(ts)
	props["ghl_message_id"] = doc.ID
	convID := doc.Str("conversationId")
	if convID == "" {
		convID = parent.ID
	}
	setIf(props, "ghl_conversation_id", convID)

	plan := &Plan{ObjectType: class.ObjectType(), Properties: props}
	contactID := doc.Str("contactId")
	if contactID == "" {
		contactID = parent.Str("contactId")
	}
	dealID := doc.Str("opportunityId")
	if dealID == "" {
		dealID = parent.Str("opportunityId")
	}
	if err := plan.optionalAssociation(ctx, rc, contactID, domain.ObjectContact); err != nil {
		return nil, err
	}
	if err := plan.optionalAssociation(ctx, rc, dealID, domain.ObjectDeal); err != nil {
		return nil, err
	}
	if len(plan.Associations) == 0 {
		return skip(domain.SkipMissingMapping, "message %s has neither a migrated contact (%q) nor deal (%q)", doc.ID, contactID, dealID), nil
	}
	return plan, nil
}

func smsHeader(doc domain.Document, inbound bool) string {
	channel := strings.TrimPrefix(strings.ToUpper(doc.FirstStr("messageType", "channel")), "TYPE_")
	if channel == "" {
		channel = "SMS"
	}
	if inbound {
		return channel + " received"
	}
	return channel + " sent"
}

func noteProperties(header, body string) map[string]string {
	body = strings.TrimSpace(body)
	text := "<p><strong>" + header + "</strong></p>"
	if body != "" {
		text += "<p>" + body + "</p>"
	}
	return map[string]string{"hs_note_body": text}
}

func emailProperties(doc domain.Document, inbound bool) map[string]string {
	direction := "EMAIL"
	if inbound {
		direction = "INCOMING_EMAIL"
	}
	props := map[string]string{
		"hs_email_direction": direction,
		"hs_email_status":    "SENT",
	}
	setIf(props, "hs_email_subject", doc.FirstStr("meta.email.subject", "subject"))
	setIf(props, "hs_email_text", doc.Str("body"))
	setIf(props, "hs_email_html", doc.Str("html"))
	return props
}

func callProperties(doc domain.Document, inbound bool) map[string]string {
	direction := "OUTBOUND"
	if inbound {
		direction = "INBOUND"
	}
	props := map[string]string{
		"hs_call_direction": direction,
		"hs_call_status":    "COMPLETED",
		"hs_call_title":     titleWords(strings.ToLower(direction)) + " call",
	}
	if seconds, ok := doc.Int("meta.call.duration"); ok {
		props["hs_call_duration"] = strconv.FormatInt(seconds*1000, 10)
	}
	if status := doc.Str("meta.call.status"); status != "" {
		props["hs_call_disposition_label"] = status
	}
	setIf(props, "hs_call_body", doc.Str("body"))
	return props
}
