// Package inbound decodes WhatsApp webhook notifications into flat events.
package inbound

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrUnsupportedObject is returned for notifications that are not about a
	// WhatsApp business account.
	ErrUnsupportedObject = errors.New("inbound: unsupported webhook object")
	// ErrEmptyPayload is returned when the body is blank.
	ErrEmptyPayload = errors.New("inbound: payload is empty")
)

// EventType classifies a normalized event.
type EventType string

const (
	EventMessage EventType = "message"
	EventStatus  EventType = "status"
	EventError   EventType = "error"
)

// Event is one message, status update or error from a notification.
type Event struct {
	Type               EventType        `json:"type"`
	BusinessAccountID  string           `json:"business_account_id"`
	PhoneNumberID      string           `json:"phone_number_id,omitempty"`
	DisplayPhoneNumber string           `json:"display_phone_number,omitempty"`
	MessageID          string           `json:"message_id,omitempty"`
	From               string           `json:"from,omitempty"`
	ContactName        string           `json:"contact_name,omitempty"`
	Timestamp          time.Time        `json:"timestamp"`
	MessageType        string           `json:"message_type,omitempty"`
	Text               string           `json:"text,omitempty"`
	Reply              *ReplyItem       `json:"reply,omitempty"`
	Media              *MediaContent    `json:"media,omitempty"`
	Location           *LocationContent `json:"location,omitempty"`
	ReplyTo            string           `json:"reply_to,omitempty"`
	Status             string           `json:"status,omitempty"`
	RecipientID        string           `json:"recipient_id,omitempty"`
	Errors             []WebhookError   `json:"errors,omitempty"`
}

// Notification is a parsed webhook body.
type Notification struct {
	Object string  `json:"object"`
	Events []Event `json:"events"`
}

// Messages returns only the message events.
func (n *Notification) Messages() []Event {
	return n.filter(EventMessage)
}

// Statuses returns only the status events.
func (n *Notification) Statuses() []Event {
	return n.filter(EventStatus)
}

func (n *Notification) filter(t EventType) []Event {
	if n == nil {
		return nil
	}
	var out []Event
	for _, ev := range n.Events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Parse decodes a webhook body. When businessAccountID is set, entries for
// other business accounts are skipped.
func Parse(payload []byte, businessAccountID string) (*Notification, error) {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return nil, ErrEmptyPayload
	}

	var hook Webhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, fmt.Errorf("inbound: decode payload: %w", err)
	}
	if hook.Object != ObjectBusinessAccount {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedObject, hook.Object)
	}

	businessAccountID = strings.TrimSpace(businessAccountID)
	n := &Notification{Object: hook.Object}
	for _, entry := range hook.Entry {
		if businessAccountID != "" && entry.ID != businessAccountID {
			continue
		}
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "messages" {
				continue
			}
			n.Events = append(n.Events, changeEvents(entry.ID, change.Value)...)
		}
	}
	return n, nil
}

func changeEvents(accountID string, v Value) []Event {
	base := Event{
		BusinessAccountID:  accountID,
		PhoneNumberID:      v.Metadata.PhoneNumberID,
		DisplayPhoneNumber: v.Metadata.DisplayPhoneNumber,
	}

	names := make(map[string]string, len(v.Contacts))
	for _, c := range v.Contacts {
		names[c.WaID] = c.Profile.Name
	}

	events := make([]Event, 0, len(v.Messages)+len(v.Statuses)+len(v.Errors))
	for _, m := range v.Messages {
		events = append(events, messageEvent(base, m, names[m.From]))
	}
	for _, s := range v.Statuses {
		ev := base
		ev.Type = EventStatus
		ev.MessageID = s.ID
		ev.Status = s.Status
		ev.RecipientID = s.RecipientID
		ev.Timestamp = unixTime(s.Timestamp)
		ev.Errors = s.Errors
		events = append(events, ev)
	}
	if len(v.Errors) > 0 {
		ev := base
		ev.Type = EventError
		ev.Errors = v.Errors
		events = append(events, ev)
	}
	return events
}

func messageEvent(base Event, m Message, contactName string) Event {
	ev := base
	ev.Type = EventMessage
	ev.MessageID = m.ID
	ev.From = m.From
	ev.ContactName = contactName
	ev.Timestamp = unixTime(m.Timestamp)
	ev.MessageType = m.Type
	ev.Errors = m.Errors
	if m.Context != nil {
		ev.ReplyTo = m.Context.ID
	}

	switch {
	case m.Text != nil:
		ev.Text = m.Text.Body
	case m.Interactive != nil:
		switch {
		case m.Interactive.ButtonReply != nil:
			ev.MessageType = "button_reply"
			ev.Reply = m.Interactive.ButtonReply
		case m.Interactive.ListReply != nil:
			ev.MessageType = "list_reply"
			ev.Reply = m.Interactive.ListReply
		}
	case m.Button != nil:
		ev.Text = m.Button.Text
		ev.Reply = &ReplyItem{ID: m.Button.Payload, Title: m.Button.Text}
	case m.Location != nil:
		ev.Location = m.Location
	case m.Reaction != nil:
		ev.Text = m.Reaction.Emoji
		ev.ReplyTo = m.Reaction.MessageID
	default:
		ev.Media = firstMedia(m.Image, m.Document, m.Video, m.Audio, m.Sticker)
		if ev.Media != nil {
			ev.Text = ev.Media.Caption
		}
	}
	return ev
}

func firstMedia(items ...*MediaContent) *MediaContent {
	for _, item := range items {
		if item != nil {
			return item
		}
	}
	return nil
}

func unixTime(raw string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0).UTC()
}
