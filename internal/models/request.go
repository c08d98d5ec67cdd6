package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/message"
)

// ChannelWhatsApp is the only channel the dispatch worker serves.
const ChannelWhatsApp = "whatsapp"

// BaseRequest captures the envelope attributes shared by every dispatch
// request regardless of the message kind.
type BaseRequest struct {
	MessageID string            `json:"message_id"`
	Channel   string            `json:"channel,omitempty"`
	TenantID  string            `json:"tenant_id,omitempty"`
	TraceID   string            `json:"trace_id,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// MessageRequest exposes the envelope metadata.
type MessageRequest interface {
	GetMessageID() string
	GetChannel() string
	GetTraceID() string
	GetCreatedAt() time.Time
	GetMeta() map[string]string
}

// GetMessageID returns the UUID of the dispatch request.
func (b BaseRequest) GetMessageID() string { return b.MessageID }

// GetChannel returns the request channel.
func (b BaseRequest) GetChannel() string { return b.Channel }

// GetTraceID returns the trace identifier attached to the request if any.
func (b BaseRequest) GetTraceID() string { return b.TraceID }

// GetCreatedAt returns the timestamp the request was created.
func (b BaseRequest) GetCreatedAt() time.Time { return b.CreatedAt }

// GetMeta returns the arbitrary metadata attached to the request.
func (b BaseRequest) GetMeta() map[string]string { return b.Meta }

// OutboundRequest is the Kafka payload consumed by the dispatch worker. Kind
// selects which of the body fields is used; exactly that one must be set,
// except for contact which only needs the envelope recipient.
type OutboundRequest struct {
	BaseRequest
	Kind     message.Kind         `json:"kind"`
	To       string               `json:"to,omitempty"`
	Text     *message.Text        `json:"text,omitempty"`
	Buttons  *message.Buttons     `json:"buttons,omitempty"`
	List     *message.List        `json:"list,omitempty"`
	Image    *message.Image       `json:"image,omitempty"`
	Document *message.Document    `json:"document,omitempty"`
	Location *message.Location    `json:"location,omitempty"`
	Contact  *message.Contact     `json:"contact,omitempty"`
	Read     *message.ReadReceipt `json:"read,omitempty"`
}

// ErrKindMismatch is returned when the body fields do not match Kind.
var ErrKindMismatch = errors.New("models: body does not match kind")

// Payload returns the message request selected by Kind. The envelope
// recipient fills in a body that leaves "to" empty.
func (r *OutboundRequest) Payload() (message.Request, error) {
	if n := r.bodies(); n > 1 {
		return nil, fmt.Errorf("%w: %d bodies set", ErrKindMismatch, n)
	}

	to := strings.TrimSpace(r.To)
	fill := func(v *string) {
		if strings.TrimSpace(*v) == "" {
			*v = to
		}
	}

	switch r.Kind {
	case message.KindText:
		if r.Text == nil {
			break
		}
		m := *r.Text
		fill(&m.To)
		return m, nil
	case message.KindButtons:
		if r.Buttons == nil {
			break
		}
		m := *r.Buttons
		fill(&m.To)
		return m, nil
	case message.KindList:
		if r.List == nil {
			break
		}
		m := *r.List
		fill(&m.To)
		return m, nil
	case message.KindImage:
		if r.Image == nil {
			break
		}
		m := *r.Image
		fill(&m.To)
		return m, nil
	case message.KindDocument:
		if r.Document == nil {
			break
		}
		m := *r.Document
		fill(&m.To)
		return m, nil
	case message.KindLocation:
		if r.Location == nil {
			break
		}
		m := *r.Location
		fill(&m.To)
		return m, nil
	case message.KindContact:
		m := message.Contact{}
		if r.Contact != nil {
			m = *r.Contact
		}
		fill(&m.To)
		return m, nil
	case message.KindRead:
		if r.Read == nil {
			break
		}
		return *r.Read, nil
	case "":
		return nil, errors.New("models: kind is required")
	default:
		return nil, fmt.Errorf("models: unsupported kind %q", r.Kind)
	}
	return nil, fmt.Errorf("%w: %s body is missing", ErrKindMismatch, r.Kind)
}

func (r *OutboundRequest) bodies() int {
	n := 0
	for _, set := range []bool{
		r.Text != nil, r.Buttons != nil, r.List != nil, r.Image != nil,
		r.Document != nil, r.Location != nil, r.Contact != nil, r.Read != nil,
	} {
		if set {
			n++
		}
	}
	return n
}
