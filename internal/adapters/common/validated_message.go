package common

import (
	"time"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/message"
)

// ValidatedMessage is a dispatch request after envelope and message
// validation. Request is ready to hand to the client facade; the remaining
// fields enrich status and DLQ events.
type ValidatedMessage struct {
	Channel      string
	Kind         message.Kind
	MessageID    string
	TraceID      string
	TenantID     string
	CreatedAt    time.Time
	Metadata     map[string]string
	Request      message.Request
	RawPayload   []byte
	Key          []byte
	KafkaHeaders map[string][]byte
}
