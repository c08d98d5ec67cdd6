package models

import "time"

// Lifecycle of a dispatch request as seen on the status topic. queued and
// attempt are progress markers; sent, rejected, rate_limited, failed and dlq
// close the request.
const (
	StatusEventQueued      = "queued"
	StatusEventAttempt     = "attempt"
	StatusEventSent        = "sent"
	StatusEventRejected    = "rejected"
	StatusEventRateLimited = "rate_limited"
	StatusEventFailed      = "failed"
	StatusEventDLQ         = "dlq"
)

// ProviderResponse is the Graph API answer for one send attempt, condensed so
// status consumers never parse Graph error envelopes themselves.
type ProviderResponse struct {
	// Status is sent, rejected, rate_limited or unknown.
	Status string `json:"status"`
	// Code is the Graph error code (e.g. 131030, 130429); nil on success.
	Code *int `json:"code,omitempty"`
	// Message is the Graph error message.
	Message string `json:"message,omitempty"`
	// Raw is the response body, truncated.
	Raw string `json:"raw,omitempty"`
	// Meta carries provider_id (the wamid), http_status, type, fbtrace_id
	// or the invalid field name, depending on the outcome.
	Meta map[string]string `json:"meta,omitempty"`
}

// StatusEvent is one lifecycle update for a dispatch request, keyed by the
// request's message id on the status topic.
type StatusEvent struct {
	MessageID        string            `json:"message_id"`
	Channel          string            `json:"channel"`
	Kind             string            `json:"kind,omitempty"`
	EventType        string            `json:"event_type"`
	Attempt          int               `json:"attempt,omitempty"`
	ProviderResponse *ProviderResponse `json:"provider_response,omitempty"`
	Error            string            `json:"error,omitempty"`
	DurationMS       int64             `json:"duration_ms,omitempty"`
	TraceID          string            `json:"trace_id,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

// Terminal reports whether no further events follow for the request.
func (e StatusEvent) Terminal() bool {
	switch e.EventType {
	case StatusEventQueued, StatusEventAttempt:
		return false
	}
	return true
}
