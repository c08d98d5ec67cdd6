package common

import (
	"unicode/utf8"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/models"
)

// DefaultRawBodyLimit defines the maximum number of characters retained from a
// provider response body when attaching it to a ProviderResponse.
const DefaultRawBodyLimit = 1024

// Provider response statuses.
const (
	ResponseSent        = "sent"
	ResponseRejected    = "rejected"
	ResponseRateLimited = "rate_limited"
	ResponseUnknown     = "unknown"
)

// ProviderResponse is shared with the status event model.
type ProviderResponse = models.ProviderResponse

// TruncateRaw trims the supplied string to the specified rune limit. If limit
// is zero or negative it returns an empty string.
func TruncateRaw(raw string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit])
}

// IntPtr returns nil for zero so absent codes are omitted from JSON.
func IntPtr(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
