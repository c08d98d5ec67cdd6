// Package response turns raw transport outcomes into the uniform
// success/failure shape returned by every client operation.
package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/transport"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Graph API error codes that signal throttling rather than a bad request.
var throttlingCodes = map[int]struct{}{
	4:      {},
	80007:  {},
	130429: {},
	131048: {},
	131056: {},
}

// Result is a successful provider answer.
type Result struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Success wraps a provider payload.
func Success(data json.RawMessage) *Result {
	return &Result{Status: StatusSuccess, Data: data}
}

// Decode unmarshals the payload into v.
func (r *Result) Decode(v any) error {
	if r == nil || len(r.Data) == 0 {
		return errors.New("response: result has no data")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("response: decode data: %w", err)
	}
	return nil
}

// MessageIDs returns the ids of the messages the provider accepted.
func (r *Result) MessageIDs() []string {
	var body struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if r == nil || json.Unmarshal(r.Data, &body) != nil {
		return nil
	}
	ids := make([]string, 0, len(body.Messages))
	for _, m := range body.Messages {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Failure is a provider or transport failure. Fields holds the provider's
// structured error object, or {"error": <raw body>} when the body was not JSON.
type Failure struct {
	StatusCode int
	Fields     map[string]any
	cause      error
}

// Status always reports StatusFailed.
func (f *Failure) Status() string { return StatusFailed }

// Message returns the most descriptive text available for the failure.
func (f *Failure) Message() string {
	if s, ok := f.Fields["message"].(string); ok && s != "" {
		return s
	}
	if s, ok := f.Fields["error"].(string); ok && s != "" {
		return s
	}
	if f.cause != nil {
		return f.cause.Error()
	}
	if f.StatusCode != 0 {
		return http.StatusText(f.StatusCode)
	}
	return "unknown failure"
}

// Code returns the provider error code, or 0 when absent.
func (f *Failure) Code() int {
	if v, ok := f.Fields["code"].(float64); ok {
		return int(v)
	}
	return 0
}

// Transient reports whether retrying the same request may succeed.
func (f *Failure) Transient() bool {
	if _, ok := throttlingCodes[f.Code()]; ok {
		return true
	}
	switch {
	case f.StatusCode == 0:
		return true
	case f.StatusCode == http.StatusTooManyRequests:
		return true
	case f.StatusCode >= 500:
		return true
	}
	return false
}

func (f *Failure) Error() string {
	if code := f.Code(); code != 0 {
		return fmt.Sprintf("response: provider request failed (code %d): %s", code, f.Message())
	}
	return "response: provider request failed: " + f.Message()
}

// Unwrap exposes the transport error, if any.
func (f *Failure) Unwrap() error { return f.cause }

// MarshalJSON renders {"status":"failed", ...fields}.
func (f *Failure) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.Fields)+1)
	for k, v := range f.Fields {
		out[k] = v
	}
	out["status"] = StatusFailed
	return json.Marshal(out)
}

// FieldNames lists the failure fields in sorted order.
func (f *Failure) FieldNames() []string {
	names := make([]string, 0, len(f.Fields))
	for k := range f.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Normalize converts a raw outcome into a Result or a *Failure.
func Normalize(outcome *transport.RawOutcome) (*Result, error) {
	if outcome == nil {
		return nil, &Failure{Fields: map[string]any{"error": "no response from transport"}}
	}

	if !outcome.Failed() {
		return Success(payload(outcome.Body)), nil
	}

	fields := extractError(outcome.Body)
	if fields == nil {
		text := string(outcome.Body)
		if text == "" && outcome.Err != nil {
			text = outcome.Err.Error()
		}
		fields = map[string]any{"error": text}
	}

	return nil, &Failure{
		StatusCode: outcome.StatusCode,
		Fields:     fields,
		cause:      outcome.Err,
	}
}

func payload(body []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return quoted
}

// extractError prefers the provider's nested "error" object and falls back to
// the whole JSON object. Non-JSON bodies yield nil.
func extractError(body []byte) map[string]any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return nil
	}
	if nested, ok := parsed["error"].(map[string]any); ok {
		return nested
	}
	return parsed
}
