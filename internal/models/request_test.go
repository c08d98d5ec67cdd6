package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/message"
)

func TestOutboundRequestPayloadFillsRecipient(t *testing.T) {
	raw := `{
		"message_id": "b0c9c2b0-1f3a-4d2d-9e3f-123456789abc",
		"kind": "text",
		"to": "15551234567",
		"created_at": "2025-10-11T10:00:00Z",
		"text": {"message": "hello"}
	}`
	var req OutboundRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("decode: %v", err)
	}

	got, err := req.Payload()
	if err != nil {
		t.Fatalf("unexpected payload error: %v", err)
	}
	text, ok := got.(message.Text)
	if !ok {
		t.Fatalf("expected message.Text, got %T", got)
	}
	if text.To != "15551234567" || text.Message != "hello" {
		t.Fatalf("unexpected text %+v", text)
	}
	if req.Text.To != "" {
		t.Fatalf("payload must not mutate the request body")
	}
}

func TestOutboundRequestPayloadKeepsBodyRecipient(t *testing.T) {
	req := OutboundRequest{
		Kind: message.KindText,
		To:   "15550000000",
		Text: &message.Text{To: "15551111111", Message: "hi"},
	}
	got, err := req.Payload()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.(message.Text).To != "15551111111" {
		t.Fatalf("expected body recipient to win, got %+v", got)
	}
}

func TestOutboundRequestPayloadContactNeedsNoBody(t *testing.T) {
	req := OutboundRequest{Kind: message.KindContact, To: "15551234567"}
	got, err := req.Payload()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c, ok := got.(message.Contact); !ok || c.To != "15551234567" {
		t.Fatalf("unexpected contact %+v", got)
	}
}

func TestOutboundRequestPayloadMismatch(t *testing.T) {
	cases := map[string]OutboundRequest{
		"missing body": {Kind: message.KindImage, To: "1"},
		"wrong body":   {Kind: message.KindText, Read: &message.ReadReceipt{MessageID: "wamid"}},
		"two bodies": {
			Kind: message.KindText,
			Text: &message.Text{Message: "a"},
			Read: &message.ReadReceipt{MessageID: "wamid"},
		},
	}
	for name, req := range cases {
		if _, err := req.Payload(); !errors.Is(err, ErrKindMismatch) {
			t.Fatalf("%s: expected ErrKindMismatch, got %v", name, err)
		}
	}

	if _, err := (&OutboundRequest{}).Payload(); err == nil {
		t.Fatalf("expected error for missing kind")
	}
	if _, err := (&OutboundRequest{Kind: "sticker"}).Payload(); err == nil {
		t.Fatalf("expected error for unsupported kind")
	}
}

func TestOriginalMessage(t *testing.T) {
	if got := string(OriginalMessage([]byte(`{"a":1}`))); got != `{"a":1}` {
		t.Fatalf("expected json to pass through, got %s", got)
	}
	if got := string(OriginalMessage([]byte("not json"))); got != `"not json"` {
		t.Fatalf("expected quoted string, got %s", got)
	}
	if OriginalMessage(nil) != nil {
		t.Fatalf("expected nil for empty payload")
	}
}
