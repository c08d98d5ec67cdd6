package whatsappvalidator_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/config"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/message"
	"github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/util"
	whatsappvalidator "github.com/alexcraviotto/whatsappcloudapi-wrapper/internal/worker/validator/whatsapp"
)

const validID = "b0c9c2b0-1f3a-4d2d-9e3f-123456789abc"

func newValidator() *whatsappvalidator.Validator {
	return whatsappvalidator.New(config.ValidationConfig{
		MetaMaxEntries:  2,
		MetaMaxKeyLen:   16,
		MetaMaxValueLen: 32,
	}, zerolog.Nop())
}

func TestParseAndValidateText(t *testing.T) {
	payload := `{
		"message_id": "` + validID + `",
		"channel": "WhatsApp",
		"kind": "text",
		"to": "+1 (555) 123-4567",
		"created_at": "2025-10-11T12:00:00+02:00",
		"trace_id": " trace-1 ",
		"meta": {" campaign ": " spring "},
		"text": {"message": "hello"}
	}`

	msg, err := newValidator().ParseAndValidate(context.Background(), "whatsapp", []byte(payload))
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if msg.Channel != "whatsapp" || msg.MessageID != validID || msg.TraceID != "trace-1" {
		t.Fatalf("unexpected envelope %+v", msg)
	}
	if msg.Kind != message.KindText {
		t.Fatalf("unexpected kind %q", msg.Kind)
	}
	if msg.CreatedAt.Location().String() != "UTC" || msg.CreatedAt.Hour() != 10 {
		t.Fatalf("expected created_at in UTC, got %v", msg.CreatedAt)
	}
	if msg.Metadata["campaign"] != "spring" {
		t.Fatalf("expected trimmed metadata, got %+v", msg.Metadata)
	}

	text, ok := msg.Request.(message.Text)
	if !ok {
		t.Fatalf("expected message.Text, got %T", msg.Request)
	}
	if text.To != "15551234567" || text.Message != "hello" {
		t.Fatalf("unexpected text %+v", text)
	}
	if string(msg.RawPayload) != payload {
		t.Fatalf("expected raw payload retained")
	}
}

func TestParseAndValidateNormalizesBodyRecipient(t *testing.T) {
	payload := `{
		"message_id": "` + validID + `",
		"kind": "location",
		"created_at": "2025-10-11T10:00:00Z",
		"location": {"to": "+44 20 7946 0958", "latitude": 51.5, "longitude": -0.12, "name": "Office", "address": "London"}
	}`

	msg, err := newValidator().ParseAndValidate(context.Background(), "whatsapp", []byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loc := msg.Request.(message.Location)
	if loc.To != "442079460958" {
		t.Fatalf("expected normalized recipient, got %q", loc.To)
	}
	if msg.Channel != "whatsapp" {
		t.Fatalf("expected channel default, got %q", msg.Channel)
	}
}

func TestParseAndValidateReadReceipt(t *testing.T) {
	payload := `{"message_id":"` + validID + `","kind":"read","created_at":"2025-10-11T10:00:00Z","read":{"message_id":"wamid.ABC"}}`

	msg, err := newValidator().ParseAndValidate(context.Background(), "whatsapp", []byte(payload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r, ok := msg.Request.(message.ReadReceipt); !ok || r.MessageID != "wamid.ABC" {
		t.Fatalf("unexpected request %+v", msg.Request)
	}
}

func TestParseAndValidateRejects(t *testing.T) {
	base := func(fields string) string {
		return `{"message_id":"` + validID + `","created_at":"2025-10-11T10:00:00Z",` + fields + `}`
	}

	cases := []struct {
		name    string
		payload string
		want    string
	}{
		{"empty", "  ", "payload is empty"},
		{"not json", "nope", "decode"},
		{"unknown field", base(`"kind":"text","to":"15551234567","text":{"message":"x"},"extra":1`), "decode"},
		{"channel mismatch", base(`"channel":"sms","kind":"text","to":"15551234567","text":{"message":"x"}`), "channel mismatch"},
		{"bad uuid", `{"message_id":"123","created_at":"2025-10-11T10:00:00Z","kind":"text","to":"15551234567","text":{"message":"x"}}`, "message_id"},
		{"missing created_at", `{"message_id":"` + validID + `","kind":"text","to":"15551234567","text":{"message":"x"}}`, "created_at"},
		{"bad recipient", base(`"kind":"text","to":"call-me","text":{"message":"x"}`), "to"},
		{"kind mismatch", base(`"kind":"image","to":"15551234567","text":{"message":"x"}`), "does not match kind"},
		{"too much meta", base(`"kind":"contact","to":"15551234567","meta":{"a":"1","b":"2","c":"3"}`), "metadata"},
		{"message rule", base(`"kind":"buttons","to":"15551234567","buttons":{"message":"pick","buttons":[]}`), "buttons"},
	}

	v := newValidator()
	for _, tc := range cases {
		_, err := v.ParseAndValidate(context.Background(), "whatsapp", []byte(tc.payload))
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v", tc.name, tc.want, err)
		}
	}
}

func TestParseAndValidateWrapsTypedErrors(t *testing.T) {
	v := newValidator()

	payload := `{"message_id":"` + validID + `","created_at":"2025-10-11T10:00:00Z","kind":"text","to":"15551234567","text":{"message":""}}`
	msg, err := v.ParseAndValidate(context.Background(), "whatsapp", []byte(payload))
	var verr *message.ValidationError
	if !errors.As(err, &verr) || verr.Field != "message" {
		t.Fatalf("expected message validation error, got %v", err)
	}
	if msg == nil || msg.MessageID != validID {
		t.Fatalf("expected partial message with request id, got %+v", msg)
	}

	payload = `{"message_id":"` + validID + `","created_at":"2025-10-11T10:00:00Z","kind":"text","to":"0000","text":{"message":"x"}}`
	if _, err := v.ParseAndValidate(context.Background(), "whatsapp", []byte(payload)); !errors.Is(err, util.ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
}

func TestParseAndValidateHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newValidator().ParseAndValidate(ctx, "whatsapp", []byte("{}")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}
