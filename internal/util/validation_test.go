package util

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseUUIDv4(t *testing.T) {
	_, err := ParseUUIDv4("b0c9c2b0-1f3a-4d2d-9e3f-123456789abc")
	if err != nil {
		t.Fatalf("expected success parsing valid uuid: %v", err)
	}

	if _, err := ParseUUIDv4(""); !errors.Is(err, ErrInvalidUUID) {
		t.Fatalf("expected ErrInvalidUUID for empty string, got %v", err)
	}

	if _, err := ParseUUIDv4("6fa459ea-ee8a-11d2-90f6-000000000000"); !errors.Is(err, ErrInvalidUUID) {
		t.Fatalf("expected ErrInvalidUUID for non v4 uuid, got %v", err)
	}
}

func TestParseRFC3339(t *testing.T) {
	ts, err := ParseRFC3339("2025-10-11T10:00:00Z")
	if err != nil {
		t.Fatalf("expected success parsing timestamp: %v", err)
	}

	if got := ts.Format(time.RFC3339); got != "2025-10-11T10:00:00Z" {
		t.Fatalf("unexpected timestamp round trip: %s", got)
	}

	if _, err := ParseRFC3339("not-a-time"); !errors.Is(err, ErrInvalidTimestamp) {
		t.Fatalf("expected ErrInvalidTimestamp, got %v", err)
	}
}

func TestNormalizeRecipient(t *testing.T) {
	valid := map[string]string{
		"15551234567":        "15551234567",
		"+15551234567":       "15551234567",
		"+1 (555) 123-4567":  "15551234567",
		" 234 803.555.0100 ": "2348035550100",
	}
	for input, want := range valid {
		got, err := NormalizeRecipient(input)
		if err != nil {
			t.Fatalf("NormalizeRecipient(%q) unexpected error: %v", input, err)
		}
		if got != want {
			t.Fatalf("NormalizeRecipient(%q) = %q, want %q", input, got, want)
		}
	}

	for _, input := range []string{"", "abc", "0123456789", "12345", "+1555123456789012", "1555-CALL-NOW"} {
		if _, err := NormalizeRecipient(input); !errors.Is(err, ErrInvalidRecipient) {
			t.Fatalf("NormalizeRecipient(%q) expected ErrInvalidRecipient, got %v", input, err)
		}
	}
}

func TestValidateMetadata(t *testing.T) {
	meta, err := ValidateMetadata(map[string]string{" key ": " value "}, 5, 10, 10)
	if err != nil {
		t.Fatalf("expected metadata to validate: %v", err)
	}
	if meta["key"] != "value" {
		t.Fatalf("expected trimmed key/value, got %#v", meta)
	}

	if _, err := ValidateMetadata(map[string]string{"a": "1", "b": "2"}, 1, 10, 10); err == nil {
		t.Fatalf("expected error for too many entries")
	}

	if _, err := ValidateMetadata(map[string]string{strings.Repeat("k", 11): "v"}, 5, 10, 10); err == nil {
		t.Fatalf("expected error for long key")
	}

	if _, err := ValidateMetadata(map[string]string{"k": strings.Repeat("v", 11)}, 5, 10, 10); err == nil {
		t.Fatalf("expected error for long value")
	}

	if _, err := ValidateMetadata(map[string]string{"  ": "v"}, 5, 10, 10); err == nil {
		t.Fatalf("expected error for blank key")
	}
}

func TestEnsureMaxBytes(t *testing.T) {
	if err := EnsureMaxBytes("payload", []byte("abc"), 3); err != nil {
		t.Fatalf("expected payload within limit: %v", err)
	}
	if err := EnsureMaxBytes("payload", []byte("abcd"), 3); err == nil {
		t.Fatalf("expected error for oversize payload")
	}
	if err := EnsureMaxBytes("payload", []byte("abcd"), 0); err != nil {
		t.Fatalf("zero limit disables the check: %v", err)
	}
}

func TestValidateHTTPURL(t *testing.T) {
	if _, err := ValidateHTTPURL("https://example.com/a.png"); err != nil {
		t.Fatalf("expected valid url: %v", err)
	}
	for _, input := range []string{"", "ftp://example.com/a", "https://", "/relative/path"} {
		if _, err := ValidateHTTPURL(input); !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("ValidateHTTPURL(%q) expected ErrInvalidURL, got %v", input, err)
		}
	}
}
