package common

import (
	"errors"
	"strings"
	"testing"
)

type retryable struct{ retry bool }

func (r retryable) Error() string   { return "provider said no" }
func (r retryable) Transient() bool { return r.retry }

func TestWrapTransient(t *testing.T) {
	base := errors.New("temporary failure")
	wrapped := WrapTransient(base)

	if !errors.Is(wrapped, ErrTransient) {
		t.Fatalf("expected wrapped error to be transient: %v", wrapped)
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("expected original error to remain in the chain")
	}
	if !strings.Contains(wrapped.Error(), base.Error()) {
		t.Fatalf("expected wrapped error message to include original message")
	}
}

func TestWrapPermanent(t *testing.T) {
	base := errors.New("invalid recipient")
	wrapped := WrapPermanent(base)

	if !errors.Is(wrapped, ErrPermanent) {
		t.Fatalf("expected wrapped error to be permanent: %v", wrapped)
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("expected original error to remain in the chain")
	}
}

func TestWrapNil(t *testing.T) {
	if !errors.Is(WrapTransient(nil), ErrTransient) {
		t.Fatalf("expected nil transient wrap to fall back to ErrTransient")
	}
	if !errors.Is(WrapPermanent(nil), ErrPermanent) {
		t.Fatalf("expected nil permanent wrap to fall back to ErrPermanent")
	}
}

func TestClassify(t *testing.T) {
	if Classify(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	if err := Classify(retryable{retry: true}); !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient, got %v", err)
	}
	if err := Classify(retryable{retry: false}); !errors.Is(err, ErrPermanent) {
		t.Fatalf("expected permanent, got %v", err)
	}
	if err := Classify(errors.New("boom")); !errors.Is(err, ErrPermanent) {
		t.Fatalf("expected unknown errors to be permanent, got %v", err)
	}

	already := WrapTransient(errors.New("x"))
	if Classify(already) != already {
		t.Fatalf("expected classified error to pass through unchanged")
	}

	var r retryable
	if !errors.As(Classify(retryable{retry: true}), &r) {
		t.Fatalf("expected original error reachable through errors.As")
	}
}
