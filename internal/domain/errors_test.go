package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwrapsWrappedDomainError(t *testing.T) {
	base := NotFound("service billing not found")
	wrapped := fmt.Errorf("registering subscription: %w", base)

	if KindOf(wrapped) != KindNotFound {
		t.Fatalf("expected KindNotFound, got %s", KindOf(wrapped))
	}
}

func TestKindOfReturnsEmptyForNonDomainError(t *testing.T) {
	if KindOf(errors.New("plain error")) != "" {
		t.Fatalf("expected empty Kind for a non-domain error")
	}
}

func TestKindOfReturnsEmptyForNil(t *testing.T) {
	if KindOf(nil) != "" {
		t.Fatalf("expected empty Kind for nil error")
	}
}

func TestPersistenceWrapsUnderlyingError(t *testing.T) {
	underlying := errors.New("connection refused")
	err := Persistence("failed to save", underlying)

	if !errors.Is(err, underlying) {
		t.Fatalf("expected Persistence error to wrap the underlying error")
	}
	if KindOf(err) != KindPersistence {
		t.Fatalf("expected KindPersistence, got %s", KindOf(err))
	}
}
