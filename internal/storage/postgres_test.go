package storage

import (
	"errors"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolationMatchesSQLState23505(t *testing.T) {
	err := &pq.Error{Code: "23505"}
	if !isUniqueViolation(err) {
		t.Fatalf("expected SQLSTATE 23505 to be classified as a unique violation")
	}
}

func TestIsUniqueViolationRejectsOtherCodesAndErrors(t *testing.T) {
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Fatalf("expected a foreign key violation to not be classified as unique")
	}
	if isUniqueViolation(errors.New("some other error")) {
		t.Fatalf("expected a non-pq error to not be classified as unique")
	}
}
