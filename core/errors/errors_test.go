package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestNewReportsKind(t *testing.T) {
	errBadSeeds := New(ErrPreconditionFailure, "invalid seeds")
	wrapped := fmt.Errorf("initialize: %w", errBadSeeds)
	if !stderrors.Is(wrapped, errBadSeeds) {
		t.Fatalf("expected wrapped error to match sentinel")
	}
	if !stderrors.Is(wrapped, ErrPreconditionFailure) {
		t.Fatalf("expected wrapped error to match kind")
	}
	if stderrors.Is(wrapped, ErrCredentialInvalid) {
		t.Fatalf("unexpected kind match")
	}
	if got := Kind(wrapped); got != ErrPreconditionFailure {
		t.Fatalf("unexpected kind: %v", got)
	}
	if errBadSeeds.Error() != "invalid seeds" {
		t.Fatalf("unexpected message: %q", errBadSeeds.Error())
	}
}

func TestKindLabel(t *testing.T) {
	cases := map[error]string{
		New(ErrMalformedInput, "x"):     "malformed_input",
		New(ErrResolutionMismatch, "x"): "resolution_mismatch",
		New(ErrAllocationConflict, "x"): "allocation_conflict",
		stderrors.New("other"):          "unknown",
	}
	for err, want := range cases {
		if got := KindLabel(err); got != want {
			t.Fatalf("KindLabel(%v) = %q, want %q", err, got, want)
		}
	}
}
