package memory

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKindPredicates(t *testing.T) {
	cases := []struct {
		err   error
		check func(error) bool
	}{
		{NewNotFoundError("gone"), IsNotFound},
		{NewBackendUnavailableError("down", errors.New("refused")), IsBackendUnavailable},
		{NewValidationError("bad"), IsValidation},
		{NewPartialWriteError("split", SideGraph, errors.New("boom")), IsPartialWrite},
		{NewQueryError("broken", errors.New("syntax")), IsQueryFailure},
	}
	for i, c := range cases {
		if !c.check(c.err) {
			t.Fatalf("case %d: predicate rejected its own error %v", i, c.err)
		}
	}

	if IsNotFound(NewValidationError("bad")) {
		t.Fatalf("predicates must not match across kinds")
	}
	if IsNotFound(errors.New("plain")) {
		t.Fatalf("predicates must not match plain errors")
	}
	if IsNotFound(nil) {
		t.Fatalf("predicates must not match nil")
	}
}

func TestErrorWrappingSurvives(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("initialize: %w", NewBackendUnavailableError("graph backend unreachable", cause))

	if !IsBackendUnavailable(err) {
		t.Fatalf("expected kind to survive wrapping")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to remain reachable")
	}
}

func TestPartialWriteSide(t *testing.T) {
	err := NewPartialWriteError("vector write failed", SideGraph, errors.New("down"))
	if side := PartialWriteSide(err); side != SideGraph {
		t.Fatalf("expected graph side, got %q", side)
	}
	if side := PartialWriteSide(NewValidationError("bad")); side != SideNone {
		t.Fatalf("expected no side for other kinds, got %q", side)
	}
	if side := PartialWriteSide(nil); side != SideNone {
		t.Fatalf("expected no side for nil, got %q", side)
	}
}
