package services

import (
	"errors"
	"testing"
)

func TestWrapPreservesMarker(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(ErrValidation, "planner", "pre-check", "missing alt text", base)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "coordinator", "encode", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestIsCallerFault(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"validation", Wrap(ErrValidation, "strategy", "validate", "", nil), true},
		{"not found", Wrap(ErrNotFound, "planner", "load item", "", nil), true},
		{"configuration", Wrap(ErrConfiguration, "registry", "resolve", "", nil), true},
		{"external tool", Wrap(ErrExternalTool, "encoder", "encode", "", nil), false},
		{"plain", errors.New("disk full"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsCallerFault(tc.err); got != tc.want {
				t.Fatalf("IsCallerFault(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
