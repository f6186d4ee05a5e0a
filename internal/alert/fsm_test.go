package alert

import (
	"errors"
	"fmt"
	"testing"
)

var allStatuses = []Status{StatusPending, StatusClaimed, StatusInTransit, StatusCompleted, StatusCancelled}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	legal := map[[2]Status]bool{
		{StatusClaimed, StatusInTransit}:   true,
		{StatusClaimed, StatusCancelled}:   true,
		{StatusInTransit, StatusCompleted}: true,
		{StatusInTransit, StatusCancelled}: true,
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := legal[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCanTransition_TerminalStatesAreFinal(t *testing.T) {
	t.Parallel()

	for _, from := range []Status{StatusCompleted, StatusCancelled} {
		if !from.Terminal() {
			t.Errorf("%s.Terminal() = false", from)
		}
		for _, to := range allStatuses {
			if CanTransition(from, to) {
				t.Errorf("CanTransition(%s, %s) = true, terminal states must not move", from, to)
			}
		}
	}
}

func TestValidPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path []Status
		want bool
	}{
		{"created only", []Status{StatusPending}, true},
		{"claimed", []Status{StatusPending, StatusClaimed}, true},
		{"full lifecycle", []Status{StatusPending, StatusClaimed, StatusInTransit, StatusCompleted}, true},
		{"cancelled after claim", []Status{StatusPending, StatusClaimed, StatusCancelled}, true},
		{"cancelled in transit", []Status{StatusPending, StatusClaimed, StatusInTransit, StatusCancelled}, true},
		{"empty", nil, false},
		{"starts claimed", []Status{StatusClaimed}, false},
		{"skips claim", []Status{StatusPending, StatusInTransit}, false},
		{"skips transit", []Status{StatusPending, StatusClaimed, StatusCompleted}, false},
		{"reopened", []Status{StatusPending, StatusClaimed, StatusCancelled, StatusPending}, false},
		{"double claim", []Status{StatusPending, StatusClaimed, StatusClaimed}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ValidPath(tt.path); got != tt.want {
				t.Errorf("ValidPath(%v) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	t.Parallel()

	for _, s := range allStatuses {
		if !s.Valid() {
			t.Errorf("%s.Valid() = false", s)
		}
		if s.Active() && s.Terminal() {
			t.Errorf("%s is both active and terminal", s)
		}
	}
	if Status("DONE").Valid() {
		t.Error(`Status("DONE").Valid() = true`)
	}
	if !StatusClaimed.Active() || !StatusInTransit.Active() || StatusPending.Active() {
		t.Error("Active() should hold for CLAIMED and IN_TRANSIT only")
	}
}

func TestWasteTypeAndCoordinates(t *testing.T) {
	t.Parallel()

	if !WasteElectronic.Valid() || WasteType("E-WASTE").Valid() || WasteType("").Valid() {
		t.Error("WasteType.Valid mismatch")
	}

	tests := []struct {
		c    Coordinates
		want bool
	}{
		{Coordinates{0, 0}, true},
		{Coordinates{90, 180}, true},
		{Coordinates{-90, -180}, true},
		{Coordinates{90.01, 0}, false},
		{Coordinates{0, -180.5}, false},
	}
	for _, tt := range tests {
		if got := tt.c.Valid(); got != tt.want {
			t.Errorf("%+v.Valid() = %v, want %v", tt.c, got, tt.want)
		}
	}

	p := &CollectorProfile{AcceptedTypes: []WasteType{WasteOrganic}}
	if !p.Accepts(WasteOrganic) || p.Accepts(WasteHazardous) {
		t.Error("CollectorProfile.Accepts mismatch")
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	v := &ValidationError{}
	if v.Err() != nil {
		t.Fatal("empty ValidationError.Err() should be nil")
	}
	v.Add("rating", "must be between 1 and 5")
	v.Add("comment", "too long")

	err := fmt.Errorf("create review: %w", v.Err())
	if !errors.Is(err, ErrValidation) {
		t.Error("wrapped ValidationError should match ErrValidation")
	}
	var got *ValidationError
	if !errors.As(err, &got) || len(got.Errors) != 2 {
		t.Fatalf("errors.As = %v, fields = %v", got, got)
	}
	want := "validation failed: rating: must be between 1 and 5; comment: too long"
	if got.Error() != want {
		t.Errorf("Error() = %q, want %q", got.Error(), want)
	}
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("x: %w", ErrConflict), "conflict"},
		{fmt.Errorf("x: %w", ErrNotFound), "not_found"},
		{ErrForbidden, "forbidden"},
		{NewValidationError("f", "m"), "invalid"},
		{errors.New("db down"), "error"},
	}
	for _, tt := range tests {
		if got := outcome(tt.err, "ok"); got != tt.want {
			t.Errorf("outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
