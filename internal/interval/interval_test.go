package interval

import (
	"errors"
	"testing"
	"time"
)

var base = time.Date(2030, 6, 3, 9, 0, 0, 0, time.UTC)

func TestValidate_AcceptsWellFormedWindow(t *testing.T) {
	t.Parallel()

	err := Validate(base.Add(time.Hour), base.Add(2*time.Hour), base, 30*time.Minute)
	if err != nil {
		t.Fatalf("expected valid window, got %v", err)
	}
}

func TestValidate_RejectsMissingBoundaries(t *testing.T) {
	t.Parallel()

	err := Validate(time.Time{}, base.Add(time.Hour), base, 0)
	if KindOf(err) != KindMalformed {
		t.Fatalf("expected %s, got %v", KindMalformed, err)
	}

	err = Validate(base, time.Time{}, base, 0)
	if KindOf(err) != KindMalformed {
		t.Fatalf("expected %s, got %v", KindMalformed, err)
	}
}

func TestValidate_RejectsInvertedWindow(t *testing.T) {
	t.Parallel()

	err := Validate(base.Add(2*time.Hour), base.Add(time.Hour), base, 0)
	if KindOf(err) != KindInverted {
		t.Fatalf("expected %s, got %v", KindInverted, err)
	}
}

func TestValidate_RejectsZeroLengthWindowAsInverted(t *testing.T) {
	t.Parallel()

	at := base.Add(time.Hour)
	err := Validate(at, at, base, 0)
	if KindOf(err) != KindInverted {
		t.Fatalf("expected %s, got %v", KindInverted, err)
	}
}

func TestValidate_RejectsWindowShorterThanMinimum(t *testing.T) {
	t.Parallel()

	err := Validate(base.Add(time.Hour), base.Add(time.Hour+29*time.Minute), base, 30*time.Minute)
	if KindOf(err) != KindTooShort {
		t.Fatalf("expected %s, got %v", KindTooShort, err)
	}

	// Exactly the minimum is allowed.
	err = Validate(base.Add(time.Hour), base.Add(time.Hour+30*time.Minute), base, 30*time.Minute)
	if err != nil {
		t.Fatalf("expected minimum-length window to pass, got %v", err)
	}
}

func TestValidate_RejectsWindowStartingInThePast(t *testing.T) {
	t.Parallel()

	err := Validate(base.Add(-time.Minute), base.Add(time.Hour), base, 0)
	if KindOf(err) != KindInThePast {
		t.Fatalf("expected %s, got %v", KindInThePast, err)
	}

	// Starting exactly now is allowed.
	err = Validate(base, base.Add(time.Hour), base, 0)
	if err != nil {
		t.Fatalf("expected window starting now to pass, got %v", err)
	}
}

func TestValidate_ChecksRulesInOrder(t *testing.T) {
	t.Parallel()

	// Inverted and in the past: the inversion must be reported first.
	err := Validate(base.Add(-time.Hour), base.Add(-2*time.Hour), base, 0)
	if KindOf(err) != KindInverted {
		t.Fatalf("expected %s, got %v", KindInverted, err)
	}
}

func TestKindOf_IgnoresForeignErrors(t *testing.T) {
	t.Parallel()

	if kind := KindOf(errors.New("boom")); kind != "" {
		t.Fatalf("expected empty kind, got %q", kind)
	}
	if kind := KindOf(nil); kind != "" {
		t.Fatalf("expected empty kind for nil, got %q", kind)
	}
}

func TestOverlaps(t *testing.T) {
	t.Parallel()

	hour := func(h int) time.Time { return base.Add(time.Duration(h) * time.Hour) }

	if !Overlaps(hour(1), hour(3), hour(2), hour(4)) {
		t.Fatal("expected partial overlap to be detected")
	}
	if !Overlaps(hour(1), hour(4), hour(2), hour(3)) {
		t.Fatal("expected containment to be detected")
	}
	if !Overlaps(hour(2), hour(3), hour(2), hour(3)) {
		t.Fatal("expected identical windows to overlap")
	}
	if Overlaps(hour(1), hour(2), hour(2), hour(3)) {
		t.Fatal("touching endpoints must not overlap")
	}
	if Overlaps(hour(2), hour(3), hour(1), hour(2)) {
		t.Fatal("touching endpoints must not overlap in either order")
	}
	if Overlaps(hour(1), hour(2), hour(3), hour(4)) {
		t.Fatal("disjoint windows must not overlap")
	}
}
