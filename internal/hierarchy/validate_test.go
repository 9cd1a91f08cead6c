package hierarchy

import (
	"errors"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestValidateRejectsSelfLink(t *testing.T) {
	err := Validate(Link{ParentID: 1, ChildID: 1, DateFrom: date(2024, 1, 1), Active: true}, nil)
	if !errors.Is(err, ErrSelfLink) {
		t.Fatalf("expected ErrSelfLink, got %v", err)
	}
}

func TestValidateRejectsOverlappingChild(t *testing.T) {
	existing := []Link{
		{ID: 1, ParentID: 1, ChildID: 3, DateFrom: date(2024, 1, 1), DateTo: datePtr(2024, 6, 30), Active: true},
	}
	cases := []struct {
		name      string
		candidate Link
		wantErr   error
	}{
		{
			name:      "contained interval",
			candidate: Link{ParentID: 2, ChildID: 3, DateFrom: date(2024, 3, 1), DateTo: datePtr(2024, 4, 30), Active: true},
			wantErr:   ErrOverlap,
		},
		{
			name:      "open ended crossing",
			candidate: Link{ParentID: 2, ChildID: 3, DateFrom: date(2024, 6, 1), Active: true},
			wantErr:   ErrOverlap,
		},
		{
			name:      "adjacent after",
			candidate: Link{ParentID: 2, ChildID: 3, DateFrom: date(2024, 7, 1), Active: true},
		},
		{
			name:      "different child",
			candidate: Link{ParentID: 2, ChildID: 4, DateFrom: date(2024, 3, 1), Active: true},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.candidate, existing)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestValidateIgnoresInactiveLinks(t *testing.T) {
	existing := []Link{
		{ID: 1, ParentID: 1, ChildID: 3, DateFrom: date(2024, 1, 1), Active: false},
	}
	candidate := Link{ParentID: 2, ChildID: 3, DateFrom: date(2024, 3, 1), Active: true}
	if err := Validate(candidate, existing); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsDirectCycle(t *testing.T) {
	existing := []Link{
		{ID: 1, ParentID: 1, ChildID: 2, DateFrom: date(2024, 1, 1), Active: true},
	}
	// A->B exists, B->A must be rejected regardless of dating.
	candidate := Link{ParentID: 2, ChildID: 1, DateFrom: date(2025, 1, 1), Active: true}
	if err := Validate(candidate, existing); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestValidateRejectsTransitiveCycle(t *testing.T) {
	existing := []Link{
		{ID: 1, ParentID: 1, ChildID: 2, DateFrom: date(2024, 1, 1), Active: true},
		{ID: 2, ParentID: 2, ChildID: 3, DateFrom: date(2024, 1, 1), Active: true},
	}
	candidate := Link{ParentID: 3, ChildID: 1, DateFrom: date(2024, 1, 1), Active: true}
	if err := Validate(candidate, existing); !errors.Is(err, ErrCycle) {
		t.Fatalf("expected ErrCycle, got %v", err)
	}
}

func TestValidateAllowsDiamondFreeReparenting(t *testing.T) {
	existing := []Link{
		{ID: 1, ParentID: 1, ChildID: 2, DateFrom: date(2023, 1, 1), DateTo: datePtr(2023, 12, 31), Active: true},
	}
	// Same child moves to a new parent in a later, non-overlapping window.
	candidate := Link{ParentID: 3, ChildID: 2, DateFrom: date(2024, 1, 1), Active: true}
	if err := Validate(candidate, existing); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}
