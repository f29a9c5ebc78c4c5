package toc

import (
	"errors"
	"testing"
)

func entry(id int64, name string, start, end, order int) Entry {
	return Entry{ID: id, AttachmentID: 1, Name: name, Start: start, End: end, Order: order}
}

func TestOverlaps_HalfOpenBoundariesDoNotOverlap(t *testing.T) {
	a := entry(1, "A", 0, 30, 1)
	b := entry(2, "B", 30, 60, 2)
	if Overlaps(a, b) || Overlaps(b, a) {
		t.Fatalf("adjacent ranges must not overlap")
	}
	c := entry(3, "C", 25, 45, 3)
	if !Overlaps(a, c) || !Overlaps(c, b) {
		t.Fatalf("expected C to overlap A and B")
	}
	inner := entry(4, "D", 5, 10, 4)
	if !Overlaps(a, inner) {
		t.Fatalf("expected contained range to overlap")
	}
}

func TestIsValidRange(t *testing.T) {
	if IsValidRange(entry(1, "A", 10, 10, 1)) {
		t.Fatalf("empty range must be invalid")
	}
	if IsValidRange(entry(1, "A", 20, 10, 1)) {
		t.Fatalf("reversed range must be invalid")
	}
	if !IsValidRange(entry(1, "A", 0, 1, 1)) {
		t.Fatalf("expected valid range")
	}
}

func TestHasConflict_ExcludesEditedEntry(t *testing.T) {
	existing := []Entry{entry(1, "A", 0, 30, 1), entry(2, "B", 30, 60, 2)}
	edited := entry(1, "A", 0, 25, 1)
	if HasConflict(edited, existing, 1) {
		t.Fatalf("editing A must not conflict with itself")
	}
	if !HasConflict(entry(1, "A", 0, 35, 1), existing, 1) {
		t.Fatalf("expected conflict with B")
	}
	if !HasConflict(edited, existing, 0) {
		t.Fatalf("expected conflict without exclusion")
	}
}

func TestValidateStaged_RejectsOverlapByName(t *testing.T) {
	staged := []Staged{
		{Name: "A", Start: 0, End: 30},
		{Name: "B", Start: 30, End: 60},
		{Name: "C", Start: 25, End: 45},
	}
	accepted, rejected := ValidateStaged(staged, nil)
	if len(accepted) != 2 || accepted[0].Name != "A" || accepted[1].Name != "B" {
		t.Fatalf("unexpected accepted: %+v", accepted)
	}
	if len(rejected) != 1 || rejected[0].Name != "C" {
		t.Fatalf("unexpected rejected: %+v", rejected)
	}
	if !errors.Is(rejected[0], ErrOverlap) {
		t.Fatalf("expected overlap error, got %v", rejected[0])
	}
}

func TestValidateStaged_ChecksPersistedEntries(t *testing.T) {
	existing := []Entry{entry(7, "Intro", 0, 20, 1)}
	staged := []Staged{
		{Name: "", Start: 20, End: 30},
		{Name: "Late", Start: 50, End: 40},
		{Name: "Clash", Start: 10, End: 25},
		{Name: "Body", Start: 20, End: 80},
	}
	accepted, rejected := ValidateStaged(staged, existing)
	if len(accepted) != 1 || accepted[0].Name != "Body" {
		t.Fatalf("unexpected accepted: %+v", accepted)
	}
	want := []error{ErrEmptyName, ErrInvalidRange, ErrOverlap}
	if len(rejected) != len(want) {
		t.Fatalf("expected %d rejections, got %d", len(want), len(rejected))
	}
	for i, err := range want {
		if !errors.Is(rejected[i], err) {
			t.Fatalf("rejection %d: expected %v got %v", i, err, rejected[i])
		}
	}
	if rejected[2].Conflict != "Intro" {
		t.Fatalf("expected conflict with Intro, got %q", rejected[2].Conflict)
	}
}

func TestCheckInvariants(t *testing.T) {
	ok := []Entry{entry(1, "A", 0, 30, 2), entry(2, "B", 30, 60, 1)}
	if err := CheckInvariants(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gap := []Entry{entry(1, "A", 0, 30, 1), entry(2, "B", 30, 60, 3)}
	if err := CheckInvariants(gap); !errors.Is(err, ErrOrderIndex) {
		t.Fatalf("expected order error, got %v", err)
	}

	dup := []Entry{entry(1, "A", 0, 30, 1), entry(2, "B", 30, 60, 1)}
	if err := CheckInvariants(dup); !errors.Is(err, ErrOrderIndex) {
		t.Fatalf("expected order error, got %v", err)
	}

	overlap := []Entry{entry(1, "A", 0, 30, 1), entry(2, "B", 29, 60, 2)}
	if err := CheckInvariants(overlap); !errors.Is(err, ErrOverlap) {
		t.Fatalf("expected overlap error, got %v", err)
	}
}

func TestApplyOrder_YieldsDenseSequence(t *testing.T) {
	entries := []Entry{
		entry(10, "A", 0, 10, 1),
		entry(11, "B", 10, 20, 2),
		entry(12, "C", 20, 30, 3),
		entry(13, "D", 30, 40, 4),
	}
	out, err := ApplyOrder(entries, []int64{13, 11, 10, 12})
	if err != nil {
		t.Fatalf("apply order: %v", err)
	}
	wantIDs := []int64{13, 11, 10, 12}
	for i, e := range out {
		if e.ID != wantIDs[i] || e.Order != i+1 {
			t.Fatalf("position %d: got id=%d order=%d", i, e.ID, e.Order)
		}
	}
	if err := CheckInvariants(out); err != nil {
		t.Fatalf("reordered list breaks invariants: %v", err)
	}
}

func TestApplyOrder_RejectsNonPermutation(t *testing.T) {
	entries := []Entry{entry(1, "A", 0, 10, 1), entry(2, "B", 10, 20, 2)}
	cases := [][]int64{
		{1},
		{1, 1},
		{1, 3},
	}
	for _, ids := range cases {
		if _, err := ApplyOrder(entries, ids); !errors.Is(err, ErrOrderIndex) {
			t.Fatalf("ids %v: expected order error, got %v", ids, err)
		}
	}
}

func TestEntryContains(t *testing.T) {
	e := entry(1, "A", 10, 20, 1)
	if !e.Contains(10) || !e.Contains(19.9) {
		t.Fatalf("expected start and interior to be contained")
	}
	if e.Contains(20) || e.Contains(9.99) {
		t.Fatalf("end and earlier times must not be contained")
	}
}
