package toc

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyName    = errors.New("chapter name is empty")
	ErrInvalidRange = errors.New("chapter start must be before its end")
	ErrNegativeTime = errors.New("chapter timestamps must not be negative")
	ErrOverlap      = errors.New("chapter overlaps another chapter")
	ErrOrderIndex   = errors.New("chapter order is not a dense 1..N sequence")
)

// Entry is one persisted table-of-content entry. Timestamps are whole seconds.
type Entry struct {
	ID           int64
	AttachmentID int64
	Name         string
	Description  string
	Start        int
	End          int
	Order        int
}

// Staged is an entry authored before its attachment has an identifier.
type Staged struct {
	Name        string `validate:"required"`
	Description string
	Start       int `validate:"gte=0"`
	End         int `validate:"gte=0"`
}

func (s Staged) Entry(attachmentID int64, order int) Entry {
	return Entry{
		AttachmentID: attachmentID,
		Name:         s.Name,
		Description:  s.Description,
		Start:        s.Start,
		End:          s.End,
		Order:        order,
	}
}

// Contains reports whether t falls inside [Start, End).
func (e Entry) Contains(t float64) bool {
	return t >= float64(e.Start) && t < float64(e.End)
}

func (e Entry) Duration() int {
	return e.End - e.Start
}

// ValidationError names the entry that broke an invariant.
type ValidationError struct {
	Name     string
	Err      error
	Conflict string
}

func (e *ValidationError) Error() string {
	if e.Conflict != "" {
		return fmt.Sprintf("%q: %v (with %q)", e.Name, e.Err, e.Conflict)
	}
	return fmt.Sprintf("%q: %v", e.Name, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func IsValidRange(e Entry) bool {
	return e.Start < e.End
}

// Overlaps reports whether the half-open ranges of a and b intersect.
func Overlaps(a, b Entry) bool {
	return a.Start < b.End && b.Start < a.End
}

// HasConflict reports whether candidate overlaps any entry in existing other
// than the one with excludeID. An excludeID of 0 excludes nothing.
func HasConflict(candidate Entry, existing []Entry, excludeID int64) bool {
	_, ok := FirstConflict(candidate, existing, excludeID)
	return ok
}

func FirstConflict(candidate Entry, existing []Entry, excludeID int64) (Entry, bool) {
	for _, e := range existing {
		if excludeID != 0 && e.ID == excludeID {
			continue
		}
		if Overlaps(candidate, e) {
			return e, true
		}
	}
	return Entry{}, false
}

// Validate checks a single entry against the owner's other entries.
func Validate(candidate Entry, existing []Entry, excludeID int64) error {
	if strings.TrimSpace(candidate.Name) == "" {
		return &ValidationError{Name: candidate.Name, Err: ErrEmptyName}
	}
	if candidate.Start < 0 || candidate.End < 0 {
		return &ValidationError{Name: candidate.Name, Err: ErrNegativeTime}
	}
	if !IsValidRange(candidate) {
		return &ValidationError{Name: candidate.Name, Err: ErrInvalidRange}
	}
	if other, ok := FirstConflict(candidate, existing, excludeID); ok {
		return &ValidationError{Name: candidate.Name, Err: ErrOverlap, Conflict: other.Name}
	}
	return nil
}

// ValidateStaged splits staged entries into those that can be persisted after
// existing, in staging order, and one error per rejected entry. An accepted
// entry takes part in the overlap check of every later one.
func ValidateStaged(staged []Staged, existing []Entry) (accepted []Staged, rejected []*ValidationError) {
	taken := append([]Entry(nil), existing...)
	for _, s := range staged {
		candidate := s.Entry(0, 0)
		if err := Validate(candidate, taken, 0); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				rejected = append(rejected, verr)
			}
			continue
		}
		accepted = append(accepted, s)
		taken = append(taken, candidate)
	}
	return accepted, rejected
}

// CheckInvariants verifies the three list invariants for one owner.
func CheckInvariants(entries []Entry) error {
	seen := make(map[int]bool, len(entries))
	for i, e := range entries {
		if err := Validate(e, entries[i+1:], 0); err != nil {
			return err
		}
		if e.Order < 1 || e.Order > len(entries) || seen[e.Order] {
			return &ValidationError{Name: e.Name, Err: ErrOrderIndex}
		}
		seen[e.Order] = true
	}
	return nil
}

// SortByOrder sorts entries by order index in place.
func SortByOrder(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Order < entries[j].Order
	})
}

// SortByStart sorts entries by start time in place.
func SortByStart(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Start < entries[j].Start
	})
}

// Reindex assigns order 1..N following the slice order.
func Reindex(entries []Entry) []Entry {
	for i := range entries {
		entries[i].Order = i + 1
	}
	return entries
}

// ApplyOrder returns entries arranged as orderedIDs with order 1..N. The ids
// must be a permutation of the entries' ids.
func ApplyOrder(entries []Entry, orderedIDs []int64) ([]Entry, error) {
	if len(orderedIDs) != len(entries) {
		return nil, fmt.Errorf("%w: got %d ids for %d chapters", ErrOrderIndex, len(orderedIDs), len(entries))
	}
	byID := make(map[int64]Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	out := make([]Entry, 0, len(entries))
	for _, id := range orderedIDs {
		e, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown or repeated chapter id %d", ErrOrderIndex, id)
		}
		delete(byID, id)
		out = append(out, e)
	}
	return Reindex(out), nil
}

// IDs returns the ids of entries in slice order.
func IDs(entries []Entry) []int64 {
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}
