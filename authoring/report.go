package authoring

import (
	"fmt"
	"strings"
	"video-chapters/toc"
)

// FlushReport summarises one run of step 2.
type FlushReport struct {
	Attempted int
	Saved     int
	Rejected  []*toc.ValidationError
	// Failure is the backend error that stopped the run, if any.
	Failure error
}

// Err returns nil when every staged chapter was saved.
func (r FlushReport) Err() error {
	if len(r.Rejected) == 0 && r.Failure == nil {
		return nil
	}
	return &FlushError{
		Attempted: r.Attempted,
		Saved:     r.Saved,
		Rejected:  r.Rejected,
		Cause:     r.Failure,
	}
}

// FlushError names every rejected chapter and how many were saved before the
// run ended.
type FlushError struct {
	Attempted int
	Saved     int
	Rejected  []*toc.ValidationError
	Cause     error
}

func (e *FlushError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "saved %d of %d chapters", e.Saved, e.Attempted)
	if len(e.Rejected) > 0 {
		names := make([]string, 0, len(e.Rejected))
		for _, r := range e.Rejected {
			names = append(names, r.Error())
		}
		fmt.Fprintf(&b, "; rejected %s", strings.Join(names, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, "; stopped: %v", e.Cause)
	}
	return b.String()
}

func (e *FlushError) Unwrap() []error {
	errs := make([]error, 0, len(e.Rejected)+1)
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	for _, r := range e.Rejected {
		errs = append(errs, r)
	}
	return errs
}

// RejectedNames lists the rejected chapters in staging order.
func (e *FlushError) RejectedNames() []string {
	names := make([]string, 0, len(e.Rejected))
	for _, r := range e.Rejected {
		names = append(names, r.Name)
	}
	return names
}
