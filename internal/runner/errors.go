package runner

import (
	"errors"
	"fmt"

	"git.home.luguber.info/inful/matrixci/internal/pipeline"
)

// FailureKind classifies how a matrix entry failed.
type FailureKind string

const (
	// FailureScript is a non-zero exit in the script phase.
	FailureScript FailureKind = "script"
	// FailureSetup is an install or before_script failure. It propagates
	// exactly like a script failure; the distinction is informational.
	FailureSetup FailureKind = "setup"
	// FailureAllowed marks a failure of an allowed-failure entry: recorded
	// but never blocking.
	FailureAllowed FailureKind = "allowed"
	// FailureCanceled marks an entry cut short by context cancellation
	// (fast-finish or external shutdown).
	FailureCanceled FailureKind = "canceled"
)

// EntryError is the typed failure of one matrix entry, carrying enough
// structure for classification without string parsing upstream.
type EntryError struct {
	Kind  FailureKind
	Stage string
	Entry string
	Phase pipeline.PhaseName
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %q (stage %q) %s failure in %s: %v", e.Entry, e.Stage, e.Kind, e.Phase, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Blocking reports whether this failure fails the stage (and therefore the
// pipeline). Allowed failures and cancellations of allowed entries never block.
func (e *EntryError) Blocking() bool {
	return e.Kind == FailureScript || e.Kind == FailureSetup
}

// AsEntryError unwraps err into an *EntryError when possible.
func AsEntryError(err error) (*EntryError, bool) {
	var ee *EntryError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}
