package track

import "errors"

var (
	// ErrParameterValue reports malformed caller input: mismatched matrix
	// shapes, out-of-range parameters, missing feature configuration.
	// The tracker is still usable after this error.
	ErrParameterValue = errors.New("track: parameter value error")

	// ErrLogical reports an internal invariant violation: state machine
	// misuse, double assignment, ordering failure during gap close, or an
	// infeasible assignment matrix. The tracker should be discarded.
	ErrLogical = errors.New("track: logical error")
)
