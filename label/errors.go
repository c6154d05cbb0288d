package label

import "errors"

// Sentinel errors for the label model. Callers match them with errors.Is;
// wrapped messages carry the detail.
var (
	// ErrInvalidInput indicates a malformed label matrix (ragged rows,
	// values outside [0, k], empty input).
	ErrInvalidInput = errors.New("label: invalid label matrix")

	// ErrConfig indicates bad configuration: out-of-range dependency edges,
	// a prec_init vector of the wrong length, a class balance that does not
	// sum to one, or fewer than two classes.
	ErrConfig = errors.New("label: invalid configuration")

	// ErrState indicates an operation was invoked before the stages it
	// depends on, e.g. prediction before training.
	ErrState = errors.New("label: operation out of order")
)
