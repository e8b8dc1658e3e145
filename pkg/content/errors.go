package content

import "errors"

// Recoverable conditions are logged as warnings and processing
// continues; only ErrRecursionLimit fails the page it occurs on.
var (
	// ErrStateUnderflow signals a restore with no matching save.
	// The implicit root frame is never popped.
	ErrStateUnderflow = errors.New("graphics state underflow")

	// ErrMalformedOperands signals a recognized operator with a bad
	// operand count. The operator is skipped.
	ErrMalformedOperands = errors.New("malformed operands")

	// ErrUnresolvableColorSpace signals a colorspace reference that
	// could not be resolved to a canonical model. A single-channel
	// approximation is used instead.
	ErrUnresolvableColorSpace = errors.New("unresolvable colorspace")

	// ErrRecursionLimit signals form XObject nesting beyond the
	// configured cap, usually a circular form reference.
	ErrRecursionLimit = errors.New("form recursion limit exceeded")
)
