// Package tderr defines the sentinel error taxonomy shared by every CATCHUp
// package: preprocessing (graph load, CCH build, customization) and query.
//
// Error policy:
//   - Only sentinel variables are exposed; callers branch with errors.Is.
//   - Sentinels are never wrapped with formatted strings at definition site;
//     use Wrap to attach operation context while preserving errors.Is.
//   - Query-time code surfaces no sentinel other than
//     ErrAlgorithmInvariantViolation (and the context's error when its ctx is
//     cancelled); an unreachable target is reported as ok==false, never as
//     an error.
package tderr

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput indicates the on-disk graph or customization arrays
	// violate a structural invariant (CSR shape, PLF periodicity, etc).
	ErrMalformedInput = errors.New("tderr: malformed input")

	// ErrIoFailure indicates a read/write/seek failure against persisted
	// graph or customization data.
	ErrIoFailure = errors.New("tderr: io failure")

	// ErrNonFIFOWeight indicates a travel-time function violates the FIFO
	// property: arrival time t+f(t) must be non-decreasing in t.
	ErrNonFIFOWeight = errors.New("tderr: non-FIFO travel time function")

	// ErrNonFiniteArithmetic indicates a PLF operation produced a NaN, an
	// infinite value, or divided by zero.
	ErrNonFiniteArithmetic = errors.New("tderr: non-finite arithmetic")

	// ErrAlgorithmInvariantViolation indicates an internal invariant broke
	// (e.g. an elimination-tree ancestor was not settled before its child,
	// or a corridor arc escaped compaction). Treated as a bug: the query
	// that observes it must abort rather than return a wrong answer.
	ErrAlgorithmInvariantViolation = errors.New("tderr: algorithm invariant violation")
)

// Wrap attaches "op: " context to a sentinel while keeping errors.Is(err, kind)
// true, mirroring the lvlath/builder convention of prefixing sentinels with
// the constructor or pass name that observed them.
func Wrap(kind error, op string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", op, kind)
	}
	return fmt.Errorf("%s: %w: %v", op, kind, cause)
}
