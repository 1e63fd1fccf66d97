// Package accesserr defines the sentinel error taxonomy shared across
// accessmesh's core packages. Callers dispatch with errors.Is/errors.As
// instead of type-switching on concrete error types.
package accesserr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a referenced primary element is missing in strict mode.
	ErrNotFound = errors.New("element not found")

	// ErrAlreadyExists indicates a duplicate Add in strict mode.
	ErrAlreadyExists = errors.New("element already exists")

	// ErrCycleWouldBeCreated indicates a group-to-group edge insertion would
	// introduce a cycle in the reachability graph. Always surfaced, never
	// suppressed by dependency-free mode.
	ErrCycleWouldBeCreated = errors.New("edge would create a cycle")

	// ErrEventNotCached signals the requested prior event id fell outside
	// the temporal cache's retained window; callers fall back to the persister.
	ErrEventNotCached = errors.New("event not present in temporal cache")

	// ErrUpstreamUnavailable indicates a downstream shard or persister
	// transport failure during a fan-out.
	ErrUpstreamUnavailable = errors.New("upstream shard unavailable")

	// ErrServiceUnavailable is returned by every operation while the
	// circuit breaker is tripped.
	ErrServiceUnavailable = errors.New("service unavailable: circuit breaker tripped")

	// ErrMalformedEvent indicates an event's key combination does not match
	// any of the ten kinds defined by the wire format.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrIdempotencyConflict indicates a duplicate Add or absent Remove
	// was rejected because strict mode is enabled.
	ErrIdempotencyConflict = errors.New("idempotency conflict")

	// ErrSplitAborted indicates a split protocol step failed and the
	// orchestrator reverted to the pre-split topology.
	ErrSplitAborted = errors.New("split aborted")
)

// Wrap annotates err with a message while preserving errors.Is matching
// against the sentinel values above.
func Wrap(msg string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}
