package breaker

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/accessmesh/pkg/accesserr"
)

func TestTrip_SetsTrippedAndGuardFails(t *testing.T) {
	b := New("test-persister", ModeReject, nil)

	assert.NoError(t, b.Guard())

	b.Trip(errors.New("disk full"))

	assert.True(t, b.Tripped())
	assert.ErrorIs(t, b.Guard(), accesserr.ErrServiceUnavailable)
}

func TestTrip_IsIdempotent(t *testing.T) {
	calls := 0
	b := New("test-persister", ModeShutdown, func() { calls++ })

	b.Trip(errors.New("first"))
	b.Trip(errors.New("second"))

	assert.Equal(t, 1, calls)
}

func TestModeReject_NeverCallsShutdown(t *testing.T) {
	called := false
	b := New("test-persister", ModeReject, func() { called = true })

	b.Trip(errors.New("boom"))

	assert.False(t, called)
}

func TestReset_ClearsTripped(t *testing.T) {
	b := New("test-persister", ModeReject, nil)
	b.Trip(errors.New("boom"))
	require := assert.New(t)
	require.True(b.Tripped())

	b.Reset()
	require.False(b.Tripped())
	require.NoError(b.Guard())
}
