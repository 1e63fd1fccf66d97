package split

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/accessmesh/internal/event"
	"github.com/cuemby/accessmesh/pkg/accesserr"
)

type recordingWriter struct {
	applied []*event.Event
	err     error
}

func (w *recordingWriter) Apply(ctx context.Context, e *event.Event) error {
	if w.err != nil {
		return w.err
	}
	w.applied = append(w.applied, e)
	return nil
}

func TestRouter_ForwardOnlySendsEverythingToSource(t *testing.T) {
	source := &recordingWriter{}
	target := &recordingWriter{}
	r := NewRouter(0, 100, source)
	r.SetTarget(target)

	require.NoError(t, r.Route(context.Background(), event.New(event.ActionAdd, event.KindUser, 50), 50))
	assert.Len(t, source.applied, 1)
	assert.Len(t, target.applied, 0)
}

func TestRouter_DualWriteMirrorsOnlyInRangeEvents(t *testing.T) {
	source := &recordingWriter{}
	target := &recordingWriter{}
	r := NewRouter(0, 100, source)
	r.SetTarget(target)
	r.SetMode(ModeDualWrite)

	require.NoError(t, r.Route(context.Background(), event.New(event.ActionAdd, event.KindUser, 50), 50))
	require.NoError(t, r.Route(context.Background(), event.New(event.ActionAdd, event.KindUser, 500), 500))

	assert.Len(t, source.applied, 2)
	assert.Len(t, target.applied, 1)
}

func TestRouter_CutoverSendsInRangeOnlyToTarget(t *testing.T) {
	source := &recordingWriter{}
	target := &recordingWriter{}
	r := NewRouter(0, 100, source)
	r.SetTarget(target)
	r.SetMode(ModeCutover)

	require.NoError(t, r.Route(context.Background(), event.New(event.ActionAdd, event.KindUser, 50), 50))
	require.NoError(t, r.Route(context.Background(), event.New(event.ActionAdd, event.KindUser, 500), 500))

	assert.Len(t, source.applied, 1) // the out-of-range one
	assert.Len(t, target.applied, 1) // the in-range one
}

func TestRouter_CutoverWithoutTargetFails(t *testing.T) {
	source := &recordingWriter{}
	r := NewRouter(0, 100, source)
	r.SetMode(ModeCutover)

	err := r.Route(context.Background(), event.New(event.ActionAdd, event.KindUser, 50), 50)
	assert.ErrorIs(t, err, accesserr.ErrSplitAborted)
}
