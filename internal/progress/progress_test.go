package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dockerpilot/internal/apierrors"
)

func TestAcquireCreatesStartingRecord(t *testing.T) {
	r := NewRegistry(nil)

	lease, err := r.Acquire("grafana")
	require.NoError(t, err)
	defer lease.Release()

	rec, ok := r.Get("grafana")
	require.True(t, ok)
	assert.Equal(t, StageStarting, rec.Stage)
	assert.Equal(t, 0, rec.Progress)
}

func TestAcquireTwiceFailsAlreadyRunning(t *testing.T) {
	r := NewRegistry(nil)

	lease, err := r.Acquire("grafana")
	require.NoError(t, err)
	defer lease.Release()

	_, err = r.Acquire("grafana")
	require.Error(t, err)
	assert.True(t, apierrors.Is(err, apierrors.KindAlreadyRunning))
}

func TestUpdateAdvancesStageAndProgress(t *testing.T) {
	r := NewRegistry(nil)
	lease, err := r.Acquire("grafana")
	require.NoError(t, err)
	defer lease.Release()

	lease.Update(StageBuilding, 40, "building image")

	rec, ok := r.Get("grafana")
	require.True(t, ok)
	assert.Equal(t, StageBuilding, rec.Stage)
	assert.Equal(t, 40, rec.Progress)
	assert.Equal(t, "building image", rec.Message)
}

func TestRequestCancelSetsLatch(t *testing.T) {
	r := NewRegistry(nil)
	lease, err := r.Acquire("grafana")
	require.NoError(t, err)
	defer lease.Release()

	assert.False(t, lease.CancelRequested())
	assert.True(t, r.RequestCancel("grafana"))
	assert.True(t, lease.CancelRequested())
}

func TestRequestCancelUnknownKeyReturnsFalse(t *testing.T) {
	r := NewRegistry(nil)
	assert.False(t, r.RequestCancel("does-not-exist"))
}

func TestTerminalRecordEvictedAfterGraceWindow(t *testing.T) {
	r := NewRegistry(nil)
	lease, err := r.Acquire("grafana")
	require.NoError(t, err)

	lease.Update(StageCompleted, 100, "done")

	_, ok := r.Get("grafana")
	require.True(t, ok, "record must still be visible immediately after completion")

	require.Eventually(t, func() bool {
		_, ok := r.Get("grafana")
		return !ok
	}, 2*evictionGrace, 50*time.Millisecond)
}

func TestAllReturnsEverySnapshot(t *testing.T) {
	r := NewRegistry(nil)
	l1, _ := r.Acquire("a")
	l2, _ := r.Acquire("b")
	defer l1.Release()
	defer l2.Release()

	all := r.All()
	assert.Len(t, all, 2)
}

func TestPublishHookReceivesEveryMutation(t *testing.T) {
	var published []Record
	r := NewRegistry(func(rec Record) {
		published = append(published, rec)
	})

	lease, err := r.Acquire("grafana")
	require.NoError(t, err)
	defer lease.Release()

	lease.Update(StageBuilding, 40, "building")

	require.Len(t, published, 2)
	assert.Equal(t, StageStarting, published[0].Stage)
	assert.Equal(t, StageBuilding, published[1].Stage)
}

func TestAcquireAfterReleaseSucceeds(t *testing.T) {
	r := NewRegistry(nil)
	lease, err := r.Acquire("grafana")
	require.NoError(t, err)
	lease.Release()

	_, err = r.Acquire("grafana")
	assert.NoError(t, err)
}
