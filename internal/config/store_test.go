package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshotStore_SeedsWithVersionOne(t *testing.T) {
	st, err := NewSnapshotStore(DefaultSnapshot(), nil)
	require.NoError(t, err)

	cur := st.Current()
	require.NotNil(t, cur)
	assert.EqualValues(t, 1, cur.Version)
}

func TestNewSnapshotStore_RejectsInvalidSeed(t *testing.T) {
	bad := DefaultSnapshot()
	bad.PollInterval = 0

	_, err := NewSnapshotStore(bad, nil)
	require.Error(t, err)
}

func TestApply_PublishesNewSnapshot(t *testing.T) {
	st, err := NewSnapshotStore(DefaultSnapshot(), nil)
	require.NoError(t, err)

	next := DefaultSnapshot()
	next.PollInterval = 5 * time.Minute

	require.NoError(t, st.Apply(next))

	cur := st.Current()
	assert.Equal(t, 5*time.Minute, cur.PollInterval)
	assert.EqualValues(t, 2, cur.Version)
}

func TestApply_RejectionKeepsLastKnownGood(t *testing.T) {
	st, err := NewSnapshotStore(DefaultSnapshot(), nil)
	require.NoError(t, err)
	before := st.Current()

	bad := DefaultSnapshot()
	bad.MaxDailyCycles = -1

	require.Error(t, st.Apply(bad))
	assert.Same(t, before, st.Current(), "rejected push must not replace the snapshot")
}

func TestApply_DoesNotMutateCaller(t *testing.T) {
	st, err := NewSnapshotStore(DefaultSnapshot(), nil)
	require.NoError(t, err)

	next := DefaultSnapshot()
	next.Version = 99
	require.NoError(t, st.Apply(next))

	assert.EqualValues(t, 99, next.Version, "caller's snapshot must stay untouched")
	assert.EqualValues(t, 2, st.Current().Version, "store assigns its own version")
}
