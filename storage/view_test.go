package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestView(t *testing.T) (*View, KVStore) {
	t.Helper()
	kv := NewInMemoryKVStore()
	t.Cleanup(func() { _ = kv.Close() })
	return NewView(kv), kv
}

func TestViewReadThrough(t *testing.T) {
	view, kv := newTestView(t)
	require.NoError(t, kv.Set([]byte("existing"), []byte("base")))

	val, err := view.Get([]byte("existing"))
	require.NoError(t, err)
	require.Equal(t, []byte("base"), val)

	// Absent keys read as nil, not as an error.
	val, err = view.Get([]byte("missing"))
	require.NoError(t, err)
	require.Nil(t, val)
}

func TestViewOverlayWins(t *testing.T) {
	view, kv := newTestView(t)
	require.NoError(t, kv.Set([]byte("k"), []byte("base")))

	view.Set([]byte("k"), []byte("overlay"))
	val, err := view.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("overlay"), val)

	// The backing store is untouched until Flush.
	base, err := kv.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("base"), base)

	require.NoError(t, view.Flush())
	base, err = kv.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("overlay"), base)
}

func TestViewSnapshotRollback(t *testing.T) {
	view, _ := newTestView(t)

	view.Set([]byte("a"), []byte("1"))
	view.Snapshot()
	view.Set([]byte("b"), []byte("2"))
	view.Snapshot()
	view.Set([]byte("a"), []byte("3"))

	require.Equal(t, 2, view.SnapshotDepth())

	view.RollbackSnapshot()
	val, err := view.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), val)

	view.CommitSnapshot()
	require.Zero(t, view.SnapshotDepth())
	val, err = view.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), val)
}

func TestViewRollbackWithoutSnapshotPanics(t *testing.T) {
	view, _ := newTestView(t)
	require.Panics(t, view.RollbackSnapshot)
}

func TestViewDiffAndWitness(t *testing.T) {
	view, kv := newTestView(t)
	require.NoError(t, kv.Set([]byte("read-me"), []byte("initial")))

	_, err := view.Get([]byte("read-me"))
	require.NoError(t, err)
	view.Set([]byte("write-me"), []byte("new"))
	view.Set([]byte("read-me"), []byte("updated"))

	diff := view.Diff()
	require.Len(t, diff, 2)
	require.Equal(t, []byte("new"), diff["write-me"])
	require.Equal(t, []byte("updated"), diff["read-me"])

	witness := view.WitnessState()
	// The witness records the value before the batch started.
	require.Equal(t, []byte("initial"), witness.ReadValues["read-me"])
	require.Equal(t, []string{"read-me", "write-me"}, witness.WrittenKeys)
}

func TestViewMetrics(t *testing.T) {
	view, _ := newTestView(t)

	_, err := view.Get([]byte("x"))
	require.NoError(t, err)
	view.Set([]byte("x"), []byte("1"))
	view.Set([]byte("y"), []byte("2"))

	m := view.Metrics()
	require.Equal(t, uint64(1), m.GetCount)
	require.Equal(t, uint64(2), m.SetCount)
}

func TestFactoryHonorsCancellation(t *testing.T) {
	kv := NewInMemoryKVStore()
	t.Cleanup(func() { _ = kv.Close() })
	factory := NewFactory(kv)

	view, err := factory.AccessStorage(canceledContext())
	require.NoError(t, err)
	require.Nil(t, view)
}
