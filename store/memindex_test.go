package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStorePutGet(t *testing.T) {
	st := NewMemStore()
	s := st.StartUndoSession()
	idx := s.Index("widgets")

	_, err := idx.Get([]byte("a"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, idx.Put([]byte("a"), []byte("1")))
	v, err := idx.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

func TestMemSessionUndoRevertsWrites(t *testing.T) {
	st := NewMemStore()
	root := st.StartUndoSession()
	rootIdx := root.Index("widgets")
	require.NoError(t, rootIdx.Put([]byte("a"), []byte("root-value")))

	child := root.Push()
	childIdx := child.Index("widgets")
	require.NoError(t, childIdx.Put([]byte("a"), []byte("child-value")))
	require.NoError(t, childIdx.Put([]byte("b"), []byte("new")))

	v, err := rootIdx.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("child-value"), v, "writes through the child session are visible through the shared table")

	child.Undo()

	v, err = rootIdx.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("root-value"), v, "undo must restore the pre-image recorded before the child's write")

	_, err = rootIdx.Get([]byte("b"))
	assert.ErrorIs(t, err, ErrNotFound, "undo must remove a key that did not exist before the child session")
}

func TestMemSessionSquashMergesIntoParent(t *testing.T) {
	st := NewMemStore()
	root := st.StartUndoSession()

	child := root.Push()
	require.NoError(t, child.Index("widgets").Put([]byte("a"), []byte("1")))
	child.Squash()

	v, err := root.Index("widgets").Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	// Undoing the parent after a squash must also revert the child's write,
	// since Squash keeps the write attached to the parent's undo log.
	root.Undo()
	_, err = st.StartUndoSession().Index("widgets").Get([]byte("a"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemSessionDeleteRecordsPreimage(t *testing.T) {
	st := NewMemStore()
	root := st.StartUndoSession()
	require.NoError(t, root.Index("widgets").Put([]byte("a"), []byte("1")))
	root.Squash()

	session := st.StartUndoSession()
	idx := session.Index("widgets")
	require.NoError(t, idx.Delete([]byte("a")))
	_, err := idx.Get([]byte("a"))
	assert.ErrorIs(t, err, ErrNotFound)

	session.Undo()
	v, err := st.StartUndoSession().Index("widgets").Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)
}

func TestMemIndexScanOrderAndBounds(t *testing.T) {
	st := NewMemStore()
	s := st.StartUndoSession()
	idx := s.Index("widgets")
	for _, k := range []string{"b", "a", "d", "c"} {
		require.NoError(t, idx.Put([]byte(k), []byte(k)))
	}

	var all []string
	require.NoError(t, idx.Scan(nil, nil, func(key, value []byte) bool {
		all = append(all, string(key))
		return true
	}))
	assert.Equal(t, []string{"a", "b", "c", "d"}, all)

	var bounded []string
	require.NoError(t, idx.Scan([]byte("b"), []byte("d"), func(key, value []byte) bool {
		bounded = append(bounded, string(key))
		return true
	}))
	assert.Equal(t, []string{"b", "c"}, bounded, "scan end is exclusive")

	var stopped []string
	require.NoError(t, idx.Scan(nil, nil, func(key, value []byte) bool {
		stopped = append(stopped, string(key))
		return len(stopped) < 2
	}))
	assert.Equal(t, []string{"a", "b"}, stopped, "scan must stop as soon as fn returns false")
}

func TestStoreCommitTracksHighestRevision(t *testing.T) {
	st := NewMemStore()
	assert.Equal(t, uint64(0), st.Revision())

	s1 := st.StartUndoSession()
	s1.Squash()
	assert.Equal(t, uint64(1), st.Revision())

	require.NoError(t, st.Commit(1))
	assert.Equal(t, uint64(1), st.Revision())

	require.NoError(t, st.Commit(0))
	assert.Equal(t, uint64(1), st.Revision(), "Commit must never move the revision backwards")
}
