package blocklog

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asset-chain/chain-controller/chaintypes"
)

func block(height uint32, tag string) *chaintypes.SignedBlock {
	b := &chaintypes.SignedBlock{
		Timestamp: time.Unix(int64(height)*1000, 0).UTC(),
		Producer:  tag,
	}
	b.SetHeightHint(height)
	return b
}

func openLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(afero.NewMemMapFs(), "/chain")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestOpenEmptyLogHasHeightOne(t *testing.T) {
	l := openLog(t)
	assert.Equal(t, uint32(1), l.Height(), "index 0 is a placeholder; an empty log still reports height 1")
	_, err := l.Head()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendRequiresStrictHeightOrder(t *testing.T) {
	l := openLog(t)
	require.NoError(t, l.Append(block(1, "a")))
	err := l.Append(block(3, "skip"))
	assert.Error(t, err)

	require.NoError(t, l.Append(block(2, "b")))
	assert.Equal(t, uint32(3), l.Height())
}

func TestReadByHeightRoundTripsAndRestoresHeightHint(t *testing.T) {
	l := openLog(t)
	b1 := block(1, "a")
	require.NoError(t, l.Append(b1))

	got, err := l.ReadByHeight(1)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Producer)
	assert.Equal(t, b1.ID(), got.ID(), "a block read back must reproduce the id it was indexed under")
}

func TestReadByHeightOutOfRangeOrZero(t *testing.T) {
	l := openLog(t)
	require.NoError(t, l.Append(block(1, "a")))

	_, err := l.ReadByHeight(0)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.ReadByHeight(5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadByIDRoundTrips(t *testing.T) {
	l := openLog(t)
	b1 := block(1, "a")
	require.NoError(t, l.Append(b1))

	got, err := l.ReadByID(b1.ID())
	require.NoError(t, err)
	assert.Equal(t, "a", got.Producer)

	_, err = l.ReadByID(chaintypes.ZeroBlockID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHeadReturnsMostRecentlyAppended(t *testing.T) {
	l := openLog(t)
	require.NoError(t, l.Append(block(1, "a")))
	require.NoError(t, l.Append(block(2, "b")))

	head, err := l.Head()
	require.NoError(t, err)
	assert.Equal(t, "b", head.Producer)
}

func TestOpenRebuildsIndexFromExistingData(t *testing.T) {
	fs := afero.NewMemMapFs()
	l1, err := Open(fs, "/chain")
	require.NoError(t, err)
	b1 := block(1, "a")
	b2 := block(2, "b")
	require.NoError(t, l1.Append(b1))
	require.NoError(t, l1.Append(b2))
	require.NoError(t, l1.Close())

	l2, err := Open(fs, "/chain")
	require.NoError(t, err)
	defer l2.Close()

	assert.Equal(t, uint32(3), l2.Height())
	got, err := l2.ReadByHeight(2)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Producer)
	assert.Equal(t, b2.ID(), got.ID())

	byID, err := l2.ReadByID(b1.ID())
	require.NoError(t, err)
	assert.Equal(t, "a", byID.Producer)
}
