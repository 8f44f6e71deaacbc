// Package chaintypes defines the wire and in-memory data model of the chain
// controller: block identifiers, signed blocks, the region/cycle/shard
// hierarchy, transactions and actions, and the traces produced by applying
// them.
//
// The model bridges two worlds the same way the inter package bridges
// Lachesis events with EVM blocks: here it is the sharded, lock-declaring
// block format on one side and the external interpreter's flat
// action-execution results on the other.
package chaintypes

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

// BlockID is a 32-byte hash whose high 4 bytes encode the block height, so
// the height is recoverable without a lookup. Byte layout (big-endian):
// bytes[0:4] = height, bytes[4:32] = the low 28 bytes of the block's content
// hash.
type BlockID common.Hash

// ZeroBlockID is the id of the (nonexistent) parent of the genesis block.
var ZeroBlockID BlockID

// NewBlockID packs a height and a content hash into a BlockID the way the
// original embeds block_num into block_id_type: the content hash supplies
// the low-order bytes, the height overwrites the high-order 4 bytes.
func NewBlockID(height uint32, contentHash common.Hash) BlockID {
	var id BlockID
	copy(id[:], contentHash[:])
	binary.BigEndian.PutUint32(id[0:4], height)
	return id
}

// Height extracts the block height without any lookup.
func (id BlockID) Height() uint32 {
	return binary.BigEndian.Uint32(id[0:4])
}

func (id BlockID) Hash() common.Hash { return common.Hash(id) }

func (id BlockID) String() string { return common.Hash(id).Hex() }

func (id BlockID) Empty() bool { return id == BlockID{} }

// ShardLock is the (account, scope) pair a shard declares a read or write
// lock on.
type ShardLock struct {
	Account string
	Scope   string
}

func (l ShardLock) Less(o ShardLock) bool {
	if l.Account != o.Account {
		return l.Account < o.Account
	}
	return l.Scope < o.Scope
}

func (l ShardLock) Equal(o ShardLock) bool {
	return l.Account == o.Account && l.Scope == o.Scope
}

// SortedUniqueLocks reports whether locks is strictly sorted (and therefore
// unique), matching the controller's invariant on declared read/write
// locks
func SortedUniqueLocks(locks []ShardLock) bool {
	for i := 1; i < len(locks); i++ {
		if !locks[i-1].Less(locks[i]) {
			return false
		}
	}
	return true
}

// DedupSortLocks returns locks deduplicated and sorted, the Go equivalent
// of the source's fc::deduplicate.
func DedupSortLocks(locks []ShardLock) []ShardLock {
	out := make([]ShardLock, len(locks))
	copy(out, locks)
	insertionSortLocks(out)
	n := 0
	for i, l := range out {
		if i == 0 || !l.Equal(out[n-1]) {
			out[n] = l
			n++
		}
	}
	return out[:n]
}

func insertionSortLocks(locks []ShardLock) {
	for i := 1; i < len(locks); i++ {
		for j := i; j > 0 && locks[j].Less(locks[j-1]); j-- {
			locks[j], locks[j-1] = locks[j-1], locks[j]
		}
	}
}

func EqualLockSlices(a, b []ShardLock) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
