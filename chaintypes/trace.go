package chaintypes

// AccessKind distinguishes a read from a write in a recorded data access.
type AccessKind uint8

const (
	AccessRead AccessKind = iota
	AccessWrite
)

// DataAccess is one (code, scope) pair an action touched, tagged with
// whether it read or wrote it. The block processor's shard-lock validation
// compares the deduplicated union of these against
// a shard's declared ReadLocks/WriteLocks.
type DataAccess struct {
	Kind  AccessKind
	Code  string
	Scope string
}

// ActionTrace is the record of one executed action: who ran it, its
// console output, and what it touched.
type ActionTrace struct {
	Receiver   string
	Console    string
	DataAccess []DataAccess
}

// TransactionTrace is the result of applying one transaction: its status,
// the region/cycle/shard it landed in, and the trace of each action it ran.
type TransactionTrace struct {
	ID          [32]byte
	Status      TransactionStatus
	RegionID    uint32
	CycleIndex  uint32
	ShardIndex  uint32
	ActionTraces []ActionTrace
}

// ReadLocks/WriteLocks returns the deduplicated, sorted lock set this
// trace's actions actually touched, used to check against a shard's
// declared locks.
func (t *TransactionTrace) ReadLocks() []ShardLock  { return locksOfKind(t, AccessRead) }
func (t *TransactionTrace) WriteLocks() []ShardLock { return locksOfKind(t, AccessWrite) }

func locksOfKind(t *TransactionTrace, kind AccessKind) []ShardLock {
	var locks []ShardLock
	for _, at := range t.ActionTraces {
		for _, da := range at.DataAccess {
			if da.Kind == kind {
				locks = append(locks, ShardLock{Account: da.Code, Scope: da.Scope})
			}
		}
	}
	return DedupSortLocks(locks)
}

// ShardTrace accumulates the transaction traces of one shard, from which
// its action Merkle root is computed. ActionMerkleRoot is filled in by the
// pending builder once the shard is finalized; the block-level action
// Merkle root is the root over every shard's ActionMerkleRoot, not a flat
// merkle of every action digest in the block.
type ShardTrace struct {
	TransactionTraces []TransactionTrace
	ActionMerkleRoot  [32]byte
}

// ActionDigests returns one content hash per action trace in this shard, in
// execution order, the leaf list the caller feeds to merkle.Root to get the
// shard's action Merkle root. Kept as plain data rather than a merkle
// dependency here: chaintypes stays a leaf package.
func (s *ShardTrace) ActionDigests() [][32]byte {
	var leaves [][32]byte
	for _, tt := range s.TransactionTraces {
		for _, at := range tt.ActionTraces {
			leaves = append(leaves, hashActionTrace(at))
		}
	}
	return leaves
}

func hashActionTrace(at ActionTrace) [32]byte {
	var buf []byte
	buf = append(buf, []byte(at.Receiver)...)
	buf = append(buf, []byte(at.Console)...)
	for _, da := range at.DataAccess {
		buf = append(buf, byte(da.Kind))
		buf = append(buf, []byte(da.Code)...)
		buf = append(buf, []byte(da.Scope)...)
	}
	return hashBytes(buf)
}

// CycleTrace accumulates the shard traces of one cycle.
type CycleTrace struct {
	ShardTraces []ShardTrace
}

// RegionTrace accumulates the cycle traces of one region.
type RegionTrace struct {
	CycleTraces []CycleTrace
}

// BlockTrace accumulates the region traces of one pending or applied block.
type BlockTrace struct {
	RegionTraces []RegionTrace
}
