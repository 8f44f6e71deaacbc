package chaintypes

import (
	"time"
)

// TransactionReceipt is the (id, status) pair recorded in a shard's
// ordered transaction list. The status is declared up front by the block
// producer and re-checked by the validating node against what apply
// actually returned
type TransactionReceipt struct {
	ID     [32]byte
	Status TransactionStatus
}

type TransactionStatus uint8

const (
	StatusExecuted TransactionStatus = iota
	StatusSoftFail
	StatusHardFail
)

func (s TransactionStatus) String() string {
	switch s {
	case StatusExecuted:
		return "executed"
	case StatusSoftFail:
		return "soft_fail"
	case StatusHardFail:
		return "hard_fail"
	default:
		return "unknown"
	}
}

// Shard declares (sorted-unique read_locks, sorted-unique write_locks,
// ordered transactions).
type Shard struct {
	ReadLocks    []ShardLock
	WriteLocks   []ShardLock
	Transactions []TransactionReceipt
}

// Cycle is an ordered list of shards; all shards in a cycle logically
// execute "in parallel" with respect to the declared locking discipline.
type Cycle struct {
	Shards []Shard
}

// Region is an ordered list of cycles; regions within a block execute in
// order of their RegionID.
type Region struct {
	RegionID uint16
	Cycles   []Cycle
}

// ProducerKey is a single entry of a producer schedule: an account paired
// with the public key it signs blocks with.
type ProducerKey struct {
	ProducerName string
	SigningKey   []byte
}

// ProducerSchedule is the versioned, ordered list of active producers.
type ProducerSchedule struct {
	Version   uint32
	Producers []ProducerKey
}

func (s ProducerSchedule) Equal(o ProducerSchedule) bool {
	if len(s.Producers) != len(o.Producers) {
		return false
	}
	for i := range s.Producers {
		if s.Producers[i].ProducerName != o.Producers[i].ProducerName {
			return false
		}
		if string(s.Producers[i].SigningKey) != string(o.Producers[i].SigningKey) {
			return false
		}
	}
	return true
}

// SignedBlock is the full on-chain block: {timestamp, producer,
// previous_id, transaction_merkle_root, action_merkle_root,
// block_merkle_root, optional new_producer_schedule, ordered regions,
// producer signature}.
type SignedBlock struct {
	Timestamp             time.Time
	Producer               string
	Previous                BlockID
	TransactionMerkleRoot  [32]byte
	ActionMerkleRoot       [32]byte
	BlockMerkleRoot        [32]byte
	NewProducerSchedule    *ProducerSchedule
	Regions                []Region
	InputTransactions      []*Transaction // transactions packed alongside the block, not re-derivable from receipts
	Signature              []byte

	heightHint uint32
	id         BlockID
	hasID      bool
}

// Height returns the block's height, i.e. block_num in the source.
func (b *SignedBlock) Height() uint32 {
	return b.ID().Height()
}

// ID computes (and memoizes) the block's id, built the same way NewBlockID
// is: a content hash with the height folded into the high 4 bytes.
func (b *SignedBlock) ID() BlockID {
	if b.hasID {
		return b.id
	}
	content := PackBlockContent(b)
	id := NewBlockID(b.heightHint, hashBytes(content))
	b.id = id
	b.hasID = true
	return id
}

// heightHint is set by the block processor before the first ID() call
// since the height is otherwise only known from context (e.g. previous's
// height + 1), not from the block's own fields.
//
// This mirrors how the source's signed_block::id() depends on header
// fields alone but the *controller* is the one that knows block_num when
// producing or receiving the block.
func (b *SignedBlock) SetHeightHint(h uint32) {
	b.heightHint = h
	b.hasID = false
}
