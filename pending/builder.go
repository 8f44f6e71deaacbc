// Package pending assembles the next block as a hierarchy of regions,
// cycles, and shards, backed by a nested
// undo session on the State Store. It owns exactly one pending block at a
// time; the block processor drives it through start/finalize calls and
// either commits it via generate or discards it via Clear.
package pending

import (
	"errors"
	"time"

	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/merkle"
	"github.com/asset-chain/chain-controller/store"
)

// ErrAlreadyPending is returned by Start when a pending block already
// exists.
var ErrAlreadyPending = errors.New("pending: a block is already pending")

// ErrNoPendingBlock is returned by operations that require an active
// pending block when none exists.
var ErrNoPendingBlock = errors.New("pending: no pending block")

// Block is the mutable pending-block state: a partial signed block, its
// nested undo session, the in-progress block trace, and the metadata of
// every transaction queued so far
type Block struct {
	Block    *chaintypes.SignedBlock
	Trace    chaintypes.BlockTrace
	Session  store.Session
	Metadata []*chaintypes.Metadata

	curRegion int
	curCycle  int
	curTrace  chaintypes.CycleTrace
}

// Builder owns the single pending block, if any.
type Builder struct {
	pending *Block
}

// New returns an empty Builder.
func New() *Builder { return &Builder{} }

// Pending returns the current pending block, or nil.
func (b *Builder) Pending() *Block { return b.pending }

// Require returns the current pending block, or ErrNoPendingBlock if none
// exists — the guard txapply and controller call before appending to a
// block that may have already been cleared by a concurrent failure path.
func (b *Builder) Require() (*Block, error) {
	if b.pending == nil {
		return nil, ErrNoPendingBlock
	}
	return b.pending, nil
}

// Start begins a new pending block: one region, a fresh undo session
// pushed from parent, and an initial cycle
func (b *Builder) Start(parent store.Session, timestamp time.Time) (*Block, error) {
	if b.pending != nil {
		return nil, ErrAlreadyPending
	}
	session := parent.Push()
	blk := &Block{
		Block: &chaintypes.SignedBlock{
			Timestamp: timestamp,
			Regions:   []chaintypes.Region{{RegionID: 0}},
		},
		Session: session,
	}
	b.pending = blk
	b.StartCycle()
	return blk, nil
}

// StartCycle appends an empty cycle to the current region and a fresh
// cycle trace, then starts the cycle's first shard.
func (b *Builder) StartCycle() {
	blk := b.pending
	region := &blk.Block.Regions[blk.curRegion]
	region.Cycles = append(region.Cycles, chaintypes.Cycle{})
	blk.curCycle = len(region.Cycles) - 1
	blk.curTrace = chaintypes.CycleTrace{}
	b.StartShard()
}

// StartShard appends an empty shard to the current cycle.
func (b *Builder) StartShard() {
	blk := b.pending
	region := &blk.Block.Regions[blk.curRegion]
	cycle := &region.Cycles[blk.curCycle]
	cycle.Shards = append(cycle.Shards, chaintypes.Shard{})
	blk.curTrace.ShardTraces = append(blk.curTrace.ShardTraces, chaintypes.ShardTrace{})
}

// CurrentShard returns pointers to the in-progress shard and its trace, so
// the transaction applicator can append receipts and traces to them.
func (b *Builder) CurrentShard() (*chaintypes.Shard, *chaintypes.ShardTrace) {
	blk := b.pending
	region := &blk.Block.Regions[blk.curRegion]
	cycle := &region.Cycles[blk.curCycle]
	shardIdx := len(cycle.Shards) - 1
	return &cycle.Shards[shardIdx], &blk.curTrace.ShardTraces[shardIdx]
}

// Location returns the (region, cycle, shard) indices transaction metadata
// should be stamped with.
func (b *Builder) Location() (region, cycle, shard uint32) {
	blk := b.pending
	r := &blk.Block.Regions[blk.curRegion]
	return uint32(blk.curRegion), uint32(blk.curCycle), uint32(len(r.Cycles[blk.curCycle].Shards) - 1)
}

// FinalizeCycle computes each shard's action Merkle root, appends the
// in-progress cycle trace to the region trace, and resets for the next
// cycle Side effects of deferred generation
// and cancellation are the caller's responsibility (txapply.ApplyCycleTrace)
// — the builder only manages the shape of the block.
func (b *Builder) FinalizeCycle() {
	blk := b.pending
	for i := range blk.curTrace.ShardTraces {
		blk.curTrace.ShardTraces[i].ActionMerkleRoot = merkle.Root(blk.curTrace.ShardTraces[i].ActionDigests())
	}
	for len(blk.Trace.RegionTraces) <= blk.curRegion {
		blk.Trace.RegionTraces = append(blk.Trace.RegionTraces, chaintypes.RegionTrace{})
	}
	region := &blk.Trace.RegionTraces[blk.curRegion]
	region.CycleTraces = append(region.CycleTraces, blk.curTrace)
	blk.curTrace = chaintypes.CycleTrace{}
}

// Clear discards the pending block, undoing its session.
func (b *Builder) Clear() {
	if b.pending == nil {
		return
	}
	b.pending.Session.Undo()
	b.pending = nil
}

// Take removes and returns the pending block without touching its
// session — the caller (block processor, on generate_block) has already
// decided to squash it.
func (b *Builder) Take() *Block {
	blk := b.pending
	b.pending = nil
	return blk
}
