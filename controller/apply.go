package controller

import (
	"context"
	"fmt"

	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/pending"
	"github.com/asset-chain/chain-controller/store"
	"github.com/asset-chain/chain-controller/txapply"
)

// applyBlockContents re-executes b's declared regions/cycles/shards against
// parentSession, verifying every declared receipt, lock set, and Merkle
// root along the way. It never mutates Controller state directly — on
// success the caller (pushExtendingBlock) still owns deciding whether to
// finalize. Grounded on chain_controller::__apply_block.
func (c *Controller) applyBlockContents(ctx context.Context, parentSession store.Session, b *chaintypes.SignedBlock, parent *chaintypes.SignedBlock, skip SkipFlags) (*pending.Block, error) {
	parentHeight, parentTime := uint32(0), c.genesisTime
	if parent != nil {
		parentHeight, parentTime = parent.Height(), parent.Timestamp
	}
	if err := c.validateBlockHeader(b, parentHeight, parentTime, skip); err != nil {
		return nil, err
	}
	if err := c.checkAndApplyNewSchedule(b.Height(), b, skip); err != nil {
		return nil, err
	}
	if !skip.has(SkipBlockSizeCheck) {
		if uint64(len(chaintypes.PackBlock(b))) > c.cfg.Limits.MaxBlockSize {
			return nil, fmt.Errorf("%w: block exceeds max size", ErrBlockValidate)
		}
	}

	byID := make(map[[32]byte]*chaintypes.Transaction, len(b.InputTransactions))
	for _, t := range b.InputTransactions {
		byID[t.Id()] = t
	}

	blk, err := c.builder.Start(parentSession, b.Timestamp)
	if err != nil {
		return nil, err
	}
	blk.Block.Producer = b.Producer
	blk.Block.NewProducerSchedule = b.NewProducerSchedule
	blk.Block.InputTransactions = b.InputTransactions

	var lastRegion uint16 = 0
	for ri, region := range b.Regions {
		if ri > 0 && region.RegionID <= lastRegion {
			c.builder.Clear()
			return nil, fmt.Errorf("%w: region ids must strictly increase", ErrBlockValidate)
		}
		lastRegion = region.RegionID

		for ci, cycle := range region.Cycles {
			if ci > 0 {
				c.builder.StartCycle()
			}
			var seenWrites []chaintypes.ShardLock
			var seenReads []chaintypes.ShardLock

			for si, shard := range cycle.Shards {
				if si > 0 {
					c.builder.StartShard()
				}
				if !chaintypes.SortedUniqueLocks(shard.ReadLocks) || !chaintypes.SortedUniqueLocks(shard.WriteLocks) {
					c.builder.Clear()
					return nil, fmt.Errorf("%w: shard locks not sorted/unique", ErrBlockLock)
				}
				if err := noCrossShardConflict(shard, seenWrites, seenReads); err != nil {
					c.builder.Clear()
					return nil, err
				}
				seenWrites = append(seenWrites, shard.WriteLocks...)
				seenReads = append(seenReads, shard.ReadLocks...)

				shardPtr, shardTracePtr := c.builder.CurrentShard()
				shardPtr.ReadLocks = shard.ReadLocks
				shardPtr.WriteLocks = shard.WriteLocks

				var observedReads, observedWrites []chaintypes.ShardLock

				for _, rcpt := range shard.Transactions {
					meta, err := c.resolveMetadata(blk.Session, rcpt.ID, byID)
					if err != nil {
						c.builder.Clear()
						return nil, err
					}
					region32, cycle32, shard32 := uint32(ri), uint32(ci), uint32(si)
					trace, effects, err := c.applier.ApplyTransaction(ctx, blk.Session, meta, region32, cycle32, shard32)
					if err != nil {
						c.builder.Clear()
						return nil, err
					}
					if trace.Status != rcpt.Status {
						c.builder.Clear()
						return nil, fmt.Errorf("%w: transaction status mismatch for %x", ErrBlockValidate, rcpt.ID)
					}
					if err := txapply.ApplyCycleTrace(blk.Session, b.Timestamp, effects.Generated, effects.Canceled); err != nil {
						c.builder.Clear()
						return nil, err
					}
					if meta.Sender != "" {
						_ = txapply.RemoveGeneratedRecord(blk.Session, meta.Sender, meta.SenderID)
					}
					shardPtr.Transactions = append(shardPtr.Transactions, chaintypes.TransactionReceipt{ID: trace.ID, Status: trace.Status})
					shardTracePtr.TransactionTraces = append(shardTracePtr.TransactionTraces, trace)

					observedReads = append(observedReads, trace.ReadLocks()...)
					observedWrites = append(observedWrites, trace.WriteLocks()...)
				}

				if !skip.has(SkipMerkleCheck) {
					if !chaintypes.EqualLockSlices(chaintypes.DedupSortLocks(observedReads), shard.ReadLocks) ||
						!chaintypes.EqualLockSlices(chaintypes.DedupSortLocks(observedWrites), shard.WriteLocks) {
						c.builder.Clear()
						return nil, fmt.Errorf("%w: declared shard locks do not match the union of observed data accesses", ErrBlockLock)
					}
				}
			}
			c.builder.FinalizeCycle()
		}
	}

	taken := c.builder.Take()

	if !skip.has(SkipMerkleCheck) {
		gotTrx := transactionMerkleRoot(taken.Block)
		gotAction := actionMerkleRoot(taken.Trace)
		if gotTrx != b.TransactionMerkleRoot {
			taken.Session.Undo()
			return nil, fmt.Errorf("%w: transaction_mroot mismatch", ErrBlockValidate)
		}
		if gotAction != b.ActionMerkleRoot {
			taken.Session.Undo()
			return nil, fmt.Errorf("%w: action_mroot mismatch", ErrBlockValidate)
		}
	}
	if !skip.has(SkipMerkleCheck) && parent != nil {
		if b.BlockMerkleRoot != c.dgp.BlockMerkle.Root() {
			taken.Session.Undo()
			return nil, fmt.Errorf("%w: block_mroot mismatch", ErrBlockValidate)
		}
	}

	taken.Block = b
	return taken, nil
}

// resolveMetadata finds the transaction a receipt refers to, either among
// the block's declared input transactions or, failing that, among mature
// generated records — the Go equivalent of the source distinguishing
// "input" from "deferred" transactions while applying a received block.
func (c *Controller) resolveMetadata(session store.Session, id [32]byte, byID map[[32]byte]*chaintypes.Transaction) (*chaintypes.Metadata, error) {
	if trx, ok := byID[id]; ok {
		return chaintypes.NewMetadata(trx), nil
	}
	rec, err := txapply.FindGeneratedByID(session, id)
	if err != nil {
		return nil, fmt.Errorf("%w: receipt %x names neither an input nor a deferred transaction", ErrBlockValidate, id)
	}
	deferred, err := rec.Deferred()
	if err != nil {
		return nil, err
	}
	return chaintypes.NewDeferredMetadata(&deferred.Transaction, deferred.Sender, deferred.SenderID), nil
}

func noCrossShardConflict(shard chaintypes.Shard, seenWrites, seenReads []chaintypes.ShardLock) error {
	for _, w := range shard.WriteLocks {
		for _, ow := range seenWrites {
			if w.Equal(ow) {
				return fmt.Errorf("%w: two shards in the same cycle write %s/%s", ErrBlockConcurrency, w.Account, w.Scope)
			}
		}
		for _, or := range seenReads {
			if w.Equal(or) {
				return fmt.Errorf("%w: shard writes %s/%s already read by an earlier shard", ErrBlockConcurrency, w.Account, w.Scope)
			}
		}
	}
	for _, r := range shard.ReadLocks {
		for _, ow := range seenWrites {
			if r.Equal(ow) {
				return fmt.Errorf("%w: shard reads %s/%s already written by an earlier shard", ErrBlockConcurrency, r.Account, r.Scope)
			}
		}
	}
	return nil
}
