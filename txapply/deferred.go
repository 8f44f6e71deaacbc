package txapply

import (
	"context"
	"time"

	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/pending"
)

// PushDeferredTransactions selects every generated record whose
// DelayUntil has passed headTime, applies each as an ordinary transaction
// (skipping ones already in the dedup index), and removes its record
// afterward either way. When flush is set and at least one matured record
// would land in the cycle currently being built, it finalizes that cycle
// and starts a new one first, so deferred work lands in a cycle of its
// own
func (a *Applicator) PushDeferredTransactions(ctx context.Context, b *pending.Builder, headTime time.Time, flush bool) ([]chaintypes.TransactionTrace, error) {
	blk, err := b.Require()
	if err != nil {
		return nil, err
	}

	records, err := MatureGeneratedRecords(blk.Session, headTime)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	if flush {
		b.FinalizeCycle()
		b.StartCycle()
	}

	var traces []chaintypes.TransactionTrace
	for _, rec := range records {
		if IsDuplicate(blk.Session, rec.ID) {
			_ = RemoveGeneratedRecord(blk.Session, rec.Sender, rec.SenderID)
			continue
		}
		deferred, err := rec.Deferred()
		if err != nil {
			return traces, err
		}
		meta := chaintypes.NewDeferredMetadata(&deferred.Transaction, deferred.Sender, deferred.SenderID)
		region, cycle, shard := b.Location()

		trace, effects, err := a.ApplyTransaction(ctx, blk.Session, meta, region, cycle, shard)
		if err != nil {
			return traces, err
		}
		if err := ApplyCycleTrace(blk.Session, headTime, effects.Generated, effects.Canceled); err != nil {
			return traces, err
		}

		shardPtr, shardTracePtr := b.CurrentShard()
		shardPtr.ReadLocks = chaintypes.DedupSortLocks(append(shardPtr.ReadLocks, trace.ReadLocks()...))
		shardPtr.WriteLocks = chaintypes.DedupSortLocks(append(shardPtr.WriteLocks, trace.WriteLocks()...))
		shardPtr.Transactions = append(shardPtr.Transactions, chaintypes.TransactionReceipt{ID: trace.ID, Status: trace.Status})
		shardTracePtr.TransactionTraces = append(shardTracePtr.TransactionTraces, trace)
		traces = append(traces, trace)

		_ = RemoveGeneratedRecord(blk.Session, rec.Sender, rec.SenderID)
	}
	return traces, nil
}
