package txapply

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/interp"
	"github.com/asset-chain/chain-controller/pending"
	"github.com/asset-chain/chain-controller/store"
)

// onErrorAlwaysFails wraps a Fake but forces the onerror fallback action
// itself to fail, for exercising the hard-fail-with-sender path.
type onErrorAlwaysFails struct{ *interp.Fake }

func (f onErrorAlwaysFails) ApplyAction(ctx context.Context, session store.Session, action *chaintypes.Action, meta *chaintypes.Metadata) (interp.Result, error) {
	if action.Name == OnErrorAction {
		return interp.Result{}, errors.New("txapply: onerror also fails")
	}
	return f.Fake.ApplyAction(ctx, session, action, meta)
}

func TestApplyTransactionSuccessSquashesAndRecordsDedup(t *testing.T) {
	a := New(interp.NewFake())
	root := store.NewMemStore().StartUndoSession()
	trx := &chaintypes.Transaction{
		Expiration: time.Now().Add(time.Hour),
		Actions:    []chaintypes.Action{{Account: "dapp", Payload: []byte("write:balances")}},
	}
	meta := chaintypes.NewMetadata(trx)

	trace, effects, err := a.ApplyTransaction(context.Background(), root, meta, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, chaintypes.StatusExecuted, trace.Status)
	assert.Equal(t, meta.ID, trace.ID)
	assert.Empty(t, effects.Generated)
	assert.True(t, IsDuplicate(root, meta.ID))
}

func TestApplyTransactionHardFailPropagatesWithoutSender(t *testing.T) {
	a := New(interp.NewFake())
	root := store.NewMemStore().StartUndoSession()
	trx := &chaintypes.Transaction{Actions: []chaintypes.Action{{Account: "dapp", Payload: []byte("fail:hard")}}}
	meta := chaintypes.NewMetadata(trx)

	_, _, err := a.ApplyTransaction(context.Background(), root, meta, 0, 0, 0)
	assert.ErrorIs(t, err, interp.ErrHardFail)
	assert.False(t, IsDuplicate(root, meta.ID), "a failed transaction's session is undone, not squashed")
}

func TestApplyTransactionSoftFailWithSenderFallsBackToOnError(t *testing.T) {
	a := New(interp.NewFake())
	root := store.NewMemStore().StartUndoSession()
	trx := &chaintypes.Transaction{Actions: []chaintypes.Action{{Account: "dapp", Payload: []byte("fail:soft")}}}
	meta := chaintypes.NewDeferredMetadata(trx, "alice", 1)

	trace, _, err := a.ApplyTransaction(context.Background(), root, meta, 0, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, chaintypes.StatusSoftFail, trace.Status)
}

func TestApplyTransactionBothMainAndOnErrorFail(t *testing.T) {
	a := New(onErrorAlwaysFails{interp.NewFake()})
	root := store.NewMemStore().StartUndoSession()
	trx := &chaintypes.Transaction{Actions: []chaintypes.Action{{Account: "dapp", Payload: []byte("fail:hard")}}}
	meta := chaintypes.NewDeferredMetadata(trx, "alice", 1)

	trace, effects, err := a.ApplyTransaction(context.Background(), root, meta, 1, 2, 3)
	require.NoError(t, err, "a hard fail on the onerror fallback itself is reported via trace status, not an error")
	assert.Equal(t, chaintypes.StatusHardFail, trace.Status)
	assert.Equal(t, meta.ID, trace.ID)
	assert.Equal(t, uint32(1), trace.RegionID)
	assert.Equal(t, uint32(2), trace.CycleIndex)
	assert.Equal(t, uint32(3), trace.ShardIndex)
	assert.Empty(t, effects.Generated)
}

func TestUpdateUsageAndAccountUsageDecay(t *testing.T) {
	root := store.NewMemStore().StartUndoSession()
	require.NoError(t, UpdateUsage(root, "alice", 800, 80))
	net, cpu, err := AccountUsage(root, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), net) // (0*7+800)/8
	assert.Equal(t, uint64(10), cpu)

	require.NoError(t, UpdateUsage(root, "alice", 0, 0))
	net, _, err = AccountUsage(root, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(87), net) // (100*7+0)/8
}

func TestAccountUsageUnknownAccountIsZero(t *testing.T) {
	root := store.NewMemStore().StartUndoSession()
	net, cpu, err := AccountUsage(root, "ghost")
	require.NoError(t, err)
	assert.Zero(t, net)
	assert.Zero(t, cpu)
}

func TestApplyCycleTracePersistsGeneratedAndRemovesCanceled(t *testing.T) {
	root := store.NewMemStore().StartUndoSession()
	gen := &chaintypes.DeferredTransaction{
		Sender: "alice", SenderID: 1,
		Transaction: chaintypes.Transaction{Actions: []chaintypes.Action{{Account: "dapp"}}},
	}
	require.NoError(t, ApplyCycleTrace(root, time.Unix(100, 0), []*chaintypes.DeferredTransaction{gen}, nil))

	found, err := FindGeneratedByID(root, gen.Id())
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Sender)

	require.NoError(t, ApplyCycleTrace(root, time.Unix(100, 0), nil, []interp.CancelKey{{Sender: "alice", SenderID: 1}}))
	_, err = FindGeneratedByID(root, gen.Id())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMatureGeneratedRecordsSortedNewestDelayFirst(t *testing.T) {
	root := store.NewMemStore().StartUndoSession()
	recs := []*chaintypes.DeferredTransaction{
		{Sender: "a", SenderID: 1, ExecuteAfter: time.Unix(10, 0)},
		{Sender: "a", SenderID: 2, ExecuteAfter: time.Unix(30, 0)},
		{Sender: "a", SenderID: 3, ExecuteAfter: time.Unix(20, 0)},
	}
	require.NoError(t, ApplyCycleTrace(root, time.Unix(1, 0), recs, nil))

	mature, err := MatureGeneratedRecords(root, time.Unix(100, 0))
	require.NoError(t, err)
	require.Len(t, mature, 3)
	assert.Equal(t, uint64(2), mature[0].SenderID)
	assert.Equal(t, uint64(3), mature[1].SenderID)
	assert.Equal(t, uint64(1), mature[2].SenderID)
}

func TestMatureGeneratedRecordsExcludesFutureDelay(t *testing.T) {
	root := store.NewMemStore().StartUndoSession()
	rec := &chaintypes.DeferredTransaction{Sender: "a", SenderID: 1, ExecuteAfter: time.Unix(1000, 0)}
	require.NoError(t, ApplyCycleTrace(root, time.Unix(1, 0), []*chaintypes.DeferredTransaction{rec}, nil))

	mature, err := MatureGeneratedRecords(root, time.Unix(5, 0))
	require.NoError(t, err)
	assert.Empty(t, mature)
}

func TestPushDeferredTransactionsAppliesMatureAndClearsRecords(t *testing.T) {
	root := store.NewMemStore().StartUndoSession()
	b := pending.New()
	blk, err := b.Start(root, time.Unix(100, 0))
	require.NoError(t, err)

	gen := &chaintypes.DeferredTransaction{
		Sender:       "alice",
		SenderID:     1,
		Transaction:  chaintypes.Transaction{Actions: []chaintypes.Action{{Account: "dapp", Payload: []byte("write:x")}}},
		ExecuteAfter: time.Unix(50, 0),
	}
	require.NoError(t, ApplyCycleTrace(blk.Session, time.Unix(40, 0), []*chaintypes.DeferredTransaction{gen}, nil))

	a := New(interp.NewFake())
	traces, err := a.PushDeferredTransactions(context.Background(), b, time.Unix(100, 0), false)
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, chaintypes.StatusExecuted, traces[0].Status)

	_, err = FindGeneratedByID(blk.Session, gen.Id())
	assert.ErrorIs(t, err, store.ErrNotFound, "a matured record must be removed once applied")

	shard, shardTrace := b.CurrentShard()
	assert.Len(t, shard.Transactions, 1)
	assert.Len(t, shardTrace.TransactionTraces, 1)
}

func TestPushDeferredTransactionsNoMatureRecordsIsNoop(t *testing.T) {
	root := store.NewMemStore().StartUndoSession()
	b := pending.New()
	_, err := b.Start(root, time.Unix(1, 0))
	require.NoError(t, err)

	a := New(interp.NewFake())
	traces, err := a.PushDeferredTransactions(context.Background(), b, time.Unix(1, 0), false)
	require.NoError(t, err)
	assert.Nil(t, traces)
}

func TestPushDeferredTransactionsRemovesDuplicateWithoutApplying(t *testing.T) {
	root := store.NewMemStore().StartUndoSession()
	b := pending.New()
	blk, err := b.Start(root, time.Unix(1, 0))
	require.NoError(t, err)

	gen := &chaintypes.DeferredTransaction{Sender: "alice", SenderID: 1, ExecuteAfter: time.Unix(0, 0)}
	require.NoError(t, ApplyCycleTrace(blk.Session, time.Unix(0, 0), []*chaintypes.DeferredTransaction{gen}, nil))
	insertDedup(blk.Session, gen.Id(), time.Now().Add(time.Hour))

	a := New(interp.NewFake())
	traces, err := a.PushDeferredTransactions(context.Background(), b, time.Unix(1, 0), false)
	require.NoError(t, err)
	assert.Empty(t, traces)

	_, err = FindGeneratedByID(blk.Session, gen.Id())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
