package interp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/store"
)

func TestDeadlineContextNoDeadlineIsUnchanged(t *testing.T) {
	ctx, cancel := DeadlineContext(context.Background(), &chaintypes.Metadata{})
	defer cancel()
	assert.NoError(t, CheckDeadline(ctx))
}

func TestDeadlineContextExpiredDeadlineFailsCheckDeadline(t *testing.T) {
	meta := &chaintypes.Metadata{ProcessingDeadline: time.Now().Add(-time.Second)}
	ctx, cancel := DeadlineContext(context.Background(), meta)
	defer cancel()
	<-ctx.Done()
	assert.ErrorIs(t, CheckDeadline(ctx), ErrDeadlineExceeded)
}

func TestCheckDeadlineOnCanceledNonDeadlineContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := CheckDeadline(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrDeadlineExceeded)
}

func newSession() store.Session {
	return store.NewMemStore().StartUndoSession()
}

func TestFakeApplyActionSoftFail(t *testing.T) {
	f := NewFake()
	action := &chaintypes.Action{Account: "dapp", Payload: []byte("fail:soft")}
	_, err := f.ApplyAction(context.Background(), newSession(), action, &chaintypes.Metadata{})
	assert.ErrorIs(t, err, ErrSoftFail)
}

func TestFakeApplyActionHardFail(t *testing.T) {
	f := NewFake()
	action := &chaintypes.Action{Account: "dapp", Payload: []byte("fail:hard")}
	_, err := f.ApplyAction(context.Background(), newSession(), action, &chaintypes.Metadata{})
	assert.ErrorIs(t, err, ErrHardFail)
}

func TestFakeApplyActionWriteRecordsAccessAndMutatesSession(t *testing.T) {
	f := NewFake()
	session := newSession()
	action := &chaintypes.Action{Account: "dapp", Payload: []byte("write:balances")}

	result, err := f.ApplyAction(context.Background(), session, action, &chaintypes.Metadata{})
	require.NoError(t, err)
	require.Len(t, result.Applied.DataAccess, 1)
	assert.Equal(t, chaintypes.AccessWrite, result.Applied.DataAccess[0].Kind)
	assert.Equal(t, "dapp", result.Applied.DataAccess[0].Code)
	assert.Equal(t, "balances", result.Applied.DataAccess[0].Scope)

	v, err := session.Index("dapp").Get([]byte("balances"))
	require.NoError(t, err)
	assert.Equal(t, []byte("write:balances"), v)
}

func TestFakeApplyActionDefaultIsReadWithAuthorizationScope(t *testing.T) {
	f := NewFake()
	action := &chaintypes.Action{
		Account:       "dapp",
		Payload:       []byte("noop"),
		Authorization: []chaintypes.Authorization{{Actor: "alice", Permission: "active"}},
	}
	result, err := f.ApplyAction(context.Background(), newSession(), action, &chaintypes.Metadata{})
	require.NoError(t, err)
	require.Len(t, result.Applied.DataAccess, 1)
	assert.Equal(t, chaintypes.AccessRead, result.Applied.DataAccess[0].Kind)
	assert.Equal(t, "active", result.Applied.DataAccess[0].Scope)
}

func TestFakeApplyActionDefaultReadWithNoAuthorizationHasEmptyScope(t *testing.T) {
	f := NewFake()
	action := &chaintypes.Action{Account: "dapp", Payload: []byte("noop")}
	result, err := f.ApplyAction(context.Background(), newSession(), action, &chaintypes.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, "", result.Applied.DataAccess[0].Scope)
}

func TestFakeApplyActionRespectsExpiredDeadlineBeforeScriptedBehavior(t *testing.T) {
	f := NewFake()
	meta := &chaintypes.Metadata{ProcessingDeadline: time.Now().Add(-time.Second)}
	ctx, cancel := DeadlineContext(context.Background(), meta)
	defer cancel()
	<-ctx.Done()

	action := &chaintypes.Action{Account: "dapp", Payload: []byte("write:balances")}
	_, err := f.ApplyAction(ctx, newSession(), action, meta)
	assert.ErrorIs(t, err, ErrDeadlineExceeded)
}

func TestFakeApplyActionOnApplyHookInjectsGeneratedAndCanceled(t *testing.T) {
	wantGenerated := []*chaintypes.DeferredTransaction{{Sender: "dapp", SenderID: 1}}
	wantCanceled := []CancelKey{{Sender: "dapp", SenderID: 2}}
	f := &Fake{
		OnApply: func(action *chaintypes.Action, meta *chaintypes.Metadata) ([]*chaintypes.DeferredTransaction, []CancelKey) {
			return wantGenerated, wantCanceled
		},
	}
	action := &chaintypes.Action{Account: "dapp", Payload: []byte("noop")}
	result, err := f.ApplyAction(context.Background(), newSession(), action, &chaintypes.Metadata{})
	require.NoError(t, err)
	assert.Equal(t, wantGenerated, result.Generated)
	assert.Equal(t, wantCanceled, result.CanceledDeferred)
}

func TestFakeApplyActionOnApplyNotCalledOnScriptedFailure(t *testing.T) {
	called := false
	f := &Fake{
		OnApply: func(action *chaintypes.Action, meta *chaintypes.Metadata) ([]*chaintypes.DeferredTransaction, []CancelKey) {
			called = true
			return nil, nil
		},
	}
	action := &chaintypes.Action{Account: "dapp", Payload: []byte("fail:hard")}
	_, err := f.ApplyAction(context.Background(), newSession(), action, &chaintypes.Metadata{})
	assert.ErrorIs(t, err, ErrHardFail)
	assert.False(t, called, "a scripted failure must short-circuit before the OnApply hook runs")
}
