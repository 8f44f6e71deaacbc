package interp

import (
	"context"
	"fmt"

	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/store"
)

// Fake is a deterministic Interpreter for tests and fake networks, the
// interp equivalent of evmcore's MustApplyFakeGenesis/FakeKey: no real
// execution sandbox, just enough behavior to drive the applicator and
// block processor through their real state-transition logic.
//
// Action payloads are interpreted as tiny scripted opcodes rather than
// arbitrary bytecode:
//   - "fail:soft"  -> returns an error that should soft-fail the transaction
//   - "fail:hard"  -> returns an error that should hard-fail the transaction
//   - "write:<scope>" -> records a write access on (action.Account, scope)
//   - anything else  -> records a read access on (action.Account, action's
//     single declared authorization scope, or "" if none)
type Fake struct {
	// OnApply, if set, is called before the scripted behavior runs, so
	// tests can inject generated/canceled deferred transactions without
	// extending the opcode vocabulary above.
	OnApply func(action *chaintypes.Action, meta *chaintypes.Metadata) (generated []*chaintypes.DeferredTransaction, canceled []CancelKey)
}

// NewFake returns a ready-to-use fake interpreter.
func NewFake() *Fake { return &Fake{} }

// ErrSoftFail and ErrHardFail are the errors Fake returns for the
// "fail:soft" / "fail:hard" scripted actions.
var (
	ErrSoftFail = fmt.Errorf("interp/fake: scripted soft failure")
	ErrHardFail = fmt.Errorf("interp/fake: scripted hard failure")
)

func (f *Fake) ApplyAction(ctx context.Context, session store.Session, action *chaintypes.Action, meta *chaintypes.Metadata) (Result, error) {
	if err := CheckDeadline(ctx); err != nil {
		return Result{}, err
	}

	payload := string(action.Payload)
	switch payload {
	case "fail:soft":
		return Result{}, ErrSoftFail
	case "fail:hard":
		return Result{}, ErrHardFail
	}

	var accesses []chaintypes.DataAccess
	if len(payload) >= 6 && payload[:6] == "write:" {
		accesses = append(accesses, chaintypes.DataAccess{Kind: chaintypes.AccessWrite, Code: action.Account, Scope: payload[6:]})
		idx := session.Index(action.Account)
		_ = idx.Put([]byte(payload[6:]), action.Payload)
	} else {
		scope := ""
		if len(action.Authorization) > 0 {
			scope = action.Authorization[0].Permission
		}
		accesses = append(accesses, chaintypes.DataAccess{Kind: chaintypes.AccessRead, Code: action.Account, Scope: scope})
	}

	var generated []*chaintypes.DeferredTransaction
	var canceled []CancelKey
	if f.OnApply != nil {
		generated, canceled = f.OnApply(action, meta)
	}

	return Result{
		Applied: chaintypes.ActionTrace{
			Receiver:   action.Account,
			DataAccess: accesses,
		},
		Generated:        generated,
		CanceledDeferred: canceled,
	}, nil
}
