// Package interp defines the external interpreter contract: the sandboxed
// executor of contract actions, out of scope for this module but needed as
// an interface so the transaction applicator can be written and tested
// against a deterministic fake.
package interp

import (
	"context"
	"errors"

	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/store"
)

// ErrDeadlineExceeded is returned when an action's processing deadline
// elapses mid-execution.
var ErrDeadlineExceeded = errors.New("interp: processing deadline exceeded")

// Result is what the interpreter returns for one action dispatch: the
// applied action record, any transactions it scheduled for deferred
// execution, and any deferred transactions (by sender_id) it canceled.
type Result struct {
	Applied          chaintypes.ActionTrace
	Generated        []*chaintypes.DeferredTransaction
	CanceledDeferred []CancelKey
}

// CancelKey identifies a deferred transaction by its (sender, sender_id)
// pair, the same addressing scheme deferred transactions are created and
// canceled under
type CancelKey struct {
	Sender   string
	SenderID uint64
}

// Interpreter executes one action deterministically against the given
// undo session, honoring ctx cancellation as the processing deadline.
type Interpreter interface {
	ApplyAction(ctx context.Context, session store.Session, action *chaintypes.Action, meta *chaintypes.Metadata) (Result, error)
}

// DeadlineContext derives a context that is canceled at meta's
// ProcessingDeadline, or returns ctx unchanged (with a no-op cancel) if no
// deadline is set.
func DeadlineContext(ctx context.Context, meta *chaintypes.Metadata) (context.Context, context.CancelFunc) {
	if meta.ProcessingDeadline.IsZero() {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, meta.ProcessingDeadline)
}

// CheckDeadline converts a context.DeadlineExceeded into ErrDeadlineExceeded,
// the typed error the applicator surfaces as CheckTimeExceeded.
func CheckDeadline(ctx context.Context) error {
	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return ErrDeadlineExceeded
		}
		return ctx.Err()
	default:
		return nil
	}
}
