// Package txapply executes one transaction's actions via the external
// interpreter, records data accesses into a transaction trace, and
// implements the deferred-generation and onerror-fallback bookkeeping
//
package txapply

import (
	"context"
	"encoding/binary"
	"sort"
	"time"

	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/interp"
	"github.com/asset-chain/chain-controller/internal/xlog"
	"github.com/asset-chain/chain-controller/store"
)

var log = xlog.New("txapply")

// OnErrorAccount/OnErrorAction name the synthetic action the applicator
// builds to give sender contracts a chance to handle a deferred
// transaction's failure
const (
	OnErrorAccount = "eosio"
	OnErrorAction  = "onerror"
	ActivePermission = "active"
)

// Applicator is the Transaction Applicator: stateless beyond its
// interpreter reference, since all mutable state lives in the sessions
// passed to it.
type Applicator struct {
	Interp interp.Interpreter
}

// New returns an Applicator backed by the given interpreter.
func New(i interp.Interpreter) *Applicator {
	return &Applicator{Interp: i}
}

// Effects is what ApplyTransaction reports back to the caller beyond the
// trace itself: deferred transactions generated and cancellations
// requested across the transaction's actions, which the caller persists
// once per cycle
type Effects struct {
	Generated []*chaintypes.DeferredTransaction
	Canceled  []interp.CancelKey
}

// ApplyTransaction runs meta's actions against a temporary session pushed
// from parent, and returns the resulting trace plus any deferred-
// transaction effects. Grounded on apply_transaction / _apply_transaction /
// _apply_error in the original source.
func (a *Applicator) ApplyTransaction(ctx context.Context, parent store.Session, meta *chaintypes.Metadata, region, cycle, shard uint32) (chaintypes.TransactionTrace, Effects, error) {
	trace, effects, err := a.tryApply(ctx, parent, meta.Trx.Actions, meta, region, cycle, shard)
	if err == nil {
		trace.Status = chaintypes.StatusExecuted
		return trace, effects, nil
	}

	if meta.Sender == "" {
		// No sender to fall back to: the error propagates, and the caller
		// drops the enclosing undo session.
		return chaintypes.TransactionTrace{}, Effects{}, err
	}

	onErrorActions := []chaintypes.Action{{
		Account: OnErrorAccount,
		Name:    OnErrorAction,
		Authorization: []chaintypes.Authorization{
			{Actor: meta.Sender, Permission: ActivePermission},
		},
		Payload: meta.RawData,
	}}
	trace, effects, err2 := a.tryApply(ctx, parent, onErrorActions, meta, region, cycle, shard)
	if err2 != nil {
		log.WithField("trx_id", meta.ID.String()).WithField("error", err).Debug("onerror fallback also failed, hard fail")
		trace.Status = chaintypes.StatusHardFail
		trace.ID = meta.ID
		trace.RegionID, trace.CycleIndex, trace.ShardIndex = region, cycle, shard
		return trace, Effects{}, nil
	}
	log.WithField("trx_id", meta.ID.String()).WithField("error", err).Debug("transaction soft failed, onerror applied")
	trace.Status = chaintypes.StatusSoftFail
	return trace, effects, nil
}

// tryApply runs actions against one temporary session: on success it
// inserts the dedup record and squashes into parent; on failure it undoes
// and returns the error untouched.
func (a *Applicator) tryApply(ctx context.Context, parent store.Session, actions []chaintypes.Action, meta *chaintypes.Metadata, region, cycle, shard uint32) (chaintypes.TransactionTrace, Effects, error) {
	session := parent.Push()

	trace := chaintypes.TransactionTrace{
		ID:         meta.ID,
		RegionID:   region,
		CycleIndex: cycle,
		ShardIndex: shard,
	}
	var effects Effects

	deadlineCtx, cancel := interp.DeadlineContext(ctx, meta)
	defer cancel()

	for i := range actions {
		if err := interp.CheckDeadline(deadlineCtx); err != nil {
			session.Undo()
			return chaintypes.TransactionTrace{}, Effects{}, err
		}
		result, err := a.Interp.ApplyAction(deadlineCtx, session, &actions[i], meta)
		if err != nil {
			session.Undo()
			return chaintypes.TransactionTrace{}, Effects{}, err
		}
		trace.ActionTraces = append(trace.ActionTraces, result.Applied)
		effects.Generated = append(effects.Generated, result.Generated...)
		effects.Canceled = append(effects.Canceled, result.CanceledDeferred...)
	}

	insertDedup(session, meta.ID, meta.Trx.Expiration)
	session.Squash()
	return trace, effects, nil
}

func insertDedup(session store.Session, id [32]byte, expiration time.Time) {
	idx := session.Index(store.TableTransactionDedup)
	var buf [8]byte
	t := uint64(expiration.Unix())
	for i := 0; i < 8; i++ {
		buf[i] = byte(t >> (56 - 8*i))
	}
	_ = idx.Put(id[:], buf[:])
}

// IsDuplicate reports whether id is already present in the dedup index.
func IsDuplicate(session store.Session, id [32]byte) bool {
	idx := session.Index(store.TableTransactionDedup)
	_, err := idx.Get(id[:])
	return err == nil
}

// UpdateUsage folds one transaction's observed net/cpu cost into account's
// windowed usage accumulator, the per-account half of the bandwidth
// accounting skeleton (enforcement stays out of scope; only the running
// total is real).
func UpdateUsage(session store.Session, account string, netUsage, cpuUsage uint64) error {
	idx := session.Index(store.TableAccountUsage)
	key := []byte(account)
	var prevNet, prevCPU uint64
	if raw, err := idx.Get(key); err == nil && len(raw) == 16 {
		prevNet = binary.BigEndian.Uint64(raw[:8])
		prevCPU = binary.BigEndian.Uint64(raw[8:])
	}
	nextNet := (prevNet*7 + netUsage) / 8
	nextCPU := (prevCPU*7 + cpuUsage) / 8
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], nextNet)
	binary.BigEndian.PutUint64(buf[8:], nextCPU)
	return idx.Put(key, buf)
}

// AccountUsage returns account's current windowed (net, cpu) usage, or
// (0, 0) if it has never transacted.
func AccountUsage(session store.Session, account string) (net, cpu uint64, err error) {
	idx := session.Index(store.TableAccountUsage)
	raw, err := idx.Get([]byte(account))
	if err != nil {
		if err == store.ErrNotFound {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	if len(raw) != 16 {
		return 0, 0, nil
	}
	return binary.BigEndian.Uint64(raw[:8]), binary.BigEndian.Uint64(raw[8:]), nil
}

// ApplyCycleTrace persists a cycle's deferred-transaction side effects:
// every generated transaction becomes a GeneratedRecord, and every
// cancellation removes matching records by (sender, sender_id).
func ApplyCycleTrace(session store.Session, publishedTime time.Time, generated []*chaintypes.DeferredTransaction, canceled []interp.CancelKey) error {
	idx := session.Index(store.TableGeneratedTrx)
	for _, d := range generated {
		rec := chaintypes.NewGeneratedRecord(d, publishedTime)
		key := chaintypes.GeneratedKey(rec.Sender, rec.SenderID)
		if err := idx.Put(key, chaintypes.PackGeneratedRecord(&rec)); err != nil {
			return err
		}
	}
	for _, c := range canceled {
		key := chaintypes.GeneratedKey(c.Sender, c.SenderID)
		if err := idx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// MatureGeneratedRecords returns every generated record whose DelayUntil
// has passed headTime, sorted newest-delay-first.
func MatureGeneratedRecords(session store.Session, headTime time.Time) ([]*chaintypes.GeneratedRecord, error) {
	idx := session.Index(store.TableGeneratedTrx)
	var mature []*chaintypes.GeneratedRecord
	err := idx.Scan(nil, nil, func(key, value []byte) bool {
		rec, decodeErr := chaintypes.UnpackGeneratedRecord(value)
		if decodeErr == nil && !rec.DelayUntil.After(headTime) {
			mature = append(mature, rec)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(mature, func(i, j int) bool {
		return mature[i].DelayUntil.After(mature[j].DelayUntil)
	})
	return mature, nil
}

// RemoveGeneratedRecord deletes the record keyed by (sender, sender_id).
func RemoveGeneratedRecord(session store.Session, sender string, senderID uint64) error {
	idx := session.Index(store.TableGeneratedTrx)
	return idx.Delete(chaintypes.GeneratedKey(sender, senderID))
}

// FindGeneratedByID scans the generated-transaction table for the record
// whose id matches. Used by block validation to resolve a shard's
// transaction receipts that don't appear among the block's input
// transactions: they must be deferred work the producer pulled in instead.
func FindGeneratedByID(session store.Session, id [32]byte) (*chaintypes.GeneratedRecord, error) {
	idx := session.Index(store.TableGeneratedTrx)
	var found *chaintypes.GeneratedRecord
	err := idx.Scan(nil, nil, func(key, value []byte) bool {
		rec, decodeErr := chaintypes.UnpackGeneratedRecord(value)
		if decodeErr == nil && rec.ID == id {
			found = rec
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}
