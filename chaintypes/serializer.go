package chaintypes

import (
	"crypto/sha256"
	"time"

	"github.com/asset-chain/chain-controller/utils/cser"
)

// Pack/Unpack give Transaction and SignedBlock a canonical CSER encoding
// built on utils/cser. It backs: transaction ids (hashes of the canonical bytes), the
// generated-transaction record's packed_trx, and the block log's on-disk
// frame.

func hashBytes(b []byte) [32]byte {
	return sha256.Sum256(b)
}

func marshalAction(w *cser.Writer, a *Action) {
	w.SliceBytes([]byte(a.Account))
	w.SliceBytes([]byte(a.Name))
	w.VarUint(uint64(len(a.Authorization)))
	for _, auth := range a.Authorization {
		w.SliceBytes([]byte(auth.Actor))
		w.SliceBytes([]byte(auth.Permission))
	}
	w.SliceBytes(a.Payload)
}

func unmarshalAction(r *cser.Reader, maxAlloc int) Action {
	var a Action
	a.Account = string(r.SliceBytes(maxAlloc))
	a.Name = string(r.SliceBytes(maxAlloc))
	n := r.VarUint()
	a.Authorization = make([]Authorization, 0, n)
	for i := uint64(0); i < n; i++ {
		actor := string(r.SliceBytes(maxAlloc))
		perm := string(r.SliceBytes(maxAlloc))
		a.Authorization = append(a.Authorization, Authorization{Actor: actor, Permission: perm})
	}
	a.Payload = r.SliceBytes(maxAlloc)
	return a
}

func marshalTransaction(w *cser.Writer, t *Transaction) {
	w.U64(uint64(t.Expiration.Unix()))
	w.U16(t.RefBlockNum)
	w.U32(t.RefBlockPrefix)
	w.VarUint(uint64(len(t.Actions)))
	for i := range t.Actions {
		marshalAction(w, &t.Actions[i])
	}
	w.VarUint(uint64(len(t.Signatures)))
	for _, sig := range t.Signatures {
		w.SliceBytes(sig)
	}
}

func unmarshalTransaction(r *cser.Reader) Transaction {
	var t Transaction
	t.Expiration = time.Unix(int64(r.U64()), 0).UTC()
	t.RefBlockNum = r.U16()
	t.RefBlockPrefix = r.U32()
	n := r.VarUint()
	t.Actions = make([]Action, 0, n)
	for i := uint64(0); i < n; i++ {
		t.Actions = append(t.Actions, unmarshalAction(r, cser.MaxAlloc))
	}
	n = r.VarUint()
	t.Signatures = make([][]byte, 0, n)
	for i := uint64(0); i < n; i++ {
		t.Signatures = append(t.Signatures, r.SliceBytes(cser.MaxAlloc))
	}
	return t
}

// Pack returns the canonical encoding of a Transaction.
func Pack(t *Transaction) []byte {
	raw, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		marshalTransaction(w, t)
		return nil
	})
	if err != nil {
		// marshalTransaction never returns an error; a non-nil err here
		// would mean the writer itself is broken.
		panic(err)
	}
	return raw
}

// PackTransactionContent returns the canonical encoding of a transaction's
// signable content: everything Pack encodes except the signatures
// themselves, since a signature cannot cover its own bytes. This is the
// pre-image SigningDigest hashes and RecoverSignerKeys checks recovered
// keys against, the same exclusion PackBlockContent makes for a block's
// Signature.
func PackTransactionContent(t *Transaction) []byte {
	raw, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.U64(uint64(t.Expiration.Unix()))
		w.U16(t.RefBlockNum)
		w.U32(t.RefBlockPrefix)
		w.VarUint(uint64(len(t.Actions)))
		for i := range t.Actions {
			marshalAction(w, &t.Actions[i])
		}
		return nil
	})
	if err != nil {
		panic(err)
	}
	return raw
}

// Unpack decodes bytes produced by Pack.
func Unpack(raw []byte) (*Transaction, error) {
	var t Transaction
	err := cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		t = unmarshalTransaction(r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// PackDeferred/UnpackDeferred extend Pack/Unpack with the sender
// bookkeeping, used for the generated_transaction record's packed bytes.
func PackDeferred(d *DeferredTransaction) []byte {
	raw, err := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		marshalTransaction(w, &d.Transaction)
		w.SliceBytes([]byte(d.Sender))
		w.U64(d.SenderID)
		w.U64(uint64(d.ExecuteAfter.Unix()))
		return nil
	})
	if err != nil {
		panic(err)
	}
	return raw
}

func UnpackDeferred(raw []byte) (*DeferredTransaction, error) {
	var d DeferredTransaction
	err := cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		d.Transaction = unmarshalTransaction(r)
		d.Sender = string(r.SliceBytes(cser.MaxAlloc))
		d.SenderID = r.U64()
		d.ExecuteAfter = time.Unix(int64(r.U64()), 0).UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// PackBlockContent returns the canonical encoding of a block's header plus
// region/cycle/shard hierarchy, used as the pre-image for the block id and
// for the block log's on-disk frame. The producer signature is excluded:
// the signature is over this content, not the other way around.
func PackBlockContent(b *SignedBlock) []byte {
	raw, _ := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.U64(uint64(b.Timestamp.Unix()))
		w.SliceBytes([]byte(b.Producer))
		w.FixedBytes(b.Previous[:])
		w.FixedBytes(b.TransactionMerkleRoot[:])
		w.FixedBytes(b.ActionMerkleRoot[:])
		w.FixedBytes(b.BlockMerkleRoot[:])
		w.Bool(b.NewProducerSchedule != nil)
		if b.NewProducerSchedule != nil {
			w.U32(b.NewProducerSchedule.Version)
			w.VarUint(uint64(len(b.NewProducerSchedule.Producers)))
			for _, p := range b.NewProducerSchedule.Producers {
				w.SliceBytes([]byte(p.ProducerName))
				w.SliceBytes(p.SigningKey)
			}
		}
		w.VarUint(uint64(len(b.Regions)))
		for _, region := range b.Regions {
			w.U16(region.RegionID)
			w.VarUint(uint64(len(region.Cycles)))
			for _, cycle := range region.Cycles {
				w.VarUint(uint64(len(cycle.Shards)))
				for _, shard := range cycle.Shards {
					marshalLocks(w, shard.ReadLocks)
					marshalLocks(w, shard.WriteLocks)
					w.VarUint(uint64(len(shard.Transactions)))
					for _, rcpt := range shard.Transactions {
						w.FixedBytes(rcpt.ID[:])
						w.U8(uint8(rcpt.Status))
					}
				}
			}
		}
		return nil
	})
	return raw
}

func marshalLocks(w *cser.Writer, locks []ShardLock) {
	w.VarUint(uint64(len(locks)))
	for _, l := range locks {
		w.SliceBytes([]byte(l.Account))
		w.SliceBytes([]byte(l.Scope))
	}
}

// PackBlock serializes the full wire block, content plus signature and
// input transactions, for the block log.
func PackBlock(b *SignedBlock) []byte {
	content := PackBlockContent(b)
	raw, _ := cser.MarshalBinaryAdapter(func(w *cser.Writer) error {
		w.SliceBytes(content)
		w.SliceBytes(b.Signature)
		w.VarUint(uint64(len(b.InputTransactions)))
		for _, trx := range b.InputTransactions {
			w.SliceBytes(Pack(trx))
		}
		return nil
	})
	return raw
}

func UnpackBlockContent(raw []byte, b *SignedBlock) error {
	return cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		b.Timestamp = time.Unix(int64(r.U64()), 0).UTC()
		b.Producer = string(r.SliceBytes(cser.MaxAlloc))
		var prev [32]byte
		r.FixedBytes(prev[:])
		b.Previous = BlockID(prev)
		r.FixedBytes(b.TransactionMerkleRoot[:])
		r.FixedBytes(b.ActionMerkleRoot[:])
		r.FixedBytes(b.BlockMerkleRoot[:])
		if r.Bool() {
			var sched ProducerSchedule
			sched.Version = r.U32()
			n := r.VarUint()
			sched.Producers = make([]ProducerKey, 0, n)
			for i := uint64(0); i < n; i++ {
				name := string(r.SliceBytes(cser.MaxAlloc))
				key := r.SliceBytes(cser.MaxAlloc)
				sched.Producers = append(sched.Producers, ProducerKey{ProducerName: name, SigningKey: key})
			}
			b.NewProducerSchedule = &sched
		}
		nr := r.VarUint()
		b.Regions = make([]Region, 0, nr)
		for i := uint64(0); i < nr; i++ {
			var region Region
			region.RegionID = r.U16()
			nc := r.VarUint()
			region.Cycles = make([]Cycle, 0, nc)
			for j := uint64(0); j < nc; j++ {
				var cycle Cycle
				ns := r.VarUint()
				cycle.Shards = make([]Shard, 0, ns)
				for k := uint64(0); k < ns; k++ {
					var shard Shard
					shard.ReadLocks = unmarshalLocks(r)
					shard.WriteLocks = unmarshalLocks(r)
					nt := r.VarUint()
					shard.Transactions = make([]TransactionReceipt, 0, nt)
					for m := uint64(0); m < nt; m++ {
						var rcpt TransactionReceipt
						r.FixedBytes(rcpt.ID[:])
						rcpt.Status = TransactionStatus(r.U8())
						shard.Transactions = append(shard.Transactions, rcpt)
					}
					cycle.Shards = append(cycle.Shards, shard)
				}
				region.Cycles = append(region.Cycles, cycle)
			}
			b.Regions = append(b.Regions, region)
		}
		return nil
	})
}

func unmarshalLocks(r *cser.Reader) []ShardLock {
	n := r.VarUint()
	locks := make([]ShardLock, 0, n)
	for i := uint64(0); i < n; i++ {
		account := string(r.SliceBytes(cser.MaxAlloc))
		scope := string(r.SliceBytes(cser.MaxAlloc))
		locks = append(locks, ShardLock{Account: account, Scope: scope})
	}
	return locks
}

// UnpackBlock decodes bytes produced by PackBlock. The returned block's
// height hint is left unset; the caller (block log / fork database) knows
// the height from its own index and must call SetHeightHint.
func UnpackBlock(raw []byte) (*SignedBlock, error) {
	var b SignedBlock
	err := cser.UnmarshalBinaryAdapter(raw, func(r *cser.Reader) error {
		content := r.SliceBytes(cser.MaxAlloc)
		if err := UnpackBlockContent(content, &b); err != nil {
			return err
		}
		b.Signature = r.SliceBytes(cser.MaxAlloc)
		n := r.VarUint()
		b.InputTransactions = make([]*Transaction, 0, n)
		for i := uint64(0); i < n; i++ {
			trxRaw := r.SliceBytes(cser.MaxAlloc)
			trx, err := Unpack(trxRaw)
			if err != nil {
				return err
			}
			b.InputTransactions = append(b.InputTransactions, trx)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}
