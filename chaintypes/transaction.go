package chaintypes

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Authorization is a (actor, permission) pair an action declares it runs
// under, e.g. {alice, active}.
type Authorization struct {
	Actor      string
	Permission string
}

// Action is one unit of work dispatched to the external interpreter:
// {account, name, authorization[], payload}.
type Action struct {
	Account       string
	Name          string
	Authorization []Authorization
	Payload       []byte
}

// Transaction is the wire transaction: {expiration, ref_block_num,
// ref_block_prefix, actions[], signatures[]}.
type Transaction struct {
	Expiration     time.Time
	RefBlockNum    uint16
	RefBlockPrefix uint32
	Actions        []Action
	Signatures     [][]byte
}

// Id is the transaction's content hash, computed over its canonical
// encoding (see Pack in serializer.go).
func (t *Transaction) Id() common.Hash {
	return common.Hash(hashBytes(Pack(t)))
}

// SigningDigest is the hash a signer signs and RecoverSignerKeys recovers
// against: the transaction's content with its own Signatures excluded, so
// the signature never needs to cover itself (see PackTransactionContent).
func (t *Transaction) SigningDigest() common.Hash {
	return common.Hash(hashBytes(PackTransactionContent(t)))
}

// AuthorizedActors returns the deduplicated set of actor names named across
// every action's authorization list, in first-seen order.
func (t *Transaction) AuthorizedActors() []string {
	var actors []string
	seen := make(map[string]bool)
	for _, a := range t.Actions {
		for _, auth := range a.Authorization {
			if !seen[auth.Actor] {
				seen[auth.Actor] = true
				actors = append(actors, auth.Actor)
			}
		}
	}
	return actors
}

// DeferredTransaction is a transaction produced by contract code during
// action execution: an ordinary Transaction plus sender bookkeeping.
type DeferredTransaction struct {
	Transaction
	Sender      string
	SenderID    uint64
	ExecuteAfter time.Time
}

func (d *DeferredTransaction) Id() common.Hash {
	return d.Transaction.Id()
}

// Metadata is the per-transaction bookkeeping the applicator and block
// processor thread through apply: region/cycle/shard placement, the
// sender (for deferred transactions), the processing deadline, and the
// shard's allowed lock lists (used to bound what the interpreter may
// touch, conceptually — enforcement is still the interpreter's job).
type Metadata struct {
	Trx              *Transaction
	ID               common.Hash
	Sender           string // empty for transactions with no sender
	SenderID         uint64
	RawData          []byte // raw packed bytes, needed for the onerror fallback
	RegionID         uint32
	CycleIndex       uint32
	ShardIndex       uint32
	AllowedReadLocks  []ShardLock
	AllowedWriteLocks []ShardLock
	ProcessingDeadline time.Time // zero means "no deadline"
}

// NewMetadata builds transaction metadata the way transaction_metadata's
// constructor does: compute the id once and retain the raw bytes for the
// error-fallback path.
func NewMetadata(trx *Transaction) *Metadata {
	raw := Pack(trx)
	return &Metadata{
		Trx:     trx,
		ID:      common.Hash(hashBytes(raw)),
		RawData: raw,
	}
}

// NewDeferredMetadata builds metadata for a transaction dispatched from a
// generated-transaction record, carrying the sender so the applicator knows
// to attempt the onerror fallback on failure.
func NewDeferredMetadata(trx *Transaction, sender string, senderID uint64) *Metadata {
	m := NewMetadata(trx)
	m.Sender = sender
	m.SenderID = senderID
	return m
}
