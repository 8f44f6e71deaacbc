package controller

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/asset-chain/chain-controller/authority"
	"github.com/asset-chain/chain-controller/blocklog"
	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/forkdb"
	"github.com/asset-chain/chain-controller/internal/xlog"
	"github.com/asset-chain/chain-controller/merkle"
	"github.com/asset-chain/chain-controller/pending"
	"github.com/asset-chain/chain-controller/producer"
	"github.com/asset-chain/chain-controller/rules"
	"github.com/asset-chain/chain-controller/store"
	"github.com/asset-chain/chain-controller/txapply"
	"github.com/ethereum/go-ethereum/crypto"
)

var log = xlog.New("controller")

// blockState is what PopBlock needs to undo a single applied block: its
// session (undone to roll back storage) and the global-properties values
// that were in effect just before it was applied (restored verbatim, since
// those live as plain Controller fields rather than in the State Store).
type blockState struct {
	ID       chaintypes.BlockID
	Previous chaintypes.BlockID
	Block    *chaintypes.SignedBlock
	Session  store.Session
	PrevDGP  rules.DynamicGlobalProperties
	PrevGP   rules.GlobalProperties
}

// Controller is the Block Processor: it owns the fork database, the State
// Store's root session, the block log, the pending-block builder, and the
// transaction applicator, and exposes the four entry points a node driver
// calls (PushBlock, PushTransaction, GenerateBlock, PopBlock).
//
// A single mutex serializes every entry point, mirroring the single
// controller write lock: nothing here is safe to call concurrently from
// two goroutines, by design.
type Controller struct {
	mu sync.Mutex

	cfg         rules.Config
	genesisTime time.Time

	st       store.Store
	root     store.Session // long-lived frame under everything; never squashed or undone
	frontier store.Session // the session representing the current head's state
	sessions map[chaintypes.BlockID]store.Session
	history  []blockState // reversible chain, oldest first, parallel to forkDB's suffix

	forkDB  *forkdb.Database
	blog    *blocklog.Log
	builder *pending.Builder
	applier *txapply.Applicator
	keys    authority.KeyResolver

	gprops rules.GlobalProperties
	dgp    *rules.DynamicGlobalProperties

	checkpoints map[uint32]chaintypes.BlockID

	replaying bool
	signals   Signals
}

// New constructs a Controller over a fresh or restored Store/ForkDB/Log
// triple. Callers that are restoring from disk should Replay after
// construction; callers starting a brand-new chain pass a Genesis and an
// empty store/log/forkdb.
func New(genesis rules.Genesis, st store.Store, fdb *forkdb.Database, blog *blocklog.Log, applier *txapply.Applicator, keys authority.KeyResolver) *Controller {
	c := &Controller{
		cfg:         genesis.Config,
		genesisTime: genesis.Timestamp,
		st:          st,
		forkDB:      fdb,
		blog:        blog,
		builder:     pending.New(),
		applier:     applier,
		keys:        keys,
		gprops:      rules.InitialGlobalProperties(genesis),
		dgp:         rules.NewDynamicGlobalProperties(),
		sessions:    make(map[chaintypes.BlockID]store.Session),
		checkpoints: make(map[uint32]chaintypes.BlockID),
	}
	c.root = st.StartUndoSession()
	c.frontier = c.root
	return c
}

// GlobalProperties returns a copy of the current consensus configuration
// and active/pending producer schedule.
func (c *Controller) GlobalProperties() rules.GlobalProperties {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gprops
}

// DynamicGlobalProperties returns a copy of the current chain-head summary.
func (c *Controller) DynamicGlobalProperties() rules.DynamicGlobalProperties {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.dgp
}

// Signals exposes the registration methods for applied-block,
// applied-irreversible-block, and pending-transaction callbacks.
func (c *Controller) Signals() *Signals { return &c.signals }

func (c *Controller) scheduler() *producer.Scheduler {
	return producer.New(c.gprops.ActiveProducers, c.cfg, c.genesisTime)
}

// AddCheckpoints pins known-good block ids at the given heights. A block
// applied at or below the highest pinned height is accepted with every
// check skipped (it is already socially finalized); a block applied at an
// exact pinned height must match the pinned id or is rejected.
func (c *Controller) AddCheckpoints(cps map[uint32]chaintypes.BlockID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for h, id := range cps {
		c.checkpoints[h] = id
	}
}

func (c *Controller) lastCheckpointHeight() uint32 {
	var max uint32
	for h := range c.checkpoints {
		if h > max {
			max = h
		}
	}
	return max
}

func (c *Controller) beforeLastCheckpoint(height uint32) bool {
	return height != 0 && height <= c.lastCheckpointHeight()
}

// ParticipationRate reports the percentage (0-100) of the last 64 slots
// that were filled by their scheduled producer.
func (c *Controller) ParticipationRate() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return producer.ParticipationRate(c.dgp.RecentSlotsFilled)
}

// headHeight/headID/headTime read the controller's notion of "head" from
// the dynamic global properties, which are kept in lockstep with the fork
// database's head by every path that changes either.
func (c *Controller) headHeight() uint32         { return c.dgp.HeadBlockHeight }
func (c *Controller) headID() chaintypes.BlockID { return c.dgp.HeadBlockID }
func (c *Controller) headTime() time.Time        { return c.dgp.HeadBlockTime }

// ClearPending discards any in-progress pending block built by
// StartBlock/PushTransaction without committing it.
func (c *Controller) ClearPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.builder.Clear()
}

// StartBlock opens a new pending block atop the current head, ready to
// receive transactions via PushTransaction. It is idempotent-unsafe by
// design: calling it twice without an intervening GenerateBlock/ClearPending
// returns pending.ErrAlreadyPending.
func (c *Controller) StartBlock(when time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.builder.Start(c.frontier, when)
	return err
}

// PushTransaction validates and applies trx against the current pending
// block, returning its trace. Grounded on
// chain_controller::push_transaction/_push_transaction.
func (c *Controller) PushTransaction(ctx context.Context, trx *chaintypes.Transaction, skip SkipFlags) (chaintypes.TransactionTrace, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	log.WithField("correlation_id", correlationID(ctx).String()).Debug("push transaction")

	blk, err := c.builder.Require()
	if err != nil {
		return chaintypes.TransactionTrace{}, err
	}

	meta := chaintypes.NewMetadata(trx)

	if !skip.has(SkipTransactionDupeCheck) && txapply.IsDuplicate(blk.Session, meta.ID) {
		return chaintypes.TransactionTrace{}, ErrTxDuplicate
	}

	now := blk.Block.Timestamp
	if !trx.Expiration.After(now) {
		return chaintypes.TransactionTrace{}, ErrTxExpired
	}
	if trx.Expiration.After(now.Add(c.cfg.Transactions.MaxLifetime)) {
		return chaintypes.TransactionTrace{}, ErrTxFutureExpiration
	}

	if !skip.has(SkipTaposCheck) {
		if err := checkTapos(blk.Session, trx); err != nil {
			return chaintypes.TransactionTrace{}, err
		}
	}

	if !skip.has(SkipTransactionSignatures) && !skip.has(SkipAuthorityCheck) {
		if err := c.checkAuthorization(trx); err != nil {
			return chaintypes.TransactionTrace{}, err
		}
	}

	region, cycle, shard := c.builder.Location()
	trace, effects, err := c.applier.ApplyTransaction(ctx, blk.Session, meta, region, cycle, shard)
	if err != nil {
		return chaintypes.TransactionTrace{}, err
	}
	if err := txapply.ApplyCycleTrace(blk.Session, now, effects.Generated, effects.Canceled); err != nil {
		return chaintypes.TransactionTrace{}, err
	}

	shardPtr, shardTracePtr := c.builder.CurrentShard()
	shardPtr.ReadLocks = chaintypes.DedupSortLocks(append(shardPtr.ReadLocks, trace.ReadLocks()...))
	shardPtr.WriteLocks = chaintypes.DedupSortLocks(append(shardPtr.WriteLocks, trace.WriteLocks()...))
	shardPtr.Transactions = append(shardPtr.Transactions, chaintypes.TransactionReceipt{ID: trace.ID, Status: trace.Status})
	shardTracePtr.TransactionTraces = append(shardTracePtr.TransactionTraces, trace)

	netUsage := c.cfg.Transactions.FixedBandwidthOverheadPerTransaction + uint64(len(meta.RawData))
	for _, actor := range trx.AuthorizedActors() {
		_ = txapply.UpdateUsage(blk.Session, actor, netUsage, uint64(len(trace.ActionTraces)))
	}

	blk.Block.InputTransactions = append(blk.Block.InputTransactions, trx)
	blk.Metadata = append(blk.Metadata, meta)

	c.signals.fireOnPendingTransaction(meta.RawData)
	return trace, nil
}

func (c *Controller) checkAuthorization(trx *chaintypes.Transaction) error {
	if err := authority.CheckTransactionAuthorization(c.keys, trx, false); err != nil {
		switch err {
		case authority.ErrMissingSigs:
			return ErrTxMissingSigs
		case authority.ErrIrrelevantSig:
			return ErrTxIrrelevantSig
		default:
			return fmt.Errorf("%w: %v", ErrTxMissingSigs, err)
		}
	}
	return nil
}

// checkTapos verifies trx's (ref_block_num, ref_block_prefix) against the
// block summary ring: ref_block_num must name a block within the ring's
// window of head, and ref_block_prefix must match that block's id, the Go
// analogue of transaction_context::check_tapos.
func checkTapos(session store.Session, trx *chaintypes.Transaction) error {
	idx := session.Index(store.TableBlockSummary)
	sid := sidKey(trx.RefBlockNum)
	raw, err := idx.Get(sid)
	if err != nil {
		return fmt.Errorf("%w: unknown ref_block_num %d", ErrTapOsMismatch, trx.RefBlockNum)
	}
	var id chaintypes.BlockID
	copy(id[:], raw)
	if binaryUint32(id[4:8]) != trx.RefBlockPrefix {
		return ErrTapOsMismatch
	}
	return nil
}

func sidKey(refBlockNum uint16) []byte {
	return []byte{byte(refBlockNum >> 8), byte(refBlockNum)}
}

func binaryUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// GenerateBlock closes out the current pending block (or starts and
// immediately closes an empty one), signs it with signer, and makes it the
// new head. Grounded on chain_controller::generate_block/_generate_block.
func (c *Controller) GenerateBlock(ctx context.Context, when time.Time, producerName string, signer *ecdsa.PrivateKey, proposed *chaintypes.ProducerSchedule, skip SkipFlags) (*chaintypes.SignedBlock, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.builder.Pending() == nil {
		if _, err := c.builder.Start(c.frontier, when); err != nil {
			return nil, err
		}
	}
	blk, _ := c.builder.Require()

	if _, err := c.applier.PushDeferredTransactions(ctx, c.builder, when, true); err != nil {
		c.builder.Clear()
		return nil, err
	}
	c.builder.FinalizeCycle()

	blk.Block.Producer = producerName
	blk.Block.Previous = c.headID()
	newHeight := c.headHeight() + 1
	sched := c.scheduler()
	if proposed != nil {
		if !sched.IsStartOfRound(newHeight) {
			c.builder.Clear()
			return nil, fmt.Errorf("%w: producer schedule changes only land on round boundaries", ErrBlockValidate)
		}
		want := producer.CalculateSchedule(c.gprops.ActiveProducers, *proposed)
		blk.Block.NewProducerSchedule = &want
	}

	blk.Block.TransactionMerkleRoot = transactionMerkleRoot(blk.Block)
	blk.Block.ActionMerkleRoot = actionMerkleRoot(blk.Trace)
	blk.Block.BlockMerkleRoot = c.dgp.BlockMerkle.Root()
	blk.Block.SetHeightHint(newHeight)

	if !skip.has(SkipProducerSignature) {
		digest := sha256.Sum256(chaintypes.PackBlockContent(blk.Block))
		sig, err := crypto.Sign(digest[:], signer)
		if err != nil {
			c.builder.Clear()
			return nil, err
		}
		blk.Block.Signature = sig
	}

	taken := c.builder.Take()
	var parent *chaintypes.SignedBlock
	if newHeight == 1 {
		c.forkDB.StartBlock(taken.Block)
	} else {
		parent = c.forkDB.Fetch(taken.Block.Previous)
		if err := c.forkDB.Push(taken.Block); err != nil {
			return nil, err
		}
	}
	c.finalizeApplied(taken, parent, skip)
	return taken.Block, nil
}

func transactionMerkleRoot(b *chaintypes.SignedBlock) [32]byte {
	leaves := make([][32]byte, 0, len(b.InputTransactions))
	for _, t := range b.InputTransactions {
		leaves = append(leaves, t.Id())
	}
	return merkle.Root(leaves)
}

func actionCount(t chaintypes.BlockTrace) int {
	n := 0
	for _, region := range t.RegionTraces {
		for _, cycle := range region.CycleTraces {
			for i := range cycle.ShardTraces {
				for _, tr := range cycle.ShardTraces[i].TransactionTraces {
					n += len(tr.ActionTraces)
				}
			}
		}
	}
	return n
}

// actionMerkleRoot computes the block's action_mroot as the Merkle root
// over every shard's own action Merkle root (§4.5.2.f/§4.5.2.6) — a
// two-level Merkle, not a flat merkle of every action digest in the block,
// so two blocks with the same actions but a different shard partitioning
// bind to different roots.
func actionMerkleRoot(t chaintypes.BlockTrace) [32]byte {
	var shardRoots [][32]byte
	for _, region := range t.RegionTraces {
		for _, cycle := range region.CycleTraces {
			for i := range cycle.ShardTraces {
				shardRoots = append(shardRoots, cycle.ShardTraces[i].ActionMerkleRoot)
			}
		}
	}
	return merkle.Root(shardRoots)
}

// finalizeApplied registers a just-applied block's session, advances dgp
// and gprops for it, pushes a blockState for PopBlock, advances the last
// irreversible block, and fires the applied-block signal. parent is nil for
// genesis.
func (c *Controller) finalizeApplied(blk *pending.Block, parent *chaintypes.SignedBlock, skip SkipFlags) {
	b := blk.Block
	id := b.ID()

	dgpBefore := *c.dgp
	dgpBefore.BlockMerkle = c.dgp.BlockMerkle.Clone()
	gpBefore := c.gprops

	sched := c.scheduler()
	newAbsSlot := c.dgp.CurrentAbsoluteSlot
	if parent != nil {
		offset := sched.GetSlotAtTime(parent.Height(), parent.Timestamp, b.Timestamp)
		missed := uint64(0)
		if offset > 1 {
			missed = uint64(offset) - 1
		}
		if missed > 0 && !skip.has(SkipMissedBlockPenalty) {
			for i := uint64(1); i < uint64(offset); i++ {
				missedBy, err := sched.GetScheduledProducer(c.dgp.CurrentAbsoluteSlot, uint32(i))
				if err == nil && missedBy.ProducerName != b.Producer {
					c.gprops = c.gprops.IncrementMissed(missedBy.ProducerName)
				}
			}
		}
		newAbsSlot += uint64(offset)
		c.dgp.RecordSlot(missed)
	} else {
		newAbsSlot = 1
		c.dgp.RecordSlot(0)
	}

	c.dgp.HeadBlockHeight = b.Height()
	c.dgp.HeadBlockID = id
	c.dgp.HeadBlockTime = b.Timestamp
	c.dgp.CurrentProducer = b.Producer
	c.dgp.CurrentAbsoluteSlot = newAbsSlot
	c.dgp.BlockMerkle.Append(id.Hash())
	alpha := uint64(len(chaintypes.PackBlock(b)))
	c.dgp.AverageBlockSize = (c.dgp.AverageBlockSize*7 + alpha) / 8
	c.dgp.UpdateVirtualBandwidth(alpha, uint64(actionCount(blk.Trace)))

	idx := c.frontier.Index(store.TableBlockSummary)
	_ = idx.Put(sidKey(uint16(b.Height()&0xFFFF)), id[:])

	if b.NewProducerSchedule != nil {
		c.gprops = c.gprops.EnqueuePendingSchedule(b.Height(), *b.NewProducerSchedule)
	}

	c.sessions[id] = blk.Session
	c.frontier = blk.Session
	c.forkDB.SetHead(id)
	c.history = append(c.history, blockState{
		ID: id, Previous: b.Previous, Block: b, Session: blk.Session,
		PrevDGP: dgpBefore, PrevGP: gpBefore,
	})

	c.advanceLastIrreversible()
	c.signals.fireAppliedBlock(&blk.Trace, b)
}
