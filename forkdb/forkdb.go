// Package forkdb holds the reversible suffix of the chain: every block
// that has been accepted but not yet proven irreversible, linked parent to
// child so a switch to a higher-weight branch can find the common ancestor
// and the two diverging branches in one pass.
//
// The node-by-id map plus parent pointers mirrors the arena-indexed DAG the
// beacon-chain fork choice store keeps (nodeByRoot + Node.parent in
// doublylinkedtree.Store), adapted from a vote-weighted fork choice to the
// chain controller's simpler "longest/highest chain wins, equal height
// never displaces the existing head" rule
package forkdb

import (
	"errors"
	"sync"

	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/internal/xlog"
)

// ErrUnlinkable is returned by Push when a block's Previous id is not known
// to the database
var ErrUnlinkable = errors.New("forkdb: unlinkable block")

var log = xlog.New("forkdb")

// node is one entry of the reversible suffix: the block itself, plus a
// pointer to its parent node for O(depth) ancestry walks.
type node struct {
	block  *chaintypes.SignedBlock
	parent *node
}

// Database is the in-memory reversible block index. It is not
// concurrency-safe against the controller's own write lock (the controller
// applies one block at a time) but guards itself with an RWMutex anyway so
// read-only accessors (Fetch, Head) can be called from status/RPC code
// without taking the controller's lock.
type Database struct {
	mu      sync.RWMutex
	byID    map[chaintypes.BlockID]*node
	head    *node
	maxSize int // 0 means unbounded
}

// New returns an empty fork database.
func New() *Database {
	return &Database{byID: make(map[chaintypes.BlockID]*node)}
}

// StartBlock seeds the database with a block that needs no parent lookup —
// the head block at startup or the genesis block.
func (d *Database) StartBlock(b *chaintypes.SignedBlock) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := &node{block: b}
	d.byID[b.ID()] = n
	d.head = n
}

// Push links a new block onto its parent, returning ErrUnlinkable if the
// parent is unknown; pushing an already-known block is a no-op. It does not
// change the head or decide whether to switch the head to b; that is the block processor's
// call once it has validated and applied the full branch
func (d *Database) Push(b *chaintypes.SignedBlock) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, known := d.byID[b.ID()]; known {
		return nil
	}
	parent, ok := d.byID[b.Previous]
	if !ok {
		return ErrUnlinkable
	}
	d.byID[b.ID()] = &node{block: b, parent: parent}
	return nil
}

// Fetch returns the block stored under id, or nil if unknown.
func (d *Database) Fetch(id chaintypes.BlockID) *chaintypes.SignedBlock {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n, ok := d.byID[id]
	if !ok {
		return nil
	}
	return n.block
}

// IsKnown reports whether id is present in the database.
func (d *Database) IsKnown(id chaintypes.BlockID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.byID[id]
	return ok
}

// Head returns the current best block, or nil if the database is empty.
func (d *Database) Head() *chaintypes.SignedBlock {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.head == nil {
		return nil
	}
	return d.head.block
}

// SetHead updates the current best block. The caller is responsible for
// having already validated and applied the branch leading to id.
func (d *Database) SetHead(id chaintypes.BlockID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.byID[id]; ok {
		d.head = n
	}
}

// FetchBranch walks both ids back toward genesis in lockstep until it finds
// their common ancestor, returning the two branches from each tip back to
// (but excluding) that ancestor, newest-first. This is the basis of the
// fork-switch logic in §4.5.1: fromBranch is the path to roll back,
// toBranch is the path to roll forward.
func (d *Database) FetchBranch(from, to chaintypes.BlockID) (fromBranch, toBranch []*chaintypes.SignedBlock, err error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	fromNode, ok := d.byID[from]
	if !ok {
		return nil, nil, ErrUnlinkable
	}
	toNode, ok := d.byID[to]
	if !ok {
		return nil, nil, ErrUnlinkable
	}

	for fromNode != toNode {
		fh, th := fromNode.block.Height(), toNode.block.Height()
		switch {
		case fh > th:
			fromBranch = append(fromBranch, fromNode.block)
			fromNode = fromNode.parent
		case th > fh:
			toBranch = append(toBranch, toNode.block)
			toNode = toNode.parent
		default:
			fromBranch = append(fromBranch, fromNode.block)
			toBranch = append(toBranch, toNode.block)
			fromNode = fromNode.parent
			toNode = toNode.parent
		}
		if fromNode == nil || toNode == nil {
			return nil, nil, errors.New("forkdb: branches share no common ancestor")
		}
	}
	return fromBranch, toBranch, nil
}

// Remove drops id (and nothing else) from the database, used to discard a
// branch that failed validation during a fork switch
func (d *Database) Remove(id chaintypes.BlockID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.byID, id)
}

// SetMaxSize bounds how many trailing blocks PruneBelow will keep; 0 means
// unbounded. The controller calls this after every last-irreversible-block
// advance, mirroring _fork_db.set_max_size in the source.
func (d *Database) SetMaxSize(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxSize = n
}

// PruneBelow removes every block strictly below belowHeight, the
// housekeeping step that keeps the reversible suffix from growing without
// bound once blocks have been committed to the block log. With a max size n
// set, it also removes every block below head height - n + 1.
func (d *Database) PruneBelow(belowHeight uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.maxSize > 0 && d.head != nil {
		if h := d.head.block.Height(); uint64(h)+1 > uint64(d.maxSize) {
			if limit := h + 1 - uint32(d.maxSize); limit > belowHeight {
				belowHeight = limit
			}
		}
	}
	pruned := 0
	for id, n := range d.byID {
		if n.block.Height() < belowHeight {
			delete(d.byID, id)
			pruned++
		}
	}
	if pruned > 0 {
		log.WithField("below_height", belowHeight).WithField("pruned", pruned).Debug("pruned fork database")
	}
}

// Len reports how many blocks the database currently holds.
func (d *Database) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byID)
}
