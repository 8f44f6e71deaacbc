// Package store defines the state store contract: a versioned key-value
// index collection with nestable undo sessions, used by every layer above it
// (pending builder, transaction applicator, block processor) to stage and
// roll back writes without the rest of the controller needing to know
// whether its mutations will ultimately commit.
//
// Table names are flat constants, one per logical index, so a backend only
// needs to open one bucket/table per name.
package store

import "errors"

// ErrNotFound is returned by Get when no record exists under a key.
var ErrNotFound = errors.New("store: not found")

// Table names for the controller's own multi-indices. External interpreter
// state lives in tables the interpreter itself names; the controller only
// owns the tables below.
const (
	TableBlockSummary  = "BlockSummary"  // sid (height & 0xFFFF) -> block id
	TableTransactionDedup = "TransactionDedup" // trx id -> expiration
	TableGeneratedTrx  = "GeneratedTransaction" // (sender, sender_id) -> packed deferred trx
	TableGlobalProps   = "GlobalProperties" // singleton
	TableDynamicProps  = "DynamicGlobalProperties" // singleton
	TableAccountUsage  = "AccountUsage" // account name -> packed windowed net/cpu usage accumulator
)

// Index is a single typed multi-index: a table of opaque key/value bytes
// plus range scans. The controller's own indices (block summary, dedup,
// generated transactions) are small enough that byte-slice keys suffice —
// a real interpreter-facing store would add secondary indices, but nothing
// in this controller's own tables needs one.
type Index interface {
	Get(key []byte) ([]byte, error) // ErrNotFound if absent
	Put(key, value []byte) error
	Delete(key []byte) error
	// Scan calls fn for every key in [start, end) in key order, stopping
	// early if fn returns false.
	Scan(start, end []byte, fn func(key, value []byte) bool) error
}

// Session is a nestable undo frame: every write made through it is
// recorded as a (table, key, pre-image) triple, so Undo can reverse them
// and Squash can fold them into the parent session instead.
//
// The controller's block lifecycle is a stack of these: a pending-block
// session wraps a per-transaction session wraps a per-action session
//
type Session interface {
	// Index returns a view of table scoped to this session: writes
	// through it are tracked for Undo/Squash.
	Index(table string) Index

	// Push starts a new nested session on top of this one.
	Push() Session

	// Squash merges this session's writes into its parent, keeping this
	// session's undo information attached to the parent so it can still
	// be undone later if the parent itself is undone.
	Squash()

	// Undo reverts every write recorded by this session, in reverse
	// order, and detaches it from its parent.
	Undo()
}

// Store is the root handle: it opens the outermost undo session and tracks
// the commit revision.
type Store interface {
	// StartUndoSession begins a new top-level session.
	StartUndoSession() Session

	// Revision returns the number of outer-level commits so far.
	Revision() uint64

	// Commit discards undo history for revisions at or below rev: once
	// committed, those writes can no longer be undone. The block
	// processor calls this after advancing the last irreversible block
	//
	Commit(rev uint64) error

	// Close releases any backing resources.
	Close() error
}
