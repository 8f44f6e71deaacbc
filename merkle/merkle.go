// Package merkle computes the two flavors of Merkle root the block
// processor needs: a static root over a fixed leaf list (transaction_mroot,
// action_mroot, and per-shard roots) and an incremental root accumulated one
// block id at a time (block_merkle_root). Neither algorithm appears
// pre-packaged among the available dependencies, so both are built directly
// on crypto/sha256 — see DESIGN.md for why no library fits.
package merkle

import "crypto/sha256"

// Root computes the duplicate-last pairwise Merkle root over leaves, the
// same algorithm the source's eosio::chain::merkle() function implements:
// at each level, pair adjacent hashes; if a level has an odd count, the last
// hash is paired with itself.
//
// Root of zero leaves is the zero hash; root of one leaf is that leaf,
// unhashed further.
func Root(leaves [][32]byte) [32]byte {
	if len(leaves) == 0 {
		return [32]byte{}
	}
	level := make([][32]byte, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashPair(level[i], level[i+1]))
			} else {
				next = append(next, hashPair(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}

func hashPair(a, b [32]byte) [32]byte {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return sha256.Sum256(buf[:])
}

// Incremental accumulates block ids one at a time and exposes a running
// root, backing the dynamic global properties' "block-merkle accumulator."
// It keeps the full leaf list rather than a compact per-level digest: the
// dynamic global properties object appends one leaf per block, and a chain
// never needs more than a handful of these live at once (one per fork
// branch tip), so O(n) recomputation per append is the simpler — and, absent
// a reference implementation to check a compact version against, the safer
// — choice. See DESIGN.md.
type Incremental struct {
	leaves [][32]byte
}

// NewIncremental returns an empty accumulator.
func NewIncremental() *Incremental {
	return &Incremental{}
}

// Append folds one more leaf into the accumulator and returns the new root.
func (m *Incremental) Append(leaf [32]byte) [32]byte {
	m.leaves = append(m.leaves, leaf)
	return m.Root()
}

// Root returns the current root without mutating the accumulator.
func (m *Incremental) Root() [32]byte {
	return Root(m.leaves)
}

// Count reports how many leaves have been appended.
func (m *Incremental) Count() uint64 { return uint64(len(m.leaves)) }

// Clone returns an independent copy, so a fork branch can share history up
// to its fork point and diverge without the two branches aliasing state.
func (m *Incremental) Clone() *Incremental {
	out := make([][32]byte, len(m.leaves))
	copy(out, m.leaves)
	return &Incremental{leaves: out}
}
