package controller

import (
	"sort"
)

// advanceLastIrreversible recomputes the last irreversible block height from
// the most recent block each active producer has produced, and commits
// every block up through the new height. Grounded on
// chain_controller::update_last_irreversible_block: each active producer's
// latest block number is collected, sorted descending, and the block number
// at index floor(n*(100-threshold)/100) is the new LIB — except with a
// single producer, where that would always be head itself, so it is backed
// off by one instead.
func (c *Controller) advanceLastIrreversible() {
	active := c.gprops.ActiveProducers.Producers
	n := len(active)
	if n == 0 {
		return
	}

	latest := make(map[string]uint32, n)
	cur := c.forkDB.Head()
	for cur != nil && cur.Height() > c.dgp.LastIrreversibleHeight {
		if _, seen := latest[cur.Producer]; !seen {
			latest[cur.Producer] = cur.Height()
			if len(latest) == n {
				break
			}
		}
		cur = c.forkDB.Fetch(cur.Previous)
	}
	if len(latest) == 0 {
		return
	}

	heights := make([]uint32, 0, len(latest))
	for _, h := range latest {
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] > heights[j] })

	offset := n * (100 - int(c.cfg.Producers.IrreversibleThresholdPercent)) / 100
	if offset >= len(heights) {
		return
	}
	newLIB := heights[offset]
	if n == 1 && newLIB > 0 {
		newLIB--
	}
	if newLIB <= c.dgp.LastIrreversibleHeight {
		return
	}
	c.commitThrough(newLIB)
}

// commitThrough squashes every reversible block's session up through
// newLIB into its parent (so it can no longer be popped), appends it to the
// durable block log, promotes any producer schedule proposal that has
// itself become irreversible, prunes the fork database below the new
// boundary, and bumps the store's commit watermark.
func (c *Controller) commitThrough(newLIB uint32) {
	for _, st := range c.history {
		if st.Block.Height() > newLIB {
			break
		}
		if sess, ok := c.sessions[st.ID]; ok {
			sess.Squash()
			delete(c.sessions, st.ID)
		}
		if c.replaying {
			// Already durable: the block came from this very log.
			c.signals.fireAppliedIrreversibleBlock(st.Block)
		} else if err := c.blog.Append(st.Block); err == nil {
			c.signals.fireAppliedIrreversibleBlock(st.Block)
		}
	}

	c.dgp.LastIrreversibleHeight = newLIB

	c.gprops, _ = c.gprops.PromoteDueSchedules(newLIB)

	c.forkDB.SetMaxSize(0)
	c.forkDB.PruneBelow(newLIB)
	_ = c.st.Commit(uint64(newLIB))

	kept := c.history[:0:0]
	for _, st := range c.history {
		if st.Block.Height() > newLIB {
			kept = append(kept, st)
		}
	}
	c.history = kept
}
