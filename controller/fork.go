package controller

import (
	"context"
	"fmt"

	"github.com/asset-chain/chain-controller/chaintypes"
)

// PushBlock accepts a block received from the network: links it into the
// fork database, and either extends the current head, switches to it as a
// new best chain, or leaves it parked as a non-winning fork. Grounded on
// chain_controller::push_block/_push_block.
func (c *Controller) PushBlock(ctx context.Context, b *chaintypes.SignedBlock, skip SkipFlags) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	log.WithField("correlation_id", correlationID(ctx).String()).
		WithField("block_id", b.ID().String()).
		Debug("push block")

	c.builder.Clear()

	if c.forkDB.Len() == 0 {
		if b.Previous != chaintypes.ZeroBlockID {
			return fmt.Errorf("%w: first block must reference the zero previous id", ErrUnlinkableBlock)
		}
		b.SetHeightHint(1)
		blk, err := c.applyBlockContents(ctx, c.root, b, nil, skip)
		if err != nil {
			return err
		}
		c.forkDB.StartBlock(b)
		c.finalizeApplied(blk, nil, skip)
		return nil
	}

	parent := c.forkDB.Fetch(b.Previous)
	if parent == nil {
		return ErrUnlinkableBlock
	}
	height := parent.Height() + 1
	b.SetHeightHint(height)

	if cpID, pinned := c.checkpoints[height]; pinned && cpID != b.ID() {
		return ErrCheckpointMismatch
	}
	if c.beforeLastCheckpoint(height) {
		skip = AllSkips
	}

	if c.forkDB.IsKnown(b.ID()) {
		return nil
	}
	if err := c.forkDB.Push(b); err != nil {
		return fmt.Errorf("%w: %v", ErrUnlinkableBlock, err)
	}

	head := c.forkDB.Head()
	switch {
	case b.Previous == head.ID():
		if err := c.pushExtendingBlock(ctx, b, skip); err != nil {
			c.forkDB.Remove(b.ID())
			return err
		}
		return nil
	case b.Height() > head.Height():
		return c.switchFork(ctx, b, skip, head)
	default:
		// Equal or lower height than the current head: kept linked for a
		// later block to possibly extend, but never displaces head.
		return nil
	}
}

// pushExtendingBlock applies b directly on top of the current frontier/head
// and finalizes it. b must already be linked into the fork database.
func (c *Controller) pushExtendingBlock(ctx context.Context, b *chaintypes.SignedBlock, skip SkipFlags) error {
	parent := c.forkDB.Fetch(b.Previous)
	blk, err := c.applyBlockContents(ctx, c.frontier, b, parent, skip)
	if err != nil {
		return err
	}
	c.finalizeApplied(blk, parent, skip)
	return nil
}

// switchFork rolls back from oldHead to the common ancestor with b, then
// applies the new branch (oldest first). If any block in the new branch
// fails, it rolls the new branch back off and restores oldHead's branch,
// so a bad fork never leaves the chain worse off than before the attempt.
func (c *Controller) switchFork(ctx context.Context, b *chaintypes.SignedBlock, skip SkipFlags, oldHead *chaintypes.SignedBlock) error {
	fromBranch, toBranch, err := c.forkDB.FetchBranch(oldHead.ID(), b.ID())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnlinkableBlock, err)
	}
	reverseBlocks(toBranch)

	popped := make([]*chaintypes.SignedBlock, 0, len(fromBranch))
	for range fromBranch {
		pb, err := c.popOnce()
		if err != nil {
			return err
		}
		popped = append(popped, pb)
	}

	applied := 0
	for _, nb := range toBranch {
		if err := c.pushExtendingBlock(ctx, nb, skip); err != nil {
			for i := 0; i < applied; i++ {
				_, _ = c.popOnce()
			}
			for i := len(popped) - 1; i >= 0; i-- {
				if rerr := c.pushExtendingBlock(ctx, popped[i], AllSkips); rerr != nil {
					return fmt.Errorf("controller: rollback to previous head failed after bad fork (%v): %w", rerr, err)
				}
			}
			return err
		}
		applied++
	}
	return nil
}

func reverseBlocks(bs []*chaintypes.SignedBlock) {
	for i, j := 0, len(bs)-1; i < j; i, j = i+1, j-1 {
		bs[i], bs[j] = bs[j], bs[i]
	}
}

// PopBlock undoes the current head block, reverting the State Store and
// dynamic global properties to the state just before it was applied.
// Grounded on chain_controller::pop_block.
func (c *Controller) PopBlock() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.popOnce()
	return err
}

func (c *Controller) popOnce() (*chaintypes.SignedBlock, error) {
	if len(c.history) == 0 {
		return nil, ErrPopEmptyChain
	}
	top := c.history[len(c.history)-1]
	c.history = c.history[:len(c.history)-1]

	top.Session.Undo()
	delete(c.sessions, top.ID)
	c.forkDB.Remove(top.ID)

	if len(c.history) > 0 {
		prev := c.history[len(c.history)-1]
		c.frontier = prev.Session
		c.forkDB.SetHead(prev.ID)
	} else {
		c.frontier = c.root
		c.forkDB.SetHead(top.Previous)
	}

	dgp := top.PrevDGP
	c.dgp = &dgp
	c.gprops = top.PrevGP
	return top.Block, nil
}
