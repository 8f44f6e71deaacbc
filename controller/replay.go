package controller

import (
	"context"
	"fmt"
)

// Replay rebuilds in-memory state (State Store, fork database, global
// properties) from the durable block log, applying every logged block with
// every check skipped — they were already validated once, when they were
// first accepted. Grounded on chain_controller::replay_blockchain.
func (c *Controller) Replay(ctx context.Context) error {
	c.mu.Lock()
	c.replaying = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.replaying = false
		c.mu.Unlock()
	}()

	height := c.blog.Height()
	for h := uint32(1); h < height; h++ {
		b, err := c.blog.ReadByHeight(h)
		if err != nil {
			return fmt.Errorf("controller: replay: reading height %d: %w", h, err)
		}
		if err := c.PushBlock(ctx, b, AllSkips); err != nil {
			return fmt.Errorf("controller: replay: applying height %d: %w", h, err)
		}
	}
	return nil
}
