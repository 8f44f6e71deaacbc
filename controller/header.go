package controller

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/asset-chain/chain-controller/authority"
	"github.com/asset-chain/chain-controller/chaintypes"
)

// validateBlockHeader checks everything about b that can be decided before
// re-executing a single transaction: timestamp monotonicity, the scheduled
// producer for b's slot, and the producer's signature. Grounded on
// chain_controller::validate_block_header.
func (c *Controller) validateBlockHeader(b *chaintypes.SignedBlock, parentHeight uint32, parentTime time.Time, skip SkipFlags) error {
	if !b.Timestamp.After(parentTime) {
		return fmt.Errorf("%w: block timestamp does not advance", ErrBlockValidate)
	}

	sched := c.scheduler()
	if !skip.has(SkipProducerScheduleCheck) {
		offset := sched.GetSlotAtTime(parentHeight, parentTime, b.Timestamp)
		absSlot := c.dgp.CurrentAbsoluteSlot + uint64(offset)
		if parentHeight == 0 {
			absSlot = 1
		}
		expected, err := sched.GetScheduledProducer(absSlot, 0)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBlockValidate, err)
		}
		if expected.ProducerName != b.Producer {
			return fmt.Errorf("%w: producer %s not scheduled for this slot (expected %s)", ErrBlockValidate, b.Producer, expected.ProducerName)
		}
	}

	if !skip.has(SkipProducerSignature) {
		digest := sha256.Sum256(chaintypes.PackBlockContent(b))
		if err := authority.CheckProducerSignature(c.gprops.ActiveProducers, b.Producer, digest, b.Signature); err != nil {
			return fmt.Errorf("%w: %v", ErrBlockValidate, err)
		}
	}

	return nil
}
