package controller

import (
	"fmt"

	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/producer"
)

// checkAndApplyNewSchedule validates that a producer schedule change is only
// ever proposed at a round boundary and, unless the schedule check is
// skipped, that it is exactly the schedule CalculateSchedule would derive.
// It does not mutate gprops: a validated proposal is appended to
// gprops.PendingScheduleQueue by finalizeApplied once the block is actually
// accepted, and becomes active once that block becomes irreversible
// (irreversible.go's commitThrough/PromoteDueSchedules).
func (c *Controller) checkAndApplyNewSchedule(height uint32, b *chaintypes.SignedBlock, skip SkipFlags) error {
	if b.NewProducerSchedule == nil {
		return nil
	}
	if skip.has(SkipProducerScheduleCheck) {
		return nil
	}
	sched := c.scheduler()
	if !sched.IsStartOfRound(height) {
		return fmt.Errorf("%w: new producer schedule proposed off a round boundary", ErrBlockValidate)
	}
	want := producer.CalculateSchedule(c.gprops.ActiveProducers, *b.NewProducerSchedule)
	if !want.Equal(*b.NewProducerSchedule) || want.Version != b.NewProducerSchedule.Version {
		return fmt.Errorf("%w: proposed producer schedule does not match the derived one", ErrBlockValidate)
	}
	return nil
}
