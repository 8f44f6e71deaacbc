package producer

import "github.com/asset-chain/chain-controller/chaintypes"

// CalculateSchedule decides the schedule that should become active at the
// next round boundary: newActive as proposed (e.g. by a system contract's
// vote tally), version-bumped relative to head only if the producer set
// actually changed. Grounded on
// chain_controller::_calculate_producer_schedule / _head_producer_schedule.
func CalculateSchedule(head, newActive chaintypes.ProducerSchedule) chaintypes.ProducerSchedule {
	schedule := newActive
	schedule.Version = head.Version
	if !head.Equal(newActive) {
		schedule.Version = head.Version + 1
	}
	return schedule
}
