// Package producer implements the round-robin producer schedule: which
// producer owns a given slot, what time a slot falls at, and whether a
// block height starts a new round. Grounded on
// chain_controller::get_scheduled_producer/get_slot_time/get_slot_at_time
// and is_start_of_round/blocks_per_round in the original source.
package producer

import (
	"errors"
	"time"

	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/rules"
)

// ErrNoProducers is returned when a schedule has no active producers.
var ErrNoProducers = errors.New("producer: no producers defined")

// Scheduler answers round-robin scheduling questions against a fixed
// producer schedule and the chain's block interval. It holds no mutable
// state of its own — the controller rebuilds one whenever the active
// schedule or config changes.
type Scheduler struct {
	schedule   chaintypes.ProducerSchedule
	repetitions uint32
	intervalMS  uint32
	genesisTime time.Time
}

// New returns a Scheduler for the given active schedule and config.
func New(schedule chaintypes.ProducerSchedule, cfg rules.Config, genesisTime time.Time) *Scheduler {
	return &Scheduler{
		schedule:    schedule,
		repetitions: cfg.Producers.RepetitionsPerRound,
		intervalMS:  cfg.Blocks.IntervalMS,
		genesisTime: genesisTime,
	}
}

// BlocksPerRound is producers*repetitions — the source's blocks_per_round.
func (s *Scheduler) BlocksPerRound() uint32 {
	return uint32(len(s.schedule.Producers)) * s.repetitions
}

// IsStartOfRound reports whether height begins a new round.
func (s *Scheduler) IsStartOfRound(height uint32) bool {
	bpr := s.BlocksPerRound()
	if bpr == 0 {
		return true
	}
	return height%bpr == 0
}

// GetScheduledProducer returns the producer assigned to currentAbsoluteSlot
// + slotOffset, cycling through the schedule with each producer holding
// RepetitionsPerRound consecutive slots before rotating to the next.
func (s *Scheduler) GetScheduledProducer(currentAbsoluteSlot uint64, slotOffset uint32) (chaintypes.ProducerKey, error) {
	n := uint64(len(s.schedule.Producers))
	if n == 0 {
		return chaintypes.ProducerKey{}, ErrNoProducers
	}
	aslot := currentAbsoluteSlot + uint64(slotOffset)
	index := (aslot % (n * uint64(s.repetitions))) / uint64(s.repetitions)
	return s.schedule.Producers[index], nil
}

// GetSlotTime returns the wall-clock time of slotNum, counted from either
// genesis (when the chain has not produced its first block) or from the
// head block's time otherwise. A slotNum of 0 returns the zero time,
// matching get_slot_time's "slot_num == 0" special case.
func (s *Scheduler) GetSlotTime(headHeight uint32, headTime time.Time, slotNum uint32) time.Time {
	if slotNum == 0 {
		return time.Time{}
	}
	interval := time.Duration(s.intervalMS) * time.Millisecond
	base := s.genesisTime
	if headHeight != 0 {
		base = headTime
	}
	return base.Add(interval * time.Duration(slotNum))
}

// GetSlotAtTime returns the slot number containing when, or 0 if when
// precedes the first slot.
func (s *Scheduler) GetSlotAtTime(headHeight uint32, headTime time.Time, when time.Time) uint32 {
	first := s.GetSlotTime(headHeight, headTime, 1)
	if when.Before(first) {
		return 0
	}
	interval := time.Duration(s.intervalMS) * time.Millisecond
	return uint32(when.Sub(first)/interval) + 1
}

// ParticipationRate reports the percentage (0-100) of the last 64 slots
// that were filled, from the dynamic global properties' rolling bitmap —
// the source's producer_participation_rate.
func ParticipationRate(recentSlotsFilled uint64) uint32 {
	return uint32(100 * popcount64(recentSlotsFilled) / 64)
}

func popcount64(x uint64) int {
	count := 0
	for x != 0 {
		x &= x - 1
		count++
	}
	return count
}
