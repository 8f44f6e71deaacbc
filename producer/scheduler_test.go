package producer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/rules"
)

func threeProducerSchedule() chaintypes.ProducerSchedule {
	return chaintypes.ProducerSchedule{
		Version: 1,
		Producers: []chaintypes.ProducerKey{
			{ProducerName: "producera"},
			{ProducerName: "producerb"},
			{ProducerName: "producerc"},
		},
	}
}

func testScheduler() *Scheduler {
	cfg := rules.DefaultConfig()
	cfg.Producers.RepetitionsPerRound = 2 // small for easy-to-follow rotation math
	return New(threeProducerSchedule(), cfg, rules.FakeGenesisTime)
}

func TestBlocksPerRound(t *testing.T) {
	s := testScheduler()
	assert.Equal(t, uint32(6), s.BlocksPerRound()) // 3 producers * 2 repetitions
}

func TestIsStartOfRound(t *testing.T) {
	s := testScheduler()
	assert.True(t, s.IsStartOfRound(0))
	assert.True(t, s.IsStartOfRound(6))
	assert.True(t, s.IsStartOfRound(12))
	assert.False(t, s.IsStartOfRound(1))
	assert.False(t, s.IsStartOfRound(7))
}

func TestIsStartOfRoundWithNoProducersAlwaysTrue(t *testing.T) {
	s := New(chaintypes.ProducerSchedule{}, rules.DefaultConfig(), rules.FakeGenesisTime)
	assert.True(t, s.IsStartOfRound(0))
	assert.True(t, s.IsStartOfRound(5))
}

func TestGetScheduledProducerRotatesByRepetitions(t *testing.T) {
	s := testScheduler()
	// With repetitions=2: slots 0-1 -> producera, 2-3 -> producerb, 4-5 -> producerc, then wraps.
	want := []string{
		"producera", "producera",
		"producerb", "producerb",
		"producerc", "producerc",
		"producera",
	}
	for slot, name := range want {
		p, err := s.GetScheduledProducer(0, uint32(slot))
		require.NoError(t, err)
		assert.Equal(t, name, p.ProducerName, "slot %d", slot)
	}
}

func TestGetScheduledProducerNoProducers(t *testing.T) {
	s := New(chaintypes.ProducerSchedule{}, rules.DefaultConfig(), rules.FakeGenesisTime)
	_, err := s.GetScheduledProducer(0, 0)
	assert.ErrorIs(t, err, ErrNoProducers)
}

func TestGetSlotTimeZeroSlotIsZeroTime(t *testing.T) {
	s := testScheduler()
	assert.True(t, s.GetSlotTime(0, time.Time{}, 0).IsZero())
}

func TestGetSlotTimeFromGenesisWhenNoHead(t *testing.T) {
	s := testScheduler()
	got := s.GetSlotTime(0, time.Time{}, 3)
	want := rules.FakeGenesisTime.Add(3 * 500 * time.Millisecond)
	assert.True(t, got.Equal(want))
}

func TestGetSlotTimeFromHeadWhenPresent(t *testing.T) {
	s := testScheduler()
	headTime := rules.FakeGenesisTime.Add(10 * time.Second)
	got := s.GetSlotTime(5, headTime, 2)
	want := headTime.Add(2 * 500 * time.Millisecond)
	assert.True(t, got.Equal(want))
}

func TestGetSlotAtTimeRoundTripsWithGetSlotTime(t *testing.T) {
	s := testScheduler()
	headTime := rules.FakeGenesisTime.Add(10 * time.Second)
	for slot := uint32(1); slot < 10; slot++ {
		at := s.GetSlotTime(5, headTime, slot)
		assert.Equal(t, slot, s.GetSlotAtTime(5, headTime, at), "slot %d must round-trip", slot)
	}
}

func TestGetSlotAtTimeBeforeFirstSlotIsZero(t *testing.T) {
	s := testScheduler()
	headTime := rules.FakeGenesisTime.Add(10 * time.Second)
	before := headTime.Add(100 * time.Millisecond) // less than one interval past head
	assert.Equal(t, uint32(0), s.GetSlotAtTime(5, headTime, before))
}

func TestCalculateScheduleBumpsVersionOnlyWhenProducersChange(t *testing.T) {
	head := chaintypes.ProducerSchedule{Version: 3, Producers: []chaintypes.ProducerKey{{ProducerName: "producera"}}}

	same := chaintypes.ProducerSchedule{Producers: []chaintypes.ProducerKey{{ProducerName: "producera"}}}
	got := CalculateSchedule(head, same)
	assert.Equal(t, uint32(3), got.Version, "an unchanged producer set keeps head's version")

	changed := chaintypes.ProducerSchedule{Producers: []chaintypes.ProducerKey{{ProducerName: "producerb"}}}
	got = CalculateSchedule(head, changed)
	assert.Equal(t, uint32(4), got.Version, "a changed producer set bumps the version")
}

func TestParticipationRate(t *testing.T) {
	assert.Equal(t, uint32(100), ParticipationRate(^uint64(0)))
	assert.Equal(t, uint32(0), ParticipationRate(0))
	// 32 of 64 bits set -> 50%.
	assert.Equal(t, uint32(50), ParticipationRate(0x00000000FFFFFFFF))
}
