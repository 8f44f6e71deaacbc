package rules

import (
	"crypto/ecdsa"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/asset-chain/chain-controller/chaintypes"
)

// PendingScheduleChange is one producer schedule proposal awaiting
// irreversibility, tagged with the height of the block that proposed it.
type PendingScheduleChange struct {
	Height   uint32
	Schedule chaintypes.ProducerSchedule
}

// GlobalProperties is the mutable singleton the controller threads through
// every pending block, carrying the current Config, the active producer
// schedule, and the queue of schedule changes proposed but not yet
// irreversible. A round boundary can only ever propose one change, but a
// chain can accumulate several such proposals before any of them clears the
// irreversibility threshold, so this is a queue, not a single slot: a new
// proposal never overwrites an earlier one still in flight.
type GlobalProperties struct {
	Config               Config
	ActiveProducers      chaintypes.ProducerSchedule
	PendingScheduleQueue []PendingScheduleChange // ascending by Height
	TotalMissed          map[string]uint64       // producer name -> slots it was scheduled for but didn't fill
}

// Genesis is the complete set of values needed to initialize a fresh chain:
// the fixed Config plus the producer schedule active from block 1 onward.
type Genesis struct {
	Config           Config
	InitialProducers chaintypes.ProducerSchedule
	Timestamp        time.Time
}

// InitialGlobalProperties derives the genesis-time GlobalProperties, the Go
// analogue of the source's chain_controller::_initialize_chain seeding the
// global_property_object from the genesis_state.
func InitialGlobalProperties(g Genesis) GlobalProperties {
	return GlobalProperties{
		Config:          g.Config,
		ActiveProducers: g.InitialProducers,
		TotalMissed:     make(map[string]uint64),
	}
}

// EnqueuePendingSchedule returns a copy of gp with a newly proposed schedule
// appended to the queue, tagged with the height of the block that proposed
// it. It never mutates gp.PendingScheduleQueue in place, for the same reason
// IncrementMissed never mutates TotalMissed in place: that slice is shared
// with every blockState snapshot taken before this call, and appending
// in-place (when capacity allows it) would corrupt PopBlock's rollback of
// those earlier blocks.
func (gp GlobalProperties) EnqueuePendingSchedule(height uint32, sched chaintypes.ProducerSchedule) GlobalProperties {
	next := make([]PendingScheduleChange, len(gp.PendingScheduleQueue), len(gp.PendingScheduleQueue)+1)
	copy(next, gp.PendingScheduleQueue)
	gp.PendingScheduleQueue = append(next, PendingScheduleChange{Height: height, Schedule: sched})
	return gp
}

// PromoteDueSchedules applies the highest-height queued proposal at or below
// newLIB — the one the chain has most recently agreed on — and erases every
// queued proposal at or below newLIB, including any earlier ones that never
// got the chance to become active. It returns a copy of gp; the caller
// decides whether anything actually changed via the second return value.
func (gp GlobalProperties) PromoteDueSchedules(newLIB uint32) (GlobalProperties, bool) {
	if len(gp.PendingScheduleQueue) == 0 || gp.PendingScheduleQueue[0].Height > newLIB {
		return gp, false
	}
	var applied *PendingScheduleChange
	kept := make([]PendingScheduleChange, 0, len(gp.PendingScheduleQueue))
	for i := range gp.PendingScheduleQueue {
		change := gp.PendingScheduleQueue[i]
		if change.Height > newLIB {
			kept = append(kept, change)
			continue
		}
		applied = &change
	}
	gp.PendingScheduleQueue = kept
	if applied != nil {
		gp.ActiveProducers = applied.Schedule
	}
	return gp, applied != nil
}

// IncrementMissed returns a copy of gp with producer's TotalMissed count
// incremented by one. It never mutates gp.TotalMissed in place: that map is
// shared with every blockState snapshot taken before this call, and mutating
// it in place would corrupt PopBlock's rollback of those earlier blocks.
func (gp GlobalProperties) IncrementMissed(producerName string) GlobalProperties {
	next := make(map[string]uint64, len(gp.TotalMissed)+1)
	for k, v := range gp.TotalMissed {
		next[k] = v
	}
	next[producerName]++
	gp.TotalMissed = next
	return gp
}

// FakeGenesisTime mirrors evmcore.FakeGenesisTime: a fixed timestamp so fake
// networks are reproducible across runs.
var FakeGenesisTime = time.Unix(1608600000, 0).UTC()

// FakeKey generates a deterministic ECDSA key for producer n, identical in
// spirit to evmcore.FakeKey: same n always yields the same key, which lets
// tests and fake networks reference "producer 3's key" without persisting
// anything.
func FakeKey(n int) *ecdsa.PrivateKey {
	reader := rand.New(rand.NewSource(int64(n)))
	key, err := ecdsa.GenerateKey(crypto.S256(), reader)
	if err != nil {
		panic(err)
	}
	return key
}

// FakeGenesis builds a Genesis for a network of numProducers fake producers
// named "producera", "producerb", ..., each signing with FakeKey(i), and the
// default Config. It is the chain_controller equivalent of
// evmcore.MustApplyFakeGenesis: a one-call deterministic bootstrap used by
// tests and local dev networks, never by a production chain.
func FakeGenesis(numProducers int) Genesis {
	producers := make([]chaintypes.ProducerKey, 0, numProducers)
	for i := 0; i < numProducers; i++ {
		key := FakeKey(i)
		pub := crypto.CompressPubkey(&key.PublicKey)
		producers = append(producers, chaintypes.ProducerKey{
			ProducerName: fakeProducerName(i),
			SigningKey:   pub,
		})
	}
	return Genesis{
		Config: DefaultConfig(),
		InitialProducers: chaintypes.ProducerSchedule{
			Version:   1,
			Producers: producers,
		},
		Timestamp: FakeGenesisTime,
	}
}

func fakeProducerName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < len(letters) {
		return "producer" + string(letters[i])
	}
	return "producer" + string(rune('a'+i%26))
}
