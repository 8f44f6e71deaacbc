package rules

import (
	"time"

	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/merkle"
)

// DynamicGlobalProperties is the persistent singleton the block processor
// updates after every applied block
type DynamicGlobalProperties struct {
	HeadBlockHeight        uint32
	HeadBlockID            chaintypes.BlockID
	HeadBlockTime          time.Time
	CurrentProducer        string
	CurrentAbsoluteSlot    uint64
	LastIrreversibleHeight uint32
	RecentSlotsFilled      uint64 // rolling 64-bit bitmap, newest bit at position 0
	AverageBlockSize       uint64
	BlockMerkle            *merkle.Incremental

	// VirtualNetBandwidth/VirtualActBandwidth are windowed exponential
	// accumulators of per-block net/action usage, the accounting half of
	// the source's virtual bandwidth limiter — enforcement is out of
	// scope here, only the running accumulation.
	VirtualNetBandwidth uint64
	VirtualActBandwidth uint64
}

// NewDynamicGlobalProperties returns the genesis-time zero value.
func NewDynamicGlobalProperties() *DynamicGlobalProperties {
	return &DynamicGlobalProperties{BlockMerkle: merkle.NewIncremental()}
}

// RecordSlot shifts the rolling bitmap left by missedSlots (recording
// zeros for each missed slot) and sets the newest bit to mark that this
// slot was filled.
func (p *DynamicGlobalProperties) RecordSlot(missedSlots uint64) {
	if missedSlots >= 64 {
		p.RecentSlotsFilled = 0
	} else {
		p.RecentSlotsFilled <<= missedSlots
	}
	p.RecentSlotsFilled = (p.RecentSlotsFilled << 1) | 1
}

// UpdateVirtualBandwidth folds one block's observed net/action usage into
// the windowed accumulators, using the same 7/8-decay shape as
// AverageBlockSize: each update is seven parts history to one part new
// observation.
func (p *DynamicGlobalProperties) UpdateVirtualBandwidth(netUsage, actUsage uint64) {
	p.VirtualNetBandwidth = (p.VirtualNetBandwidth*7 + netUsage) / 8
	p.VirtualActBandwidth = (p.VirtualActBandwidth*7 + actUsage) / 8
}
