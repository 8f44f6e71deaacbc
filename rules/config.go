// Package rules defines the chain-wide configuration constants the
// controller enforces and the genesis-derived shape
// of the global properties singleton It generalizes the
// teacher's opera/rules.go, which groups a DPoS-adjacent network's Dag,
// Epochs, Blocks, and Economy parameters into one RLP-tagged struct; here
// the same shape covers block production, sharding, and transaction
// lifetime instead of DAG/epoch gas accounting.
package rules

import (
	"time"
)

// Config is the network's fixed consensus configuration, set at genesis
// and changed only by a hard fork — the Go analogue of opera/rules.go's
// Rules struct, and of the source's chain_config (config:: constants plus
// the genesis-time chain_configuration).
type Config struct {
	// Blocks groups block-production timing.
	Blocks BlocksConfig

	// Producers groups producer-rotation parameters.
	Producers ProducersConfig

	// Transactions groups transaction lifetime and authority bounds.
	Transactions TransactionsConfig

	// Limits groups block size/action bounds.
	Limits LimitsConfig
}

// BlocksConfig covers block cadence and the rolling structures keyed by
// height.
type BlocksConfig struct {
	// IntervalMS is the fixed duration of a slot, in milliseconds.
	IntervalMS uint32

	// SummaryRingSize is the number of entries in the block summary ring
	// used for TaPoS verification. Fixed at 65536.
	SummaryRingSize uint32

	// AverageSizeWindowMS is the window over which average block size is
	// tracked for the virtual bandwidth accumulator.
	AverageSizeWindowMS uint32
}

// ProducersConfig covers the round-robin producer schedule.
type ProducersConfig struct {
	// RepetitionsPerRound is the fixed number of consecutive slots each
	// active producer gets per round.
	RepetitionsPerRound uint32

	// IrreversibleThresholdPercent is the supermajority percent required
	// for a block to become irreversible.
	IrreversibleThresholdPercent uint32

	// AuthorityThreshold is the number of producer signatures the
	// "producers" system account's rewritten authority requires.
	AuthorityThreshold uint32
}

// TransactionsConfig covers transaction admission bounds.
type TransactionsConfig struct {
	MaxLifetime                          time.Duration
	MaxAuthorityDepth                    uint32
	FixedBandwidthOverheadPerTransaction uint64
}

// LimitsConfig covers per-block resource bounds.
type LimitsConfig struct {
	MaxBlockSize        uint64
	MaxBlockActionCount uint32
	SetcodeActUsage     uint32
}

// DefaultConfig mirrors the EOSIO reference chain's defaults (source
// config:: constants), translated to Go types.
func DefaultConfig() Config {
	return Config{
		Blocks: BlocksConfig{
			IntervalMS:          500,
			SummaryRingSize:     65536,
			AverageSizeWindowMS: 60_000,
		},
		Producers: ProducersConfig{
			RepetitionsPerRound:          12,
			IrreversibleThresholdPercent: 66,
			AuthorityThreshold:           1,
		},
		Transactions: TransactionsConfig{
			MaxLifetime:                          60 * time.Second,
			MaxAuthorityDepth:                     6,
			FixedBandwidthOverheadPerTransaction: 128,
		},
		Limits: LimitsConfig{
			MaxBlockSize:        1024 * 1024,
			MaxBlockActionCount: 10_000,
			SetcodeActUsage:     100,
		},
	}
}

// PercentOf applies an EOS_PERCENT-style integer percentage: floor(value *
// percent / 100).
func PercentOf(value uint64, percent uint32) uint64 {
	return value * uint64(percent) / 100
}

// MinGasPrice and similar economic knobs are intentionally absent: the
// controller's scope is consensus and execution scheduling, not defining
// the contract execution fee market itself.
