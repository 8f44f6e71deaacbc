package controller

// SkipFlags is the bitmask recognized by PushBlock/PushTransaction/
// GenerateBlock Each bit masks exactly the
// check implied by its name.
type SkipFlags uint32

const SkipNothing SkipFlags = 0

const (
	SkipProducerSignature SkipFlags = 1 << iota
	SkipTransactionSignatures
	SkipTransactionDupeCheck
	SkipTaposCheck
	SkipMerkleCheck
	SkipProducerScheduleCheck
	SkipAuthorityCheck
	SkipForkDB
	SkipMissedBlockPenalty
	SkipBlockSizeCheck
	ReceivedBlock
	CreatedBlock
	GenesisSetup
)

func (f SkipFlags) has(bit SkipFlags) bool { return f&bit != 0 }

// AllSkips is applied past the latest checkpoint height — every check is
// skipped because the block has already been socially finalized.
const AllSkips SkipFlags = SkipProducerSignature | SkipTransactionSignatures | SkipTransactionDupeCheck |
	SkipTaposCheck | SkipMerkleCheck | SkipProducerScheduleCheck | SkipAuthorityCheck |
	SkipForkDB | SkipMissedBlockPenalty | SkipBlockSizeCheck
