package controller

import "github.com/asset-chain/chain-controller/chaintypes"

// Signals replaces the source's embedded signal-connect mechanism with a
// plain registered-callback list, invoked synchronously under the
// controller's write lock Subscribers must not
// re-enter the controller.
type Signals struct {
	appliedBlock             []func(*chaintypes.BlockTrace, *chaintypes.SignedBlock)
	appliedIrreversibleBlock []func(*chaintypes.SignedBlock)
	onPendingTransaction     []func(raw []byte)
}

func (s *Signals) fireAppliedBlock(trace *chaintypes.BlockTrace, b *chaintypes.SignedBlock) {
	for _, fn := range s.appliedBlock {
		fn(trace, b)
	}
}

func (s *Signals) fireAppliedIrreversibleBlock(b *chaintypes.SignedBlock) {
	for _, fn := range s.appliedIrreversibleBlock {
		fn(b)
	}
}

func (s *Signals) fireOnPendingTransaction(raw []byte) {
	for _, fn := range s.onPendingTransaction {
		fn(raw)
	}
}

// OnAppliedBlock registers a callback fired after every successful block
// application.
func (s *Signals) OnAppliedBlock(fn func(*chaintypes.BlockTrace, *chaintypes.SignedBlock)) {
	s.appliedBlock = append(s.appliedBlock, fn)
}

// OnAppliedIrreversibleBlock registers a callback fired once per block as
// it becomes irreversible.
func (s *Signals) OnAppliedIrreversibleBlock(fn func(*chaintypes.SignedBlock)) {
	s.appliedIrreversibleBlock = append(s.appliedIrreversibleBlock, fn)
}

// OnPendingTransaction registers a callback fired for every accepted
// incoming transaction.
func (s *Signals) OnPendingTransaction(fn func(raw []byte)) {
	s.onPendingTransaction = append(s.onPendingTransaction, fn)
}
