package chain

import (
	"math/big"

	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// State holds the current chain tip state.
type State struct {
	Height       uint64
	TipHash      types.Hash
	Supply       uint64   // Total coins in circulation (genesis alloc + cumulative rewards).
	ChainWork    *big.Int // Cumulative proof-of-work (sum of block.Work(bits) for every block on this chain).
	TipTimestamp uint64   // Timestamp of the current tip block.
	TipBits      uint32   // Bits of the tip block, used as the retarget carry-forward value.
}

// IsGenesis returns true if no blocks have been processed yet.
func (s *State) IsGenesis() bool {
	return s.Height == 0 && s.TipHash.IsZero()
}

// Work returns the chain's accumulated work, treating a nil ChainWork
// (zero-value State) as zero.
func (s *State) Work() *big.Int {
	if s.ChainWork == nil {
		return big.NewInt(0)
	}
	return s.ChainWork
}
