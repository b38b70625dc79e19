package utxo

import (
	"fmt"

	"github.com/INT-devs/intcoin-sub001/pkg/block"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// Diff records the UTXO-set mutations a single block made, so they can be
// reversed during a reorg without replaying the whole chain.
type Diff struct {
	Spent   []UTXO           `json:"spent"`
	Created []types.OutPoint `json:"created"`
}

// Apply spends every non-coinbase input and creates every output of blk
// against set, at the given height, and returns the Diff needed to undo it.
// Apply assumes blk has already passed UTXO-aware validation — it does not
// re-check balances or signatures.
func Apply(set Set, blk *block.Block, height uint64) (*Diff, error) {
	diff := &Diff{}

	for _, transaction := range blk.Transactions {
		txHash := transaction.Hash()
		isCoinbase := transaction.IsCoinbase()

		for _, in := range transaction.Inputs {
			if in.Prev.IsCoinbaseSentinel() {
				continue
			}
			u, err := set.Get(in.Prev)
			if err != nil {
				return nil, fmt.Errorf("get utxo %s for undo: %w", in.Prev, err)
			}
			diff.Spent = append(diff.Spent, *u)
			if err := set.Delete(in.Prev); err != nil {
				return nil, fmt.Errorf("spend %s: %w", in.Prev, err)
			}
		}

		for i, out := range transaction.Outputs {
			op := types.OutPoint{TxHash: txHash, Index: uint32(i)}
			diff.Created = append(diff.Created, op)

			u := &UTXO{
				OutPoint:        op,
				Value:           out.Value,
				ScriptPubKey:    out.ScriptPubKey,
				RecipientPubKey: out.RecipientPubKey,
				Height:          height,
				Coinbase:        isCoinbase,
			}
			if err := set.Put(u); err != nil {
				return nil, fmt.Errorf("create output %s:%d: %w", txHash, i, err)
			}
		}
	}

	return diff, nil
}

// Undo reverses a Diff previously returned by Apply: outputs the block
// created are deleted, and inputs it spent are restored.
func Undo(set Set, diff *Diff) error {
	for i := len(diff.Created) - 1; i >= 0; i-- {
		if err := set.Delete(diff.Created[i]); err != nil {
			return fmt.Errorf("delete created output %s: %w", diff.Created[i], err)
		}
	}
	for i := range diff.Spent {
		if err := set.Put(&diff.Spent[i]); err != nil {
			return fmt.Errorf("restore utxo %s: %w", diff.Spent[i].OutPoint, err)
		}
	}
	return nil
}
