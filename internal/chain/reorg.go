package chain

import (
	"fmt"
	"math/big"

	"github.com/INT-devs/intcoin-sub001/config"
	"github.com/INT-devs/intcoin-sub001/internal/consensus"
	"github.com/INT-devs/intcoin-sub001/internal/utxo"
	"github.com/INT-devs/intcoin-sub001/pkg/block"
	"github.com/INT-devs/intcoin-sub001/pkg/tx"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// undoData stores the information needed to revert a block's UTXO changes:
// the raw UTXO diff plus the bookkeeping (tx index, minted supply) that sits
// alongside it but isn't part of the UTXO set itself.
type undoData struct {
	Diff        utxo.Diff    `json:"diff"`
	TxHashes    []types.Hash `json:"tx_hashes"`
	BlockReward uint64       `json:"block_reward"`
}

func newUndoData(blk *block.Block, diff *utxo.Diff, blockReward uint64) *undoData {
	u := &undoData{Diff: *diff, BlockReward: blockReward}
	for _, t := range blk.Transactions {
		u.TxHashes = append(u.TxHashes, t.Hash())
	}
	return u
}

// revertBlock undoes a block's UTXO changes using stored undo data and
// removes its transactions from the tx index.
func (c *Chain) revertBlock(undo *undoData) error {
	if err := utxo.Undo(c.utxos, &undo.Diff); err != nil {
		return fmt.Errorf("undo utxo diff: %w", err)
	}
	for _, txHash := range undo.TxHashes {
		if err := c.blocks.DeleteTxIndex(txHash); err != nil {
			return fmt.Errorf("delete tx index %s: %w", txHash, err)
		}
	}
	return nil
}

// ErrForkDetected indicates a valid block whose parent is known but is not the
// current tip. The caller should decide whether to reorg.
var ErrForkDetected = fmt.Errorf("fork detected")

// ErrReorgTooDeep is returned when a reorg exceeds config.MaxReorgDepth.
var ErrReorgTooDeep = fmt.Errorf("reorg too deep")

// ErrGenesisReorg is returned when a reorg would replace the genesis block.
var ErrGenesisReorg = fmt.Errorf("reorg would replace genesis block")

// Reorg switches the chain from the current tip to the new tip.
// It finds the common ancestor, reverts old blocks, and replays new blocks.
// The reorg only proceeds if the new branch accumulates more proof-of-work
// than the blocks it would replace.
func (c *Chain) Reorg(newTipHash types.Hash) error {
	newBranch, forkHeight, err := c.collectBranch(newTipHash)
	if err != nil {
		return fmt.Errorf("collect new branch: %w", err)
	}
	if len(newBranch) == 0 {
		return fmt.Errorf("empty new branch")
	}

	oldHeight := c.state.Height

	// Refuse a reorg that would disconnect more than config.MaxReorgDepth
	// blocks from the current chain.
	if oldHeight-forkHeight > config.MaxReorgDepth {
		return fmt.Errorf("%w: would disconnect %d blocks, max %d", ErrReorgTooDeep, oldHeight-forkHeight, config.MaxReorgDepth)
	}

	// Compare accumulated work. Equal work keeps the current chain (no
	// flip-flopping on ties).
	newBranchWork := big.NewInt(0)
	for _, blk := range newBranch {
		newBranchWork.Add(newBranchWork, block.Work(blk.Header.Bits))
	}
	oldBranchWork := big.NewInt(0)
	for h := forkHeight + 1; h <= oldHeight; h++ {
		blk, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return fmt.Errorf("load old block for work comparison at height %d: %w", h, err)
		}
		oldBranchWork.Add(oldBranchWork, block.Work(blk.Header.Bits))
	}
	if newBranchWork.Cmp(oldBranchWork) <= 0 {
		return nil // New branch doesn't have more work — keep current chain.
	}

	// Refuse a reorg that would disconnect a block pinned at a checkpoint,
	// no matter how much work the new branch has accumulated.
	if c.checkpointCrossed(forkHeight, oldHeight) {
		return fmt.Errorf("%w: reorg would disconnect a checkpointed block at height <= %d", consensus.ErrCheckpointViolation, oldHeight)
	}

	// Write reorg checkpoint so we can recover if the node crashes mid-reorg.
	if err := c.blocks.PutReorgCheckpoint(forkHeight); err != nil {
		return fmt.Errorf("write reorg checkpoint: %w", err)
	}

	var revertedTxs []*tx.Transaction

	// Revert old blocks from current tip down to the fork point.
	for h := oldHeight; h > forkHeight; h-- {
		blk, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return fmt.Errorf("load old block at height %d: %w", h, err)
		}
		bHash := blk.Hash()
		undoBytes, err := c.blocks.GetUndo(bHash)
		if err != nil {
			// Undo data missing — fall back to full UTXO rebuild.
			return c.rebuildReorg(newBranch, forkHeight)
		}
		undo, err := decodeUndoData(undoBytes)
		if err != nil {
			return fmt.Errorf("decode undo for block %s: %w", bHash, err)
		}

		if err := c.revertBlock(undo); err != nil {
			return fmt.Errorf("revert block %s: %w", bHash, err)
		}

		if c.revertedTxHandler != nil && len(blk.Transactions) > 1 {
			revertedTxs = append(revertedTxs, blk.Transactions[1:]...)
		}

		if undo.BlockReward > c.state.Supply {
			return fmt.Errorf("supply underflow at height %d: reward %d > supply %d", h, undo.BlockReward, c.state.Supply)
		}
		c.state.Supply -= undo.BlockReward
		c.state.ChainWork.Sub(c.state.Work(), block.Work(blk.Header.Bits))

		if err := c.blocks.DeleteUndo(bHash); err != nil {
			return fmt.Errorf("delete undo for block %s: %w", bHash, err)
		}
	}

	// Replay new branch blocks with full validation.
	for i, blk := range newBranch {
		height := forkHeight + 1 + uint64(i)

		if err := c.validator.ValidateBlock(blk); err != nil {
			return fmt.Errorf("validate replay block at height %d: %w", height, err)
		}
		if err := c.verifyDifficulty(blk, height); err != nil {
			return fmt.Errorf("difficulty check replay block at height %d: %w", height, err)
		}
		if err := c.validateBlockState(blk, height); err != nil {
			return fmt.Errorf("state validation replay block at height %d: %w", height, err)
		}

		blockReward := c.computeBlockReward(blk)

		diff, err := utxo.Apply(c.utxos, blk, height)
		if err != nil {
			return fmt.Errorf("apply new block at height %d: %w", height, err)
		}
		undo := newUndoData(blk, diff, blockReward)
		undoBytes := undo.encode()

		if c.maxSupply > 0 && c.state.Supply+blockReward > c.maxSupply {
			blockReward = c.maxSupply - c.state.Supply
		}
		if c.state.Supply > ^uint64(0)-blockReward {
			return fmt.Errorf("supply overflow at height %d: supply %d + reward %d", height, c.state.Supply, blockReward)
		}

		newSupply := c.state.Supply + blockReward
		newWork := new(big.Int).Add(c.state.Work(), block.Work(blk.Header.Bits))

		if err := c.blocks.PutBlock(blk, height); err != nil {
			return fmt.Errorf("store replay block at height %d: %w", height, err)
		}
		if err := c.blocks.PutUndo(blk.Hash(), undoBytes); err != nil {
			return fmt.Errorf("store undo for replay block at height %d: %w", height, err)
		}
		if err := c.blocks.SetTip(blk.Hash(), height, newSupply); err != nil {
			return fmt.Errorf("set tip for replay block at height %d: %w", height, err)
		}
		if err := c.blocks.SetChainWork(newWork); err != nil {
			return fmt.Errorf("set chain work for replay block at height %d: %w", height, err)
		}

		c.state.Supply = newSupply
		c.state.ChainWork = newWork
	}

	tip := newBranch[len(newBranch)-1]
	c.state.TipHash = tip.Hash()
	c.state.Height = forkHeight + uint64(len(newBranch))
	c.state.TipTimestamp = tip.Header.Timestamp
	c.state.TipBits = tip.Header.Bits

	if err := c.blocks.DeleteReorgCheckpoint(); err != nil {
		return fmt.Errorf("delete reorg checkpoint: %w", err)
	}

	if c.revertedTxHandler != nil && len(revertedTxs) > 0 {
		newBranchTxs := make(map[types.Hash]bool)
		for _, blk := range newBranch {
			for _, t := range blk.Transactions {
				newBranchTxs[t.Hash()] = true
			}
		}
		var toReturn []*tx.Transaction
		for _, t := range revertedTxs {
			if !newBranchTxs[t.Hash()] {
				toReturn = append(toReturn, t)
			}
		}
		if len(toReturn) > 0 {
			c.revertedTxHandler(toReturn)
		}
	}

	return nil
}

// collectBranch collects blocks from the given hash back to the fork point
// (common ancestor with the current main chain). Returns blocks in ascending
// height order (fork+1 ... newTip) and the fork height itself.
func (c *Chain) collectBranch(tipHash types.Hash) ([]*block.Block, uint64, error) {
	var branch []*block.Block
	hash := tipHash

	for {
		blk, err := c.blocks.GetBlock(hash)
		if err != nil {
			return nil, 0, fmt.Errorf("load block %s: %w", hash, err)
		}
		height, err := c.blocks.GetBlockHeight(hash)
		if err != nil {
			return nil, 0, fmt.Errorf("load height for block %s: %w", hash, err)
		}
		branch = append(branch, blk)

		if len(branch) > config.MaxReorgDepth {
			return nil, 0, fmt.Errorf("%w: branch exceeds %d blocks", ErrReorgTooDeep, config.MaxReorgDepth)
		}

		if height == 0 {
			// Reject reorgs that would replace the genesis block.
			if !c.genesisHash.IsZero() && blk.Hash() != c.genesisHash {
				return nil, 0, ErrGenesisReorg
			}
			// The branch reaches back to genesis itself: reverse to ascending
			// order and report fork height 0.
			for i, j := 0, len(branch)-1; i < j; i, j = i+1, j-1 {
				branch[i], branch[j] = branch[j], branch[i]
			}
			return branch, 0, nil
		}

		parentHeight := height - 1
		mainBlock, err := c.blocks.GetBlockByHeight(parentHeight)
		if err == nil && mainBlock.Hash() == blk.Header.PrevBlock {
			for i, j := 0, len(branch)-1; i < j; i, j = i+1, j-1 {
				branch[i], branch[j] = branch[j], branch[i]
			}
			return branch, parentHeight, nil
		}
		hash = blk.Header.PrevBlock
	}
}

// rebuildReorg handles a reorg when undo data is missing for old-branch
// blocks. Instead of reverting individual blocks, it indexes the new branch
// by height, clears the entire UTXO set, and replays all blocks from genesis
// through the new tip. This is slower than undo-based reorg but always
// correct.
func (c *Chain) rebuildReorg(newBranch []*block.Block, forkHeight uint64) error {
	store, ok := c.utxos.(*utxo.Store)
	if !ok {
		return fmt.Errorf("rebuild reorg: UTXO set does not support ClearAll (not *utxo.Store)")
	}

	newTip := newBranch[len(newBranch)-1]
	newTipHash := newTip.Hash()
	newTipHeight := forkHeight + uint64(len(newBranch))

	// Index new branch blocks by height (overwrites old-branch height entries).
	for i, blk := range newBranch {
		if err := c.blocks.PutBlock(blk, forkHeight+1+uint64(i)); err != nil {
			return fmt.Errorf("rebuild reorg: index block at height %d: %w", forkHeight+1+uint64(i), err)
		}
	}

	if err := store.ClearAll(); err != nil {
		return fmt.Errorf("rebuild reorg: clear UTXOs: %w", err)
	}

	var supply uint64
	work := big.NewInt(0)
	for h := uint64(0); h <= newTipHeight; h++ {
		blk, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return fmt.Errorf("rebuild reorg: load block at height %d: %w", h, err)
		}

		if h > forkHeight {
			if err := c.validator.ValidateBlock(blk); err != nil {
				return fmt.Errorf("rebuild reorg: validate block at height %d: %w", h, err)
			}
			if err := c.verifyDifficulty(blk, h); err != nil {
				return fmt.Errorf("rebuild reorg: difficulty check at height %d: %w", h, err)
			}
			if err := c.validateBlockState(blk, h); err != nil {
				return fmt.Errorf("rebuild reorg: state validation at height %d: %w", h, err)
			}
		}

		blockReward := c.computeBlockReward(blk)

		diff, err := utxo.Apply(c.utxos, blk, h)
		if err != nil {
			return fmt.Errorf("rebuild reorg: apply block at height %d: %w", h, err)
		}
		undo := newUndoData(blk, diff, blockReward)
		undoBytes := undo.encode()
		if err := c.blocks.PutUndo(blk.Hash(), undoBytes); err != nil {
			return fmt.Errorf("rebuild reorg: store undo at height %d: %w", h, err)
		}

		if c.maxSupply > 0 && supply+blockReward > c.maxSupply {
			blockReward = c.maxSupply - supply
		}
		supply += blockReward
		work.Add(work, block.Work(blk.Header.Bits))
	}

	c.state.TipHash = newTipHash
	c.state.Height = newTipHeight
	c.state.TipTimestamp = newTip.Header.Timestamp
	c.state.TipBits = newTip.Header.Bits
	c.state.Supply = supply
	c.state.ChainWork = work

	if err := c.blocks.SetTip(newTipHash, newTipHeight, supply); err != nil {
		return fmt.Errorf("rebuild reorg: set tip: %w", err)
	}
	if err := c.blocks.SetChainWork(work); err != nil {
		return fmt.Errorf("rebuild reorg: set chain work: %w", err)
	}

	if err := c.blocks.DeleteReorgCheckpoint(); err != nil {
		return fmt.Errorf("rebuild reorg: delete checkpoint: %w", err)
	}

	return nil
}
