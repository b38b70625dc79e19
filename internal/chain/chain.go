// Package chain implements the blockchain state machine: block acceptance,
// UTXO-set maintenance, and reorg handling on top of a proof-of-work
// consensus engine.
package chain

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/INT-devs/intcoin-sub001/config"
	"github.com/INT-devs/intcoin-sub001/internal/consensus"
	"github.com/INT-devs/intcoin-sub001/internal/storage"
	"github.com/INT-devs/intcoin-sub001/internal/utxo"
	"github.com/INT-devs/intcoin-sub001/pkg/block"
	"github.com/INT-devs/intcoin-sub001/pkg/tx"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// RevertedTxHandler is called after a reorg with transactions from reverted
// blocks that are not present in the new branch, so a mempool can reconsider
// re-admitting them.
type RevertedTxHandler func(txs []*tx.Transaction)

// Chain represents a blockchain instance with state, storage, and consensus.
type Chain struct {
	mu        sync.Mutex // Protects all state mutations (ProcessBlock, Reorg).
	ID        string
	state     *State
	blocks    *BlockStore
	utxos     utxo.Set
	engine    consensus.Engine
	validator *consensus.Validator

	maxSupply   uint64     // Max coin supply (0 = unlimited).
	blockReward uint64     // Base block subsidy in base units.
	genesisHash types.Hash // Hash of the genesis block (immutable).

	revertedTxHandler RevertedTxHandler
}

// New creates a new chain with the given components.
func New(id string, db storage.DB, utxoSet utxo.Set, engine consensus.Engine) (*Chain, error) {
	if db == nil {
		return nil, fmt.Errorf("storage db is nil")
	}
	if utxoSet == nil {
		return nil, fmt.Errorf("utxo set is nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("consensus engine is nil")
	}

	blocks := NewBlockStore(db)

	// Recover state from the block store.
	tipHash, height, supply, err := blocks.GetTip()
	if err != nil {
		return nil, fmt.Errorf("recover tip: %w", err)
	}

	chainWork := blocks.GetChainWork()

	var tipBits uint32
	var tipTimestamp uint64
	if !tipHash.IsZero() {
		if tipBlk, err := blocks.GetBlock(tipHash); err == nil {
			tipBits = tipBlk.Header.Bits
			tipTimestamp = tipBlk.Header.Timestamp
		}
	}

	// Recover genesis hash for reorg protection.
	var genesisHash types.Hash
	genBlk, err := blocks.GetBlockByHeight(0)
	if err == nil {
		genesisHash = genBlk.Hash()
	}

	ch := &Chain{
		ID: id,
		state: &State{
			TipHash:      tipHash,
			Height:       height,
			Supply:       supply,
			ChainWork:    chainWork,
			TipBits:      tipBits,
			TipTimestamp: tipTimestamp,
		},
		blocks:      blocks,
		utxos:       utxoSet,
		engine:      engine,
		validator:   consensus.NewValidator(engine),
		genesisHash: genesisHash,
	}

	// Check for incomplete reorg — if the node crashed mid-reorg, the UTXO
	// set may be inconsistent. Rebuild from blocks.
	if _, found := blocks.GetReorgCheckpoint(); found {
		if err := ch.RebuildUTXOs(); err != nil {
			return nil, fmt.Errorf("recover from interrupted reorg: %w", err)
		}
	}

	return ch, nil
}

// InitFromGenesis initializes a fresh chain from genesis configuration.
// Returns an error if the chain already has blocks.
func (c *Chain) InitFromGenesis(gen *config.Genesis) error {
	if !c.state.IsGenesis() {
		return fmt.Errorf("chain already initialized at height %d", c.state.Height)
	}

	blk, err := CreateGenesisBlock(gen)
	if err != nil {
		return fmt.Errorf("create genesis: %w", err)
	}

	// Genesis block bypasses consensus validation (no PoW puzzle required of
	// a launch block). Apply directly: spend nothing, create allocations,
	// store at height 0, set tip.
	if _, err := utxo.Apply(c.utxos, blk, 0); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	if err := c.blocks.PutBlock(blk, 0); err != nil {
		return fmt.Errorf("store genesis: %w", err)
	}

	var supply uint64
	for _, v := range gen.Alloc {
		supply += v
	}

	hash := blk.Hash()
	c.state.TipHash = hash
	c.state.Height = 0
	c.state.Supply = supply
	c.state.TipTimestamp = blk.Header.Timestamp
	c.state.TipBits = blk.Header.Bits
	c.state.ChainWork = block.Work(blk.Header.Bits)
	c.genesisHash = hash

	c.maxSupply = gen.Protocol.Consensus.MaxSupply
	c.blockReward = gen.Protocol.Consensus.BlockReward

	if err := c.blocks.SetTip(hash, 0, supply); err != nil {
		return fmt.Errorf("set genesis tip: %w", err)
	}
	if err := c.blocks.SetChainWork(c.state.ChainWork); err != nil {
		return fmt.Errorf("set genesis chain work: %w", err)
	}

	return nil
}

// SetConsensusRules configures consensus economic limits for runtime validation.
// Call this on startup for both fresh and resumed chains.
func (c *Chain) SetConsensusRules(r config.ConsensusRules) {
	c.maxSupply = r.MaxSupply
	c.blockReward = r.BlockReward
}

// State returns a copy of the current chain state.
func (c *Chain) State() State {
	return *c.state
}

// GetBlock retrieves a block by its hash.
func (c *Chain) GetBlock(hash types.Hash) (*block.Block, error) {
	return c.blocks.GetBlock(hash)
}

// GetBlockByHeight retrieves a block by its height.
func (c *Chain) GetBlockByHeight(height uint64) (*block.Block, error) {
	return c.blocks.GetBlockByHeight(height)
}

// Height returns the current chain height.
func (c *Chain) Height() uint64 {
	return c.state.Height
}

// TipHash returns the hash of the current chain tip.
func (c *Chain) TipHash() types.Hash {
	return c.state.TipHash
}

// Supply returns the total coins in circulation.
func (c *Chain) Supply() uint64 {
	return c.state.Supply
}

// TipTimestamp returns the timestamp of the current chain tip.
func (c *Chain) TipTimestamp() uint64 {
	return c.state.TipTimestamp
}

// SetRevertedTxHandler sets the callback for transactions reverted during a
// reorg. These transactions should be re-added to the mempool if they are
// still valid.
func (c *Chain) SetRevertedTxHandler(fn RevertedTxHandler) {
	c.revertedTxHandler = fn
}

// getBlockTimestamp returns the timestamp of a block at the given height.
// Used for PoW difficulty verification.
func (c *Chain) getBlockTimestamp(height uint64) (uint64, error) {
	blk, err := c.blocks.GetBlockByHeight(height)
	if err != nil {
		return 0, err
	}
	return blk.Header.Timestamp, nil
}

// verifyDifficulty checks that a PoW block's stated bits match the expected
// value computed from chain history, for a block being accepted at height.
func (c *Chain) verifyDifficulty(blk *block.Block, height uint64) error {
	pow, ok := c.engine.(*consensus.PoW)
	if !ok {
		return nil // Engine doesn't retarget — nothing to verify.
	}

	var prevBits uint32
	if height > 1 {
		prevBlk, err := c.blocks.GetBlockByHeight(height - 1)
		if err != nil {
			return fmt.Errorf("get prev block for difficulty: %w", err)
		}
		prevBits = prevBlk.Header.Bits
	}

	return pow.VerifyDifficulty(blk.Header, height, prevBits, c.getBlockTimestamp)
}

// verifyCheckpoint rejects a block whose hash disagrees with a pinned
// checkpoint at height. Engines that don't carry a checkpoint table (or
// have none pinned) always pass.
func (c *Chain) verifyCheckpoint(height uint64, hash types.Hash) error {
	pow, ok := c.engine.(*consensus.PoW)
	if !ok {
		return nil
	}
	return pow.VerifyCheckpoint(height, hash)
}

// checkpointCrossed reports whether reverting blocks from oldHeight down to
// forkHeight would disconnect a block pinned at a checkpoint.
func (c *Chain) checkpointCrossed(forkHeight, oldHeight uint64) bool {
	pow, ok := c.engine.(*consensus.PoW)
	if !ok {
		return false
	}
	return pow.CheckpointCrossed(forkHeight, oldHeight)
}

// RebuildUTXOs clears the UTXO set and replays all blocks from genesis to the
// current tip, reconstructing the UTXO state. Used to recover from a crash
// during reorg where the UTXO set may be inconsistent.
func (c *Chain) RebuildUTXOs() error {
	store, ok := c.utxos.(*utxo.Store)
	if !ok {
		return fmt.Errorf("UTXO set does not support ClearAll (not *utxo.Store)")
	}

	if err := store.ClearAll(); err != nil {
		return fmt.Errorf("clear utxo set: %w", err)
	}

	var supply uint64
	work := big.NewInt(0)
	for h := uint64(0); h <= c.state.Height; h++ {
		blk, err := c.blocks.GetBlockByHeight(h)
		if err != nil {
			return fmt.Errorf("load block at height %d: %w", h, err)
		}

		// Compute the reward before applying: computeBlockReward needs the
		// UTXO set to still contain this block's own inputs.
		reward := c.computeBlockReward(blk)

		if _, err := utxo.Apply(c.utxos, blk, h); err != nil {
			return fmt.Errorf("replay block at height %d: %w", h, err)
		}

		supply += reward
		work.Add(work, block.Work(blk.Header.Bits))
	}

	c.state.Supply = supply
	c.state.ChainWork = work

	if err := c.blocks.SetTip(c.state.TipHash, c.state.Height, supply); err != nil {
		return fmt.Errorf("set tip after rebuild: %w", err)
	}
	if err := c.blocks.SetChainWork(work); err != nil {
		return fmt.Errorf("set chain work after rebuild: %w", err)
	}

	// Clear the checkpoint — recovery complete.
	if err := c.blocks.DeleteReorgCheckpoint(); err != nil {
		return fmt.Errorf("delete reorg checkpoint: %w", err)
	}

	return nil
}

// GetTransaction looks up a confirmed transaction by hash via the tx index.
func (c *Chain) GetTransaction(hash types.Hash) (*tx.Transaction, error) {
	_, blockHash, err := c.blocks.GetTxLocation(hash)
	if err != nil {
		return nil, err
	}
	blk, err := c.blocks.GetBlock(blockHash)
	if err != nil {
		return nil, fmt.Errorf("load block for tx: %w", err)
	}
	for _, t := range blk.Transactions {
		if t.Hash() == hash {
			return t, nil
		}
	}
	return nil, fmt.Errorf("tx %s not found in block %s (index corrupt)", hash, blockHash)
}
