package chain

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/INT-devs/intcoin-sub001/config"
	"github.com/INT-devs/intcoin-sub001/internal/utxo"
	"github.com/INT-devs/intcoin-sub001/pkg/block"
	"github.com/INT-devs/intcoin-sub001/pkg/tx"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// Block processing errors.
var (
	ErrBlockKnown             = errors.New("block already known")
	ErrPrevNotFound           = errors.New("previous block not found")
	ErrBadPrevHash            = errors.New("prev_block does not match current tip")
	ErrApplyUTXO              = errors.New("failed to apply UTXO changes")
	ErrCoinbaseNotMature      = errors.New("coinbase output not mature")
	ErrTimestampTooFuture     = errors.New("block timestamp too far in the future")
	ErrTimestampBeforeParent  = errors.New("block timestamp before parent")
	ErrBadCoinbaseTx          = errors.New("invalid coinbase transaction")
	ErrCoinbaseRewardExceeded = errors.New("coinbase reward exceeds consensus limit")
)

// ProcessBlock validates a block and applies it to the chain.
// It checks structural validity, consensus rules, UTXO state, then
// updates the UTXO set, block store, and chain tip.
// If the block extends a fork that accumulates more proof-of-work than the
// current chain, a reorg is triggered automatically.
func (c *Chain) ProcessBlock(blk *block.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if blk == nil || blk.Header == nil {
		return fmt.Errorf("nil block or header")
	}

	hash := blk.Hash()

	// Reject duplicates.
	known, err := c.blocks.HasBlock(hash)
	if err != nil {
		return fmt.Errorf("check block: %w", err)
	}
	if known {
		return ErrBlockKnown
	}

	// Check parent linkage first — we need the correct height before
	// verifying difficulty and running consensus validation.
	height, fork, err := c.checkParentLink(blk)
	if err != nil {
		return err
	}

	// Reject a block that disagrees with a pinned checkpoint at its height,
	// regardless of whether it extends the tip or forks from one.
	if err := c.verifyCheckpoint(height, hash); err != nil {
		return err
	}

	// Verify PoW difficulty matches expected (from chain history).
	// Only on the fast path — fork blocks are verified during reorg replay.
	if !fork {
		if err := c.verifyDifficulty(blk, height); err != nil {
			return err
		}
	}

	// Structural + consensus validation (VerifyHeader checks hash vs header.Bits).
	if err := c.validator.ValidateBlock(blk); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	// Block timestamp bounds: reject blocks too far in the future.
	maxTime := uint64(time.Now().Add(2 * time.Minute).Unix())
	if blk.Header.Timestamp > maxTime {
		return fmt.Errorf("%w: block timestamp %d exceeds max %d", ErrTimestampTooFuture, blk.Header.Timestamp, maxTime)
	}

	// Block timestamp must not be before its parent (monotonic).
	if height > 0 {
		parentBlk, err := c.blocks.GetBlock(blk.Header.PrevBlock)
		if err == nil && blk.Header.Timestamp < parentBlk.Header.Timestamp {
			return fmt.Errorf("%w: block timestamp %d < parent timestamp %d",
				ErrTimestampBeforeParent, blk.Header.Timestamp, parentBlk.Header.Timestamp)
		}
	}

	// Fork detected: store the block and decide whether to reorg.
	if fork {
		if err := c.blocks.StoreBlock(blk, height); err != nil {
			return fmt.Errorf("store fork block: %w", err)
		}

		// Every fork is a reorg candidate — Reorg itself compares
		// accumulated chain work to decide, since a shorter-but-harder
		// chain can still outweigh the current tip.
		if err := c.Reorg(hash); err != nil {
			return fmt.Errorf("reorg: %w", err)
		}
		// If the reorg didn't proceed, the block is stored but not active.
		return nil
	}

	// Fast path: block extends current tip.

	// Validate UTXO-dependent rules (signatures, fees, maturity).
	if err := c.validateBlockState(blk, height); err != nil {
		return err
	}

	// Compute block reward (new coins) before applying, while inputs are
	// still in the UTXO set. reward = coinbase_value - total_fees.
	blockReward := c.computeBlockReward(blk)

	// Apply UTXO changes and collect undo data.
	diff, err := utxo.Apply(c.utxos, blk, height)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrApplyUTXO, err)
	}
	undo := newUndoData(blk, diff, blockReward)

	// Persist the block.
	if err := c.blocks.PutBlock(blk, height); err != nil {
		return fmt.Errorf("store block: %w", err)
	}

	// Persist undo data.
	undoBytes := undo.encode()
	if err := c.blocks.PutUndo(hash, undoBytes); err != nil {
		return fmt.Errorf("store undo: %w", err)
	}

	// Cap block reward to respect max supply.
	if c.maxSupply > 0 && c.state.Supply+blockReward > c.maxSupply {
		blockReward = c.maxSupply - c.state.Supply
	}

	// Track newly minted coins (block reward only; fees are recycled) and
	// accumulated work.
	c.state.Supply += blockReward
	c.state.ChainWork = new(big.Int).Add(c.state.Work(), block.Work(blk.Header.Bits))

	// Update chain tip.
	c.state.TipHash = hash
	c.state.Height = height
	c.state.TipTimestamp = blk.Header.Timestamp
	c.state.TipBits = blk.Header.Bits
	if err := c.blocks.SetTip(hash, height, c.state.Supply); err != nil {
		return fmt.Errorf("set tip: %w", err)
	}
	if err := c.blocks.SetChainWork(c.state.ChainWork); err != nil {
		return fmt.Errorf("set chain work: %w", err)
	}

	return nil
}

// validateBlockState checks UTXO-dependent rules: transaction signatures,
// fee sanity, coinbase reward limits, and coinbase maturity. height is the
// position blk would occupy if accepted.
func (c *Chain) validateBlockState(blk *block.Block, height uint64) error {
	if len(blk.Transactions) == 0 {
		return ErrBadCoinbaseTx
	}
	coinbaseTx := blk.Transactions[0]

	// Coinbase must be a dedicated transaction: exactly one input carrying
	// the coinbase sentinel outpoint.
	if !coinbaseTx.IsCoinbase() {
		return ErrBadCoinbaseTx
	}

	// Verify every non-coinbase signature across the whole block in
	// parallel before the slower sequential pass below — a fast-fail
	// check, grounded in the same worker-pool shape the PoW engine uses
	// to search for a valid nonce in parallel.
	if err := tx.VerifyTransactionsBatch(blk.Transactions); err != nil {
		return fmt.Errorf("batch signature verification: %w", err)
	}

	// Full UTXO-aware transaction validation (skip coinbase):
	// ownership checks, input existence/unspent checks, signatures, and fee sanity.
	utxoProvider := &chainUTXOProvider{set: c.utxos}
	var totalFees uint64
	for i, transaction := range blk.Transactions {
		if i == 0 {
			continue // Coinbase.
		}
		fee, err := transaction.ValidateWithUTXOs(utxoProvider)
		if err != nil {
			return fmt.Errorf("tx %d validation: %w", i, err)
		}
		if totalFees > math.MaxUint64-fee {
			return fmt.Errorf("tx %d fee overflow", i)
		}
		totalFees += fee
	}

	// Enforce coinbase mint limit:
	// minted = coinbase_total - total_fees (fees are recycled, not newly minted).
	coinbaseTotal, err := coinbaseTx.TotalOutputValue()
	if err != nil {
		return fmt.Errorf("coinbase output overflow: %w", err)
	}
	var minted uint64
	if coinbaseTotal > totalFees {
		minted = coinbaseTotal - totalFees
	}
	allowedMint := c.blockReward
	if c.maxSupply > 0 {
		if c.state.Supply >= c.maxSupply {
			allowedMint = 0
		} else if remaining := c.maxSupply - c.state.Supply; allowedMint > remaining {
			allowedMint = remaining
		}
	}
	if minted > allowedMint {
		return fmt.Errorf("%w: minted=%d allowed=%d", ErrCoinbaseRewardExceeded, minted, allowedMint)
	}

	// Defensive rule: only transaction 0 may carry a coinbase marker input.
	for i, transaction := range blk.Transactions[1:] {
		if transaction.IsCoinbase() {
			return fmt.Errorf("%w: tx %d contains coinbase input", ErrBadCoinbaseTx, i+1)
		}
	}

	// Coinbase maturity: reject blocks that spend immature coinbase outputs.
	if err := c.checkCoinbaseMaturity(blk, height); err != nil {
		return err
	}

	return nil
}

// checkParentLink determines whether blk extends the current tip or forks
// from an earlier point, and returns the height it would occupy. Header
// carries no height field, so this is the only place block height is
// derived: from the chain's own position, or — for a fork — from the
// parent's recorded height.
func (c *Chain) checkParentLink(blk *block.Block) (height uint64, fork bool, err error) {
	if c.state.IsGenesis() {
		if !blk.Header.PrevBlock.IsZero() {
			return 0, false, fmt.Errorf("%w: genesis must have zero prev_block", ErrBadPrevHash)
		}
		return 0, false, nil
	}

	if blk.Header.PrevBlock == c.state.TipHash {
		return c.state.Height + 1, false, nil
	}

	// PrevBlock != tip. Check if the parent exists (fork) or is truly unknown.
	parentKnown, err := c.blocks.HasBlock(blk.Header.PrevBlock)
	if err != nil {
		return 0, false, fmt.Errorf("check parent: %w", err)
	}
	if !parentKnown {
		return 0, false, ErrPrevNotFound
	}

	parentHeight, err := c.blocks.GetBlockHeight(blk.Header.PrevBlock)
	if err != nil {
		return 0, false, fmt.Errorf("load parent height: %w", err)
	}
	return parentHeight + 1, true, nil
}

// computeBlockReward calculates the new coins minted in this block.
// Block reward = coinbase output value - total fees from non-coinbase txs.
// Must be called while inputs are still in the UTXO set (before applying).
func (c *Chain) computeBlockReward(blk *block.Block) uint64 {
	if len(blk.Transactions) == 0 || len(blk.Transactions[0].Outputs) == 0 {
		return 0
	}

	coinbaseValue, err := blk.Transactions[0].TotalOutputValue()
	if err != nil {
		return 0
	}

	var totalFees uint64
	for _, transaction := range blk.Transactions[1:] {
		totalFees += c.computeTxFee(transaction)
	}

	if coinbaseValue > totalFees {
		return coinbaseValue - totalFees
	}
	return 0
}

// computeTxFee calculates the fee for a single transaction.
// fee = sum(input values) - sum(output values).
// Must be called while inputs are still in the UTXO set (before applying).
func (c *Chain) computeTxFee(transaction *tx.Transaction) uint64 {
	var inputSum, outputSum uint64
	for _, in := range transaction.Inputs {
		if in.Prev.IsCoinbaseSentinel() {
			continue
		}
		u, err := c.utxos.Get(in.Prev)
		if err != nil {
			continue
		}
		if inputSum > math.MaxUint64-u.Value {
			continue // Overflow guard.
		}
		inputSum += u.Value
	}
	for _, out := range transaction.Outputs {
		if outputSum > math.MaxUint64-out.Value {
			continue // Overflow guard.
		}
		outputSum += out.Value
	}
	if inputSum > outputSum {
		return inputSum - outputSum
	}
	return 0
}

type chainUTXOProvider struct {
	set utxo.Set
}

func (p *chainUTXOProvider) GetUTXO(outpoint types.OutPoint) (tx.Output, error) {
	u, err := p.set.Get(outpoint)
	if err != nil {
		return tx.Output{}, err
	}
	return tx.Output{Value: u.Value, ScriptPubKey: u.ScriptPubKey, RecipientPubKey: u.RecipientPubKey}, nil
}

func (p *chainUTXOProvider) HasUTXO(outpoint types.OutPoint) bool {
	has, err := p.set.Has(outpoint)
	return err == nil && has
}

// checkCoinbaseMaturity verifies that no transaction in the block spends
// an immature coinbase output, for a block being accepted at height.
func (c *Chain) checkCoinbaseMaturity(blk *block.Block, height uint64) error {
	for _, transaction := range blk.Transactions {
		for _, in := range transaction.Inputs {
			if in.Prev.IsCoinbaseSentinel() {
				continue
			}
			u, err := c.utxos.Get(in.Prev)
			if err != nil {
				continue // Will be caught by UTXO validation.
			}
			if u.Coinbase && height-u.Height < uint64(config.CoinbaseMaturity) {
				return fmt.Errorf("%w: need %d confirmations, have %d",
					ErrCoinbaseNotMature, config.CoinbaseMaturity, height-u.Height)
			}
		}
	}
	return nil
}
