package block

import (
	"errors"
	"fmt"
	"time"

	"github.com/INT-devs/intcoin-sub001/config"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// Stateless validation errors (spec.md §3 block invariants, checkable
// without chain context).
var (
	ErrNilHeader           = errors.New("block has nil header")
	ErrNoTransactions      = errors.New("block has no transactions")
	ErrBadMerkleRoot       = errors.New("merkle root mismatch")
	ErrBadVersion          = errors.New("unsupported block version")
	ErrZeroTimestamp       = errors.New("block timestamp is zero")
	ErrTimestampDrift      = errors.New("block timestamp too far in the future")
	ErrNoCoinbase          = errors.New("first transaction must be coinbase")
	ErrTooManyTxs          = errors.New("too many transactions in block")
	ErrBlockTooLarge       = errors.New("block too large")
	ErrDuplicateBlockInput = errors.New("duplicate input across transactions in block")
	ErrMultipleCoinbase    = errors.New("multiple coinbase transactions in block")
	ErrPowInsufficient     = errors.New("block hash does not satisfy its declared target")
	ErrBadBits             = errors.New("bits field decodes to an out-of-range target")
)

// Block version constants.
const (
	CurrentVersion = 1 // The current block version produced by this software.
	MaxVersion     = 1 // Bump when a fork introduces a new block version.
)

// MaxTimestampDrift bounds how far into the future a block's timestamp may
// sit relative to the validating node's clock.
const MaxTimestampDrift = 2 * time.Hour

// Validate checks block structure and internal consistency: everything a
// node can confirm without consulting chain state or the UTXO set. Parent
// linkage, difficulty retargeting, coinbase maturity, and double-spends
// against history are all contextual checks performed elsewhere.
func (b *Block) Validate() error {
	if b.Header == nil {
		return ErrNilHeader
	}

	if b.Header.Version < 1 || b.Header.Version > MaxVersion {
		return fmt.Errorf("%w: got %d, want 1..%d", ErrBadVersion, b.Header.Version, MaxVersion)
	}

	if b.Header.Timestamp == 0 {
		return ErrZeroTimestamp
	}
	if time.Unix(int64(b.Header.Timestamp), 0).After(time.Now().Add(MaxTimestampDrift)) {
		return fmt.Errorf("%w: timestamp %d", ErrTimestampDrift, b.Header.Timestamp)
	}

	if len(b.Transactions) == 0 {
		return ErrNoTransactions
	}
	if len(b.Transactions) > config.MaxBlockTxs {
		return fmt.Errorf("%w: %d txs, max %d", ErrTooManyTxs, len(b.Transactions), config.MaxBlockTxs)
	}

	blockSize := len(b.Header.SigningBytes())
	for _, t := range b.Transactions {
		blockSize += len(t.SigningBytes())
	}
	if blockSize > config.MaxBlockSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrBlockTooLarge, blockSize, config.MaxBlockSize)
	}

	if !b.Transactions[0].IsCoinbase() {
		return ErrNoCoinbase
	}
	for i, t := range b.Transactions[1:] {
		if t.IsCoinbase() {
			return fmt.Errorf("tx %d: %w", i+1, ErrMultipleCoinbase)
		}
	}

	txHashes := make([]types.Hash, len(b.Transactions))
	for i, t := range b.Transactions {
		txHashes[i] = t.Hash()
	}
	expectedRoot := ComputeMerkleRoot(txHashes)
	if b.Header.MerkleRoot != expectedRoot {
		return fmt.Errorf("%w: header=%s computed=%s", ErrBadMerkleRoot, b.Header.MerkleRoot, expectedRoot)
	}

	for i, t := range b.Transactions {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tx %d: %w", i, err)
		}
	}

	allInputs := make(map[types.OutPoint]int) // outpoint -> tx index
	for i, t := range b.Transactions {
		for _, in := range t.Inputs {
			if in.Prev.IsCoinbaseSentinel() {
				continue
			}
			if prevTx, exists := allInputs[in.Prev]; exists {
				return fmt.Errorf("tx %d: %w: outpoint %s also spent in tx %d",
					i, ErrDuplicateBlockInput, in.Prev, prevTx)
			}
			allInputs[in.Prev] = i
		}
	}

	if err := b.verifyProofOfWork(); err != nil {
		return err
	}

	return nil
}

// verifyProofOfWork checks that the header's bits field decodes to a
// legitimate target and that the header hash satisfies it. Retargeting
// (whether bits is the CORRECT value for this chain position) is a
// contextual check performed by the consensus engine.
func (b *Block) verifyProofOfWork() error {
	target := TargetFromBits(b.Header.Bits)
	if target.Sign() <= 0 || target.Cmp(MaxTarget()) > 0 {
		return fmt.Errorf("%w: bits=%#x", ErrBadBits, b.Header.Bits)
	}
	if !CheckProofOfWork(b.Header.Hash(), b.Header.Bits) {
		return fmt.Errorf("%w: hash=%s bits=%#x", ErrPowInsufficient, b.Header.Hash(), b.Header.Bits)
	}
	return nil
}

// Hash returns the block header hash.
func (b *Block) Hash() types.Hash {
	if b.Header == nil {
		return types.Hash{}
	}
	return b.Header.Hash()
}
