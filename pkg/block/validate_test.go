package block

import (
	"errors"
	"testing"
	"time"

	"github.com/INT-devs/intcoin-sub001/config"
	"github.com/INT-devs/intcoin-sub001/pkg/crypto"
	"github.com/INT-devs/intcoin-sub001/pkg/tx"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// easyBits is the easiest permitted target (same literal this package's
// MaxTarget() decodes), cheap enough that mining a real header in a test
// takes a fraction of a second.
const easyBits = 0x1f00ffff

// mineHeader increments Nonce until the header satisfies its declared
// target. Only safe to use with an easy target like easyBits.
func mineHeader(h *Header) {
	for !CheckProofOfWork(h.Hash(), h.Bits) {
		h.Nonce++
	}
}

func testCoinbase() *tx.Transaction {
	return &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{Prev: types.OutPoint{Index: types.CoinbaseIndex}}},
		Outputs: []tx.Output{{Value: 1000, ScriptPubKey: make([]byte, types.AddressSize)}},
	}
}

// validBlock creates a minimal valid, mined block.
func validBlock(t *testing.T) *Block {
	t.Helper()

	coinbase := testCoinbase()
	merkleRoot := ComputeMerkleRoot([]types.Hash{coinbase.Hash()})

	header := &Header{
		Version:    CurrentVersion,
		PrevBlock:  types.Hash{0xaa},
		MerkleRoot: merkleRoot,
		Timestamp:  1700000000,
		Bits:       easyBits,
	}
	mineHeader(header)

	return NewBlock(header, []*tx.Transaction{coinbase})
}

func TestBlock_Validate_Valid(t *testing.T) {
	blk := validBlock(t)
	if err := blk.Validate(); err != nil {
		t.Errorf("valid block should pass: %v", err)
	}
}

func TestBlock_Validate_NilHeader(t *testing.T) {
	blk := &Block{Header: nil}
	err := blk.Validate()
	if !errors.Is(err, ErrNilHeader) {
		t.Errorf("expected ErrNilHeader, got: %v", err)
	}
}

func TestBlock_Validate_BadVersion(t *testing.T) {
	blk := validBlock(t)
	blk.Header.Version = 99
	err := blk.Validate()
	if !errors.Is(err, ErrBadVersion) {
		t.Errorf("expected ErrBadVersion, got: %v", err)
	}
}

func TestBlock_Validate_VersionZero(t *testing.T) {
	blk := validBlock(t)
	blk.Header.Version = 0
	err := blk.Validate()
	if !errors.Is(err, ErrBadVersion) {
		t.Errorf("expected ErrBadVersion for version 0, got: %v", err)
	}
}

func TestBlock_Validate_ZeroTimestamp(t *testing.T) {
	blk := validBlock(t)
	blk.Header.Timestamp = 0
	err := blk.Validate()
	if !errors.Is(err, ErrZeroTimestamp) {
		t.Errorf("expected ErrZeroTimestamp, got: %v", err)
	}
}

func TestBlock_Validate_TimestampTooFarFuture(t *testing.T) {
	blk := validBlock(t)
	blk.Header.Timestamp = uint64(time.Now().Add(MaxTimestampDrift).Unix()) + 3600
	err := blk.Validate()
	if !errors.Is(err, ErrTimestampDrift) {
		t.Errorf("expected ErrTimestampDrift, got: %v", err)
	}
}

func TestBlock_Validate_NoTransactions(t *testing.T) {
	blk := &Block{
		Header: &Header{
			Version:   CurrentVersion,
			Timestamp: 1700000000,
		},
		Transactions: nil,
	}
	err := blk.Validate()
	if !errors.Is(err, ErrNoTransactions) {
		t.Errorf("expected ErrNoTransactions, got: %v", err)
	}
}

func TestBlock_Validate_TooManyTxs(t *testing.T) {
	// The tx-count check runs before structural validation of any tx, so
	// placeholder transactions are enough to exercise it.
	txs := make([]*tx.Transaction, config.MaxBlockTxs+1)
	for i := range txs {
		txs[i] = &tx.Transaction{}
	}
	blk := &Block{
		Header: &Header{
			Version:   CurrentVersion,
			Timestamp: 1700000000,
		},
		Transactions: txs,
	}
	err := blk.Validate()
	if !errors.Is(err, ErrTooManyTxs) {
		t.Errorf("expected ErrTooManyTxs, got: %v", err)
	}
}

func TestBlock_Validate_BlockTooLarge(t *testing.T) {
	// A single coinbase carrying an oversized script_pubkey pushes total
	// block size over the limit before any per-tx structural check runs.
	coinbase := &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{Prev: types.OutPoint{Index: types.CoinbaseIndex}}},
		Outputs: []tx.Output{{Value: 1000, ScriptPubKey: make([]byte, config.MaxBlockSize)}},
	}
	blk := &Block{
		Header: &Header{
			Version:   CurrentVersion,
			Timestamp: 1700000000,
		},
		Transactions: []*tx.Transaction{coinbase},
	}
	err := blk.Validate()
	if !errors.Is(err, ErrBlockTooLarge) {
		t.Errorf("expected ErrBlockTooLarge, got: %v", err)
	}
}

func TestBlock_Validate_NoCoinbase(t *testing.T) {
	key, _ := crypto.GenerateKey()
	b := tx.NewBuilder().
		AddInput(types.OutPoint{TxHash: types.Hash{0x01}, Index: 0}).
		AddOutput(1000, make([]byte, types.AddressSize), key.PublicKey())
	b.Sign(key)
	transaction := b.Build()

	blk := &Block{
		Header: &Header{
			Version:   CurrentVersion,
			Timestamp: 1700000000,
		},
		Transactions: []*tx.Transaction{transaction},
	}
	err := blk.Validate()
	if !errors.Is(err, ErrNoCoinbase) {
		t.Errorf("expected ErrNoCoinbase, got: %v", err)
	}
}

func TestBlock_Validate_MultipleCoinbase(t *testing.T) {
	coinbase1 := testCoinbase()
	coinbase2 := testCoinbase()

	blk := &Block{
		Header: &Header{
			Version:   CurrentVersion,
			Timestamp: 1700000000,
		},
		Transactions: []*tx.Transaction{coinbase1, coinbase2},
	}
	err := blk.Validate()
	if !errors.Is(err, ErrMultipleCoinbase) {
		t.Errorf("expected ErrMultipleCoinbase, got: %v", err)
	}
}

func TestBlock_Validate_BadMerkleRoot(t *testing.T) {
	blk := validBlock(t)
	blk.Header.MerkleRoot = types.Hash{0xde, 0xad} // wrong root
	err := blk.Validate()
	if !errors.Is(err, ErrBadMerkleRoot) {
		t.Errorf("expected ErrBadMerkleRoot, got: %v", err)
	}
}

func TestBlock_Validate_DuplicateBlockInput(t *testing.T) {
	coinbase := testCoinbase()
	shared := types.OutPoint{TxHash: types.Hash{0x01}, Index: 0}

	tx1 := &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{Prev: shared, Signature: []byte("s"), PubKey: []byte("k")}},
		Outputs: []tx.Output{{Value: 1000, ScriptPubKey: make([]byte, types.AddressSize)}},
	}
	tx2 := &tx.Transaction{
		Version: 1,
		Inputs:  []tx.Input{{Prev: shared, Signature: []byte("s"), PubKey: []byte("k")}},
		Outputs: []tx.Output{{Value: 2000, ScriptPubKey: make([]byte, types.AddressSize)}},
	}

	txs := []*tx.Transaction{coinbase, tx1, tx2}
	hashes := make([]types.Hash, len(txs))
	for i, t := range txs {
		hashes[i] = t.Hash()
	}

	blk := &Block{
		Header: &Header{
			Version:    CurrentVersion,
			MerkleRoot: ComputeMerkleRoot(hashes),
			Timestamp:  1700000000,
		},
		Transactions: txs,
	}
	err := blk.Validate()
	if !errors.Is(err, ErrDuplicateBlockInput) {
		t.Errorf("expected ErrDuplicateBlockInput, got: %v", err)
	}
}

func TestBlock_Validate_BadBits(t *testing.T) {
	blk := validBlock(t)
	blk.Header.Bits = 0x01800000 // sign bit set: decodes to a non-positive target
	err := blk.Validate()
	if !errors.Is(err, ErrBadBits) {
		t.Errorf("expected ErrBadBits, got: %v", err)
	}
}

func TestBlock_Validate_PowInsufficient(t *testing.T) {
	blk := validBlock(t)
	blk.Header.Bits = 0x03000001 // target = 1: satisfying this by chance is negligible
	err := blk.Validate()
	if !errors.Is(err, ErrPowInsufficient) {
		t.Errorf("expected ErrPowInsufficient, got: %v", err)
	}
}

func TestHeader_Hash_Deterministic(t *testing.T) {
	h := &Header{
		Version:   1,
		PrevBlock: types.Hash{0x01},
		Timestamp: 1700000000,
		Bits:      easyBits,
	}

	h1 := h.Hash()
	h2 := h.Hash()
	if h1 != h2 {
		t.Error("Header.Hash() should be deterministic")
	}
	if h1.IsZero() {
		t.Error("Header.Hash() should not be zero")
	}
}

func TestHeader_Hash_ChangesWithNonce(t *testing.T) {
	h := &Header{
		Version:   1,
		PrevBlock: types.Hash{0x01},
		Timestamp: 1700000000,
		Bits:      easyBits,
	}
	h1 := h.Hash()
	h.Nonce++
	h2 := h.Hash()
	if h1 == h2 {
		t.Error("Header.Hash() should change when Nonce changes")
	}
}

func TestBlock_Hash(t *testing.T) {
	blk := validBlock(t)
	h := blk.Hash()
	if h.IsZero() {
		t.Error("Block.Hash() should not be zero")
	}

	blk2 := &Block{}
	if !blk2.Hash().IsZero() {
		t.Error("Block.Hash() with nil header should be zero")
	}
}
