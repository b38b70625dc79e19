package chain

import (
	"errors"
	"testing"

	"github.com/INT-devs/intcoin-sub001/pkg/block"
	"github.com/INT-devs/intcoin-sub001/pkg/crypto"
	"github.com/INT-devs/intcoin-sub001/pkg/tx"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

func TestProcessBlock_RejectsForgedSpendInBlock(t *testing.T) {
	ch, _, _ := testChain(t)

	genesisBlock, err := ch.GetBlockByHeight(0)
	if err != nil {
		t.Fatalf("GetBlockByHeight(0): %v", err)
	}
	prevOut := types.OutPoint{TxHash: genesisBlock.Transactions[0].Hash(), Index: 0}

	attackerKey, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	attackerAddr := crypto.AddressFromPubKey(attackerKey.PublicKey())

	// Signs validly, but the script_pubkey is the attacker's address even
	// though the outpoint being spent belongs to the genesis allocation —
	// the signature is real but doesn't match the spent output's owner.
	spendBuilder := tx.NewBuilder().
		AddInput(prevOut).
		AddOutput(4000, attackerAddr.Bytes(), attackerKey.PublicKey())
	if err := spendBuilder.Sign(attackerKey); err != nil {
		t.Fatalf("Sign forged tx: %v", err)
	}
	forgedTx := spendBuilder.Build()

	blk := sealedBlock(t, ch, []*tx.Transaction{coinbaseTx(1000, attackerAddr), forgedTx})

	if err := ch.ProcessBlock(blk); !errors.Is(err, tx.ErrScriptMismatch) {
		t.Fatalf("expected script mismatch, got: %v", err)
	}
}

func TestProcessBlock_RejectsCoinbaseRewardAboveConfiguredSubsidy(t *testing.T) {
	ch, _, _ := testChain(t)

	// Exceeds the configured BlockReward (1000) in the test genesis.
	cb := coinbaseTx(5000, types.Address{})
	blk := sealedBlock(t, ch, []*tx.Transaction{cb})

	if err := ch.ProcessBlock(blk); !errors.Is(err, ErrCoinbaseRewardExceeded) {
		t.Fatalf("expected ErrCoinbaseRewardExceeded, got: %v", err)
	}
}

func TestProcessBlock_RejectsMalformedCoinbaseTx(t *testing.T) {
	ch, _, _ := testChain(t)

	// Transaction 0 with more than one input is not a valid coinbase.
	coinbase := &tx.Transaction{
		Version: 1,
		Inputs: []tx.Input{
			{Prev: types.OutPoint{Index: types.CoinbaseIndex}},
			{
				Prev:      types.OutPoint{TxHash: types.Hash{0x01}, Index: 0},
				Signature: []byte{0x01},
				PubKey:    []byte{0x02},
			},
		},
		Outputs: []tx.Output{{Value: 1000, ScriptPubKey: make([]byte, types.AddressSize)}},
	}
	blk := sealedBlock(t, ch, []*tx.Transaction{coinbase})

	if err := ch.ProcessBlock(blk); !errors.Is(err, block.ErrNoCoinbase) {
		t.Fatalf("expected block.ErrNoCoinbase, got: %v", err)
	}
}

func TestProcessBlock_RejectsForkBlockCitingUnknownParent(t *testing.T) {
	ch, key, _ := testChain(t)

	genesisBlock, _ := ch.GetBlockByHeight(0)
	prevOut := types.OutPoint{TxHash: genesisBlock.Transactions[0].Hash(), Index: 0}

	validBlock := buildSpendBlock(t, ch, key, prevOut, 4000)
	if err := ch.ProcessBlock(validBlock); err != nil {
		t.Fatalf("process valid block: %v", err)
	}

	// A block claiming a parent that was never stored must be rejected
	// before any height or PoW bookkeeping is attempted.
	cb := coinbaseTx(1000, types.Address{})
	merkle := block.ComputeMerkleRoot([]types.Hash{cb.Hash()})
	header := &block.Header{
		Version:    block.CurrentVersion,
		PrevBlock:  types.Hash{0xde, 0xad, 0xbe, 0xef},
		MerkleRoot: merkle,
		Timestamp:  1700000008,
		Bits:       easyBits,
	}
	blk := block.NewBlock(header, []*tx.Transaction{cb})

	if err := ch.ProcessBlock(blk); !errors.Is(err, ErrPrevNotFound) {
		t.Fatalf("expected ErrPrevNotFound, got: %v", err)
	}
}
