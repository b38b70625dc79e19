package tx

import (
	"errors"
	"testing"

	"github.com/INT-devs/intcoin-sub001/pkg/crypto"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// multiInputTx builds a transaction with n inputs, all owned by the same
// key, spread across distinct outpoints so they produce distinct checks.
func multiInputTx(t *testing.T, key *crypto.PrivateKey, n int) *Transaction {
	t.Helper()
	b := NewBuilder()
	for i := 0; i < n; i++ {
		b.AddInput(types.OutPoint{TxHash: types.Hash{byte(i + 1)}, Index: uint32(i)})
	}
	b.AddOutput(1000, make([]byte, types.AddressSize), key.PublicKey())
	if err := b.Sign(key); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	return b.Build()
}

func TestVerifyBatch_Empty(t *testing.T) {
	if err := VerifyBatch(nil); err != nil {
		t.Errorf("VerifyBatch(nil) = %v, want nil", err)
	}
}

func TestVerifyBatch_AllValid(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	transaction := multiInputTx(t, key, 32)
	if err := transaction.VerifySignatures(); err != nil {
		t.Errorf("batch of valid signatures should verify: %v", err)
	}
}

func TestVerifyBatch_OneBad(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	transaction := multiInputTx(t, key, 32)
	transaction.Inputs[17].Signature[0] ^= 0xFF

	err = transaction.VerifySignatures()
	if !errors.Is(err, ErrInvalidSig) {
		t.Errorf("VerifySignatures with one corrupted input = %v, want ErrInvalidSig", err)
	}
}

func TestVerifyTransactionsBatch(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	txs := []*Transaction{
		multiInputTx(t, key, 4),
		multiInputTx(t, key, 4),
		multiInputTx(t, key, 4),
	}
	if err := VerifyTransactionsBatch(txs); err != nil {
		t.Errorf("VerifyTransactionsBatch with all-valid txs = %v, want nil", err)
	}

	txs[1].Inputs[2].Signature[0] ^= 0xFF
	if err := VerifyTransactionsBatch(txs); !errors.Is(err, ErrInvalidSig) {
		t.Errorf("VerifyTransactionsBatch with one corrupted tx = %v, want ErrInvalidSig", err)
	}
}

func TestVerifyTransactionsBatch_IgnoresCoinbase(t *testing.T) {
	coinbase := &Transaction{
		Version: 1,
		Inputs:  []Input{{Prev: types.OutPoint{Index: types.CoinbaseIndex}}},
		Outputs: []Output{{Value: 5000, ScriptPubKey: make([]byte, types.AddressSize)}},
	}
	if err := VerifyTransactionsBatch([]*Transaction{coinbase}); err != nil {
		t.Errorf("VerifyTransactionsBatch with only a coinbase tx = %v, want nil", err)
	}
}
