package tx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/INT-devs/intcoin-sub001/pkg/crypto"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// mockUTXOProvider is a simple in-memory UTXO provider for testing.
type mockUTXOProvider struct {
	utxos map[types.OutPoint]Output
}

func newMockProvider() *mockUTXOProvider {
	return &mockUTXOProvider{utxos: make(map[types.OutPoint]Output)}
}

func (m *mockUTXOProvider) add(op types.OutPoint, value uint64, scriptPubKey []byte) {
	m.utxos[op] = Output{Value: value, ScriptPubKey: scriptPubKey}
}

func (m *mockUTXOProvider) GetUTXO(op types.OutPoint) (Output, error) {
	u, ok := m.utxos[op]
	if !ok {
		return Output{}, fmt.Errorf("not found")
	}
	return u, nil
}

func (m *mockUTXOProvider) HasUTXO(op types.OutPoint) bool {
	_, ok := m.utxos[op]
	return ok
}

func TestValidateWithUTXOs_Valid(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.AddressFromPubKey(key.PublicKey())

	prevOut := types.OutPoint{TxHash: types.Hash{0x01}, Index: 0}
	provider := newMockProvider()
	provider.add(prevOut, 5000, addr.Bytes())

	b := NewBuilder().
		AddInput(prevOut).
		AddOutput(4000, make([]byte, types.AddressSize), key.PublicKey())
	b.Sign(key)
	transaction := b.Build()

	fee, err := transaction.ValidateWithUTXOs(provider)
	if err != nil {
		t.Fatalf("ValidateWithUTXOs: %v", err)
	}
	if fee != 1000 {
		t.Errorf("fee = %d, want 1000", fee)
	}
}

func TestValidateWithUTXOs_ZeroFee(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.AddressFromPubKey(key.PublicKey())

	prevOut := types.OutPoint{TxHash: types.Hash{0x01}, Index: 0}
	provider := newMockProvider()
	provider.add(prevOut, 3000, addr.Bytes())

	b := NewBuilder().
		AddInput(prevOut).
		AddOutput(3000, make([]byte, types.AddressSize), key.PublicKey())
	b.Sign(key)
	transaction := b.Build()

	fee, err := transaction.ValidateWithUTXOs(provider)
	if err != nil {
		t.Fatalf("ValidateWithUTXOs: %v", err)
	}
	if fee != 0 {
		t.Errorf("fee = %d, want 0", fee)
	}
}

func TestValidateWithUTXOs_InputNotFound(t *testing.T) {
	key, _ := crypto.GenerateKey()

	prevOut := types.OutPoint{TxHash: types.Hash{0x01}, Index: 0}
	provider := newMockProvider() // Empty — no UTXOs.

	b := NewBuilder().
		AddInput(prevOut).
		AddOutput(1000, make([]byte, types.AddressSize), key.PublicKey())
	b.Sign(key)
	transaction := b.Build()

	_, err := transaction.ValidateWithUTXOs(provider)
	if !errors.Is(err, ErrInputNotFound) {
		t.Errorf("expected ErrInputNotFound, got: %v", err)
	}
}

func TestValidateWithUTXOs_InsufficientFunds(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.AddressFromPubKey(key.PublicKey())

	prevOut := types.OutPoint{TxHash: types.Hash{0x01}, Index: 0}
	provider := newMockProvider()
	provider.add(prevOut, 1000, addr.Bytes())

	b := NewBuilder().
		AddInput(prevOut).
		AddOutput(2000, make([]byte, types.AddressSize), key.PublicKey())
	b.Sign(key)
	transaction := b.Build()

	_, err := transaction.ValidateWithUTXOs(provider)
	if !errors.Is(err, ErrInsufficientFee) {
		t.Errorf("expected ErrInsufficientFee, got: %v", err)
	}
}

func TestValidateWithUTXOs_ScriptMismatch(t *testing.T) {
	key, _ := crypto.GenerateKey()
	// Use a different address than what the key derives.
	wrongAddr := make([]byte, types.AddressSize)
	wrongAddr[0] = 0xff

	prevOut := types.OutPoint{TxHash: types.Hash{0x01}, Index: 0}
	provider := newMockProvider()
	provider.add(prevOut, 5000, wrongAddr)

	b := NewBuilder().
		AddInput(prevOut).
		AddOutput(4000, make([]byte, types.AddressSize), key.PublicKey())
	b.Sign(key)
	transaction := b.Build()

	_, err := transaction.ValidateWithUTXOs(provider)
	if !errors.Is(err, ErrScriptMismatch) {
		t.Errorf("expected ErrScriptMismatch, got: %v", err)
	}
}

func TestValidateWithUTXOs_MultipleInputs(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.AddressFromPubKey(key.PublicKey())

	prevOut1 := types.OutPoint{TxHash: types.Hash{0x01}, Index: 0}
	prevOut2 := types.OutPoint{TxHash: types.Hash{0x02}, Index: 0}
	provider := newMockProvider()
	provider.add(prevOut1, 3000, addr.Bytes())
	provider.add(prevOut2, 2000, addr.Bytes())

	b := NewBuilder().
		AddInput(prevOut1).
		AddInput(prevOut2).
		AddOutput(4500, make([]byte, types.AddressSize), key.PublicKey())
	b.Sign(key)
	transaction := b.Build()

	fee, err := transaction.ValidateWithUTXOs(provider)
	if err != nil {
		t.Fatalf("ValidateWithUTXOs: %v", err)
	}
	if fee != 500 {
		t.Errorf("fee = %d, want 500", fee)
	}
}

func TestValidateWithUTXOs_InvalidSignature(t *testing.T) {
	key1, _ := crypto.GenerateKey()
	key2, _ := crypto.GenerateKey()
	addr2 := crypto.AddressFromPubKey(key2.PublicKey())

	prevOut := types.OutPoint{TxHash: types.Hash{0x01}, Index: 0}
	provider := newMockProvider()
	// UTXO is locked to key2's address...
	provider.add(prevOut, 5000, addr2.Bytes())

	// ...but signed with key1. The spending predicate catches the mismatch.
	b := NewBuilder().
		AddInput(prevOut).
		AddOutput(4000, make([]byte, types.AddressSize), key1.PublicKey())
	b.Sign(key1)
	transaction := b.Build()

	_, err := transaction.ValidateWithUTXOs(provider)
	if !errors.Is(err, ErrScriptMismatch) {
		t.Errorf("expected ErrScriptMismatch, got: %v", err)
	}
}

func TestValidateWithUTXOs_StructuralFailure(t *testing.T) {
	// Transaction with no inputs should fail structural validation.
	transaction := &Transaction{
		Version: 1,
		Outputs: []Output{{Value: 1000, ScriptPubKey: make([]byte, types.AddressSize)}},
	}
	provider := newMockProvider()

	_, err := transaction.ValidateWithUTXOs(provider)
	if !errors.Is(err, ErrNoInputs) {
		t.Errorf("expected ErrNoInputs, got: %v", err)
	}
}

func TestVerifySpendingPredicate(t *testing.T) {
	key, _ := crypto.GenerateKey()
	addr := crypto.AddressFromPubKey(key.PublicKey())

	// Valid: pubkey matches address.
	err := verifySpendingPredicate(key.PublicKey(), addr[:])
	if err != nil {
		t.Errorf("valid predicate should pass: %v", err)
	}

	// Mismatch: wrong pubkey.
	key2, _ := crypto.GenerateKey()
	err = verifySpendingPredicate(key2.PublicKey(), addr[:])
	if !errors.Is(err, ErrScriptMismatch) {
		t.Errorf("expected ErrScriptMismatch for wrong pubkey, got: %v", err)
	}

	// Empty pubkey.
	err = verifySpendingPredicate(nil, addr[:])
	if !errors.Is(err, ErrMissingPubKey) {
		t.Errorf("expected ErrMissingPubKey, got: %v", err)
	}

	// Wrong script_pubkey length.
	err = verifySpendingPredicate(key.PublicKey(), []byte{0x01, 0x02})
	if !errors.Is(err, ErrScriptMismatch) {
		t.Errorf("expected ErrScriptMismatch for wrong length, got: %v", err)
	}
}
