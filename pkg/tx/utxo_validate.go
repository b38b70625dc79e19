package tx

import (
	"errors"
	"fmt"

	"github.com/INT-devs/intcoin-sub001/pkg/crypto"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// UTXO-aware validation errors.
var (
	ErrInputNotFound   = errors.New("input UTXO not found")
	ErrInsufficientFee = errors.New("insufficient fee: outputs exceed inputs")
	ErrInputOverflow   = errors.New("input values overflow")
	ErrScriptMismatch  = errors.New("recipient public key does not hash to the output's script_pubkey")
)

// UTXOProvider provides read-only access to the UTXO set for validation.
type UTXOProvider interface {
	GetUTXO(outpoint types.OutPoint) (Output, error)
	HasUTXO(outpoint types.OutPoint) bool
}

// ValidateWithUTXOs performs full validation of a transaction against the
// UTXO set: every spent input must exist, the spender's public key must
// satisfy the opaque spending predicate recorded in the referenced output,
// signatures must verify, and total input value must cover total output
// value. Returns the fee (inputs - outputs).
func (tx *Transaction) ValidateWithUTXOs(provider UTXOProvider) (uint64, error) {
	if err := tx.ValidateStructure(); err != nil {
		return 0, err
	}

	var totalInput uint64
	for i, in := range tx.Inputs {
		if in.Prev.IsCoinbaseSentinel() {
			continue
		}

		if !provider.HasUTXO(in.Prev) {
			return 0, fmt.Errorf("input %d (%s): %w", i, in.Prev, ErrInputNotFound)
		}

		out, err := provider.GetUTXO(in.Prev)
		if err != nil {
			return 0, fmt.Errorf("input %d: %w", i, err)
		}

		if err := verifySpendingPredicate(in.PubKey, out.ScriptPubKey); err != nil {
			return 0, fmt.Errorf("input %d: %w", i, err)
		}

		if totalInput > ^uint64(0)-out.Value {
			return 0, fmt.Errorf("input %d: %w", i, ErrInputOverflow)
		}
		totalInput += out.Value
	}

	if err := tx.VerifySignatures(); err != nil {
		return 0, err
	}

	totalOutput, err := tx.TotalOutputValue()
	if err != nil {
		return 0, fmt.Errorf("output overflow: %w", err)
	}
	if totalInput < totalOutput {
		return 0, fmt.Errorf("%w: inputs=%d outputs=%d", ErrInsufficientFee, totalInput, totalOutput)
	}

	return totalInput - totalOutput, nil
}

// ValidateStructure checks transaction structure without requiring UTXO access.
// Same as Validate() but named for clarity alongside ValidateWithUTXOs.
func (tx *Transaction) ValidateStructure() error {
	return tx.Validate()
}

// verifySpendingPredicate implements the one opaque spending predicate this
// package understands: script_pubkey is the 20-byte address that the
// spending public key must hash to. Anything richer than that is explicitly
// out of scope.
func verifySpendingPredicate(pubKey, scriptPubKey []byte) error {
	if len(scriptPubKey) != types.AddressSize {
		return fmt.Errorf("%w: script_pubkey length %d, want %d", ErrScriptMismatch, len(scriptPubKey), types.AddressSize)
	}
	if len(pubKey) == 0 {
		return ErrMissingPubKey
	}

	derived := crypto.AddressFromPubKey(pubKey)
	var expected types.Address
	copy(expected[:], scriptPubKey)

	if expected != derived {
		return fmt.Errorf("%w: expected %s, got %s", ErrScriptMismatch, expected, derived)
	}
	return nil
}
