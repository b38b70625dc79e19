package tx

import (
	"errors"
	"fmt"

	"github.com/INT-devs/intcoin-sub001/config"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// Validation errors.
var (
	ErrNoInputs           = errors.New("transaction has no inputs")
	ErrNoOutputs          = errors.New("transaction has no outputs")
	ErrDuplicateInput     = errors.New("duplicate input")
	ErrOutputOverflow     = errors.New("output values overflow")
	ErrZeroOutput         = errors.New("output value is zero")
	ErrValueOutOfRange    = errors.New("output value exceeds maximum money supply")
	ErrMissingPubKey      = errors.New("input missing public key")
	ErrMissingSig         = errors.New("input missing signature")
	ErrInvalidSig         = errors.New("invalid signature")
	ErrTooManyInputs      = errors.New("too many inputs")
	ErrTooManyOutputs     = errors.New("too many outputs")
	ErrScriptDataTooLarge = errors.New("script data too large")
	ErrMultipleCoinbase   = errors.New("multiple coinbase-style inputs in one transaction")
)

// Validate checks transaction structure and basic (stateless) rules.
// This does NOT check UTXO existence (that requires the UTXO set).
func (tx *Transaction) Validate() error {
	if len(tx.Inputs) == 0 {
		return ErrNoInputs
	}
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(tx.Inputs) > config.MaxTxInputs {
		return fmt.Errorf("%w: %d inputs, max %d", ErrTooManyInputs, len(tx.Inputs), config.MaxTxInputs)
	}
	if len(tx.Outputs) > config.MaxTxOutputs {
		return fmt.Errorf("%w: %d outputs, max %d", ErrTooManyOutputs, len(tx.Outputs), config.MaxTxOutputs)
	}

	seen := make(map[types.OutPoint]bool, len(tx.Inputs))
	coinbaseCount := 0
	for i, in := range tx.Inputs {
		if in.Prev.IsCoinbaseSentinel() {
			coinbaseCount++
			continue
		}
		if seen[in.Prev] {
			return fmt.Errorf("input %d: %w", i, ErrDuplicateInput)
		}
		seen[in.Prev] = true
	}
	if coinbaseCount > 1 {
		return ErrMultipleCoinbase
	}
	if coinbaseCount == 1 && len(tx.Inputs) != 1 {
		return fmt.Errorf("%w: coinbase input mixed with %d spending inputs", ErrMultipleCoinbase, len(tx.Inputs)-1)
	}

	for i, in := range tx.Inputs {
		if in.Prev.IsCoinbaseSentinel() {
			continue
		}
		if len(in.PubKey) == 0 {
			return fmt.Errorf("input %d: %w", i, ErrMissingPubKey)
		}
		if len(in.Signature) == 0 {
			return fmt.Errorf("input %d: %w", i, ErrMissingSig)
		}
	}

	var totalOutput uint64
	for i, out := range tx.Outputs {
		if out.Value == 0 {
			return fmt.Errorf("output %d: %w", i, ErrZeroOutput)
		}
		if out.Value > config.MaxMoney {
			return fmt.Errorf("output %d: %w", i, ErrValueOutOfRange)
		}
		if len(out.ScriptPubKey) > config.MaxScriptData {
			return fmt.Errorf("output %d: %w: %d bytes, max %d", i, ErrScriptDataTooLarge, len(out.ScriptPubKey), config.MaxScriptData)
		}
		if totalOutput > config.MaxMoney-out.Value {
			return fmt.Errorf("output %d: %w", i, ErrOutputOverflow)
		}
		totalOutput += out.Value
	}
	if totalOutput > config.MaxMoney {
		return fmt.Errorf("total output: %w", ErrValueOutOfRange)
	}

	return nil
}

// VerifySignatures checks that all non-coinbase input signatures are valid
// for this transaction, verifying them in parallel via VerifyBatch.
func (tx *Transaction) VerifySignatures() error {
	hash := tx.Hash()
	checks := make([]sigCheck, 0, len(tx.Inputs))
	for i, in := range tx.Inputs {
		if in.Prev.IsCoinbaseSentinel() {
			continue
		}
		checks = append(checks, sigCheck{
			Hash:      hash,
			Signature: in.Signature,
			PubKey:    in.PubKey,
			label:     fmt.Sprintf("input %d", i),
		})
	}
	return VerifyBatch(checks)
}
