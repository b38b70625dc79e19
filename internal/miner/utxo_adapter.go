package miner

import (
	"log"

	"github.com/INT-devs/intcoin-sub001/internal/utxo"
	"github.com/INT-devs/intcoin-sub001/pkg/tx"
	"github.com/INT-devs/intcoin-sub001/pkg/types"
)

// UTXOAdapter bridges utxo.Set to tx.UTXOProvider.
type UTXOAdapter struct {
	set utxo.Set
}

// NewUTXOAdapter creates a UTXOProvider from a utxo.Set.
func NewUTXOAdapter(set utxo.Set) *UTXOAdapter {
	return &UTXOAdapter{set: set}
}

// GetUTXO returns the output for a given outpoint.
func (a *UTXOAdapter) GetUTXO(outpoint types.OutPoint) (tx.Output, error) {
	u, err := a.set.Get(outpoint)
	if err != nil {
		return tx.Output{}, err
	}
	return tx.Output{
		Value:           u.Value,
		ScriptPubKey:    u.ScriptPubKey,
		RecipientPubKey: u.RecipientPubKey,
	}, nil
}

// HasUTXO returns whether the outpoint exists in the UTXO set.
func (a *UTXOAdapter) HasUTXO(outpoint types.OutPoint) bool {
	has, err := a.set.Has(outpoint)
	if err != nil {
		log.Printf("utxo adapter: Has(%s) error: %v", outpoint, err)
		return false
	}
	return has
}
